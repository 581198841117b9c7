// Package relay implements the context-assembly and response-dispatch
// pipeline: channel history becomes a bounded transcript, the transcript and
// the new question become a generation request, and the generated answer is
// mention-resolved and chunked back into the channel.
package relay

import (
	"strings"
	"unicode/utf8"

	"github.com/nova-ai/nova/pkg/nova/channels"
)

// Role labels a transcript line.
type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
)

// Line is one role-labeled entry of a transcript.
type Line struct {
	Role Role
	Text string
}

// String renders the line as "<Role>: <text>".
func (l Line) String() string {
	return string(l.Role) + ": " + l.Text
}

// TranscriptOptions controls BuildTranscript.
type TranscriptOptions struct {
	// MaxChars bounds the serialized transcript. Zero or negative disables
	// the character budget.
	MaxChars int

	// IncludeAttachments appends " [attachment: <url>]" per attachment.
	IncludeAttachments bool

	// BotID identifies messages written by the bot itself.
	BotID string
}

// Transcript is an ordered, size-bounded sequence of lines. Lines are only
// ever trimmed from the front, so the newest turns always survive.
type Transcript struct {
	Lines []Line

	maxChars int
	total    int // sum of rune length + 1 separator per line
}

// Push appends a line and trims the oldest lines until the budget holds.
func (t *Transcript) Push(l Line) {
	t.Lines = append(t.Lines, l)
	t.total += utf8.RuneCountInString(l.String()) + 1
	t.trim()
}

func (t *Transcript) trim() {
	if t.maxChars <= 0 {
		return
	}
	for t.total > t.maxChars && len(t.Lines) > 0 {
		t.total -= utf8.RuneCountInString(t.Lines[0].String()) + 1
		t.Lines = t.Lines[1:]
	}
}

// Len returns the number of surviving lines.
func (t *Transcript) Len() int { return len(t.Lines) }

// String joins the lines with newlines. An empty transcript renders as "".
func (t *Transcript) String() string {
	if len(t.Lines) == 0 {
		return ""
	}
	parts := make([]string, len(t.Lines))
	for i, l := range t.Lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

// BuildTranscript converts oldest-first messages into a transcript. Messages
// whose rendered content is blank are skipped; the caller is responsible for
// bounding how many messages are passed in.
func BuildTranscript(msgs []channels.Message, opts TranscriptOptions) *Transcript {
	t := &Transcript{maxChars: opts.MaxChars}
	for _, m := range msgs {
		content := renderContent(m, opts.IncludeAttachments)
		if content == "" {
			continue
		}
		t.Push(Line{Role: roleOf(m, opts.BotID), Text: content})
	}
	return t
}

func renderContent(m channels.Message, withAttachments bool) string {
	var b strings.Builder
	b.WriteString(m.Content)
	if withAttachments {
		for _, a := range m.Attachments {
			b.WriteString(" [attachment: ")
			b.WriteString(a.URL)
			b.WriteString("]")
		}
	}
	return strings.TrimSpace(b.String())
}

func roleOf(m channels.Message, botID string) Role {
	if m.IsBot || (botID != "" && m.AuthorID == botID) {
		return RoleAssistant
	}
	return RoleUser
}
