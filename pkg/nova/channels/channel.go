// Package channels defines the platform-neutral types the relay consumes.
// Each chat platform (Discord, the local console) implements Conversation
// for a single inbound message and emits Incoming values to the caller.
package channels

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Attachment describes a file attached to a message.
type Attachment struct {
	// URL is a direct download URL.
	URL string

	// ContentType is the MIME type reported by the platform (may be empty).
	ContentType string

	// Filename is the original file name.
	Filename string
}

// IsImage reports whether the platform flagged the attachment as an image.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.ContentType), "image/")
}

// Message is an immutable snapshot of a chat message.
type Message struct {
	// ID is the platform message identifier.
	ID string

	// AuthorID is the platform user identifier of the author.
	AuthorID string

	// AuthorName is the author's display name.
	AuthorName string

	// IsBot is true when the author is a bot account.
	IsBot bool

	// Content is the raw text content.
	Content string

	// Attachments in the order the platform reports them.
	Attachments []Attachment

	// Mentions lists the user IDs mentioned in the message.
	Mentions []string

	// GuildID is empty for direct messages.
	GuildID string

	// ChannelID is the channel (or DM) the message was posted in.
	ChannelID string

	// Timestamp is when the message was sent.
	Timestamp time.Time
}

// MentionsUser reports whether the message mentions the given user ID.
func (m Message) MentionsUser(id string) bool {
	if id == "" {
		return false
	}
	for _, u := range m.Mentions {
		if u == id {
			return true
		}
	}
	return false
}

// Member is one entry of a guild member directory.
type Member struct {
	ID          string
	DisplayName string
	Username    string
}

// Responder is the outbound side of a conversation.
type Responder interface {
	// Send posts text to the conversation without threading.
	Send(ctx context.Context, text string) error

	// Reply posts text threaded to the inbound message.
	Reply(ctx context.Context, text string) error
}

// Conversation gives the relay everything it needs for one inbound message.
type Conversation interface {
	Responder

	// History returns up to limit messages posted before the message with
	// ID before, ordered oldest first.
	History(ctx context.Context, limit int, before string) ([]Message, error)

	// Members returns the guild member directory. ok is false when the
	// conversation has no directory (e.g. a direct message).
	Members(ctx context.Context) (members []Member, ok bool, err error)

	// Typing shows a typing indicator.
	Typing(ctx context.Context) error
}

// Incoming couples an inbound message with the conversation it came from.
type Incoming struct {
	Message      Message
	Conversation Conversation

	// BotID is the platform identity of the bot itself.
	BotID string
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool      `json:"connected"`
	LastMessageAt time.Time `json:"last_message_at"`
	ErrorCount    int       `json:"error_count"`
}

// Errors.
var (
	ErrChannelDisconnected = errors.New("channel is not connected")
	ErrNoReplyTarget       = errors.New("no message to reply to")
)
