package relay

import (
	"strings"

	"github.com/nova-ai/nova/pkg/nova/channels"
)

// TriggerKind says why a message should (or should not) be handled.
type TriggerKind int

const (
	TriggerNone TriggerKind = iota
	TriggerMention
	TriggerAsk
	TriggerHelp
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerMention:
		return "mention"
	case TriggerAsk:
		return "ask"
	case TriggerHelp:
		return "help"
	default:
		return "none"
	}
}

// Command names, without the prefix.
const (
	CommandAsk  = "ask"
	CommandHelp = "help_nova"
)

// Trigger is the outcome of ParseTrigger.
type Trigger struct {
	Kind TriggerKind

	// Prompt is the user's question with bot mentions or the command
	// stripped.
	Prompt string
}

// ParseTrigger decides whether msg starts a run. Messages written by the
// bot itself never do.
func ParseTrigger(msg channels.Message, botID, prefix string) Trigger {
	if botID != "" && msg.AuthorID == botID {
		return Trigger{}
	}

	content := strings.TrimSpace(msg.Content)
	if prefix != "" && strings.HasPrefix(content, prefix) {
		name, rest, _ := strings.Cut(strings.TrimPrefix(content, prefix), " ")
		switch name {
		case CommandAsk:
			return Trigger{Kind: TriggerAsk, Prompt: strings.TrimSpace(rest)}
		case CommandHelp:
			return Trigger{Kind: TriggerHelp}
		}
	}

	if msg.MentionsUser(botID) {
		return Trigger{Kind: TriggerMention, Prompt: StripBotMention(content, botID)}
	}
	return Trigger{}
}

// StripBotMention removes both "<@id>" and "<@!id>" forms.
func StripBotMention(content, botID string) string {
	content = strings.ReplaceAll(content, "<@"+botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	return strings.TrimSpace(content)
}
