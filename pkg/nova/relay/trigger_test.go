package relay

import (
	"testing"

	"github.com/nova-ai/nova/pkg/nova/channels"
	"github.com/stretchr/testify/assert"
)

func TestParseTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		author   string
		content  string
		mentions []string
		want     Trigger
	}{
		{"plain", "u", "hello", nil, Trigger{}},
		{"mention", "u", "<@bot> what is AI?", []string{"bot"}, Trigger{Kind: TriggerMention, Prompt: "what is AI?"}},
		{"nick mention", "u", "hey <@!bot> there", []string{"bot"}, Trigger{Kind: TriggerMention, Prompt: "hey  there"}},
		{"other mention", "u", "<@someone> hi", []string{"someone"}, Trigger{}},
		{"ask", "u", "!ask tell me a joke", nil, Trigger{Kind: TriggerAsk, Prompt: "tell me a joke"}},
		{"ask empty", "u", "!ask", nil, Trigger{Kind: TriggerAsk}},
		{"help", "u", "!help_nova", nil, Trigger{Kind: TriggerHelp}},
		{"unknown command", "u", "!dance", nil, Trigger{}},
		{"self", "bot", "<@bot> hi", []string{"bot"}, Trigger{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := channels.Message{AuthorID: tt.author, Content: tt.content, Mentions: tt.mentions}
			assert.Equal(t, tt.want, ParseTrigger(m, "bot", "!"))
		})
	}
}

func TestTriggerKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mention", TriggerMention.String())
	assert.Equal(t, "none", TriggerNone.String())
}
