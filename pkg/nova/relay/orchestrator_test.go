package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nova-ai/nova/pkg/nova/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	reply bool
	text  string
}

type fakeConversation struct {
	mu sync.Mutex

	history    []channels.Message
	historyErr error
	members    []channels.Member
	hasDir     bool
	sendErr    error
	noReply    bool

	gotLimit  int
	gotBefore string
	out       []sent
}

func (c *fakeConversation) Send(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.out = append(c.out, sent{text: text})
	return nil
}

func (c *fakeConversation) Reply(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.noReply {
		return channels.ErrNoReplyTarget
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.out = append(c.out, sent{reply: true, text: text})
	return nil
}

func (c *fakeConversation) History(_ context.Context, limit int, before string) ([]channels.Message, error) {
	c.gotLimit, c.gotBefore = limit, before
	return c.history, c.historyErr
}

func (c *fakeConversation) Members(context.Context) ([]channels.Member, bool, error) {
	return c.members, c.hasDir, nil
}

func (c *fakeConversation) Typing(context.Context) error { return nil }

type fakeGenerator struct {
	text string
	err  error
	got  *Request
}

func (g *fakeGenerator) Generate(_ context.Context, req *Request) (string, error) {
	g.got = req
	return g.text, g.err
}

func testConfig() Config {
	return Config{
		SystemPrompt:       "You are NOVA.",
		HelpText:           "help text",
		CommandPrefix:      "!",
		MaxHistoryMessages: 20,
		MaxHistoryChars:    3000,
		ChunkSize:          2000,
	}
}

func incoming(conv channels.Conversation, content string, mentions ...string) *channels.Incoming {
	return &channels.Incoming{
		BotID:        "bot",
		Conversation: conv,
		Message: channels.Message{
			ID:        "m1",
			AuthorID:  "42",
			Content:   content,
			Mentions:  mentions,
			ChannelID: "c1",
		},
	}
}

func recordStates(o *Orchestrator) *[]State {
	var states []State
	o.OnTransition(func(_ string, _, to State) { states = append(states, to) })
	return &states
}

func TestOrchestrator_HappyPath(t *testing.T) {
	t.Parallel()

	conv := &fakeConversation{
		history: []channels.Message{msg("7", "hi"), msg("bot", "hello")},
		members: []channels.Member{{ID: "7", DisplayName: "Carol"}},
		hasDir:  true,
	}
	gen := &fakeGenerator{text: "Sure @user, ask @carol too."}
	o := NewOrchestrator(testConfig(), gen, nil, nil, nil)
	states := recordStates(o)

	err := o.Handle(context.Background(), incoming(conv, "<@bot> what's up", "bot"))
	require.NoError(t, err)

	require.NotNil(t, gen.got)
	assert.Equal(t, "User: hi\nAssistant: hello\nUser: what's up", gen.got.Prompt())
	assert.Equal(t, "You are NOVA.", gen.got.SystemInstruction)
	assert.Equal(t, 20, conv.gotLimit)
	assert.Equal(t, "m1", conv.gotBefore)

	require.Len(t, conv.out, 1)
	assert.Equal(t, sent{reply: true, text: "Sure <@42>, ask <@7> too."}, conv.out[0])

	assert.Equal(t, []State{
		StateHistoryFetch, StatePayloadBuild, StateGenerating,
		StateResolving, StateDispatching, StateDone,
	}, *states)
}

func TestOrchestrator_LongAnswerRepliesThenSends(t *testing.T) {
	t.Parallel()

	conv := &fakeConversation{}
	gen := &fakeGenerator{text: strings.Repeat("z", 4500)}
	o := NewOrchestrator(testConfig(), gen, nil, nil, nil)

	require.NoError(t, o.Handle(context.Background(), incoming(conv, "!ask tell me everything")))

	require.Len(t, conv.out, 3)
	assert.True(t, conv.out[0].reply)
	assert.False(t, conv.out[1].reply)
	assert.False(t, conv.out[2].reply)
	assert.Len(t, conv.out[2].text, 500)
	assert.Equal(t, "User: tell me everything", gen.got.Prompt())
}

func TestOrchestrator_IgnoresUnaddressedAndSelf(t *testing.T) {
	t.Parallel()

	conv := &fakeConversation{}
	gen := &fakeGenerator{text: "nope"}
	o := NewOrchestrator(testConfig(), gen, nil, nil, nil)

	require.NoError(t, o.Handle(context.Background(), incoming(conv, "just chatting")))

	self := incoming(conv, "<@bot> talking to myself", "bot")
	self.Message.AuthorID = "bot"
	require.NoError(t, o.Handle(context.Background(), self))

	assert.Nil(t, gen.got)
	assert.Empty(t, conv.out)
}

func TestOrchestrator_GreetingOnEmptyMention(t *testing.T) {
	t.Parallel()

	conv := &fakeConversation{}
	gen := &fakeGenerator{text: "unused"}
	o := NewOrchestrator(testConfig(), gen, nil, nil, nil)

	require.NoError(t, o.Handle(context.Background(), incoming(conv, "<@bot>  ", "bot")))

	assert.Nil(t, gen.got)
	assert.Equal(t, []sent{{text: GreetingMessage}}, conv.out)
}

func TestOrchestrator_Help(t *testing.T) {
	t.Parallel()

	conv := &fakeConversation{}
	o := NewOrchestrator(testConfig(), &fakeGenerator{}, nil, nil, nil)

	require.NoError(t, o.Handle(context.Background(), incoming(conv, "!help_nova")))
	assert.Equal(t, []sent{{text: "help text"}}, conv.out)
}

func TestOrchestrator_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		conv     *fakeConversation
		gen      *fakeGenerator
		failedAt State
		wantErr  error
	}{
		{
			name:     "history fetch",
			conv:     &fakeConversation{historyErr: errors.New("forbidden")},
			gen:      &fakeGenerator{text: "unused"},
			failedAt: StateHistoryFetch,
		},
		{
			name:     "backend error",
			conv:     &fakeConversation{},
			gen:      &fakeGenerator{err: errors.New("quota")},
			failedAt: StateGenerating,
		},
		{
			name:     "empty text",
			conv:     &fakeConversation{},
			gen:      &fakeGenerator{text: "  \n"},
			failedAt: StateGenerating,
			wantErr:  ErrEmptyResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := NewOrchestrator(testConfig(), tt.gen, nil, nil, nil)
			var failedFrom State
			o.OnTransition(func(_ string, from, to State) {
				if to == StateFailed {
					failedFrom = from
				}
			})

			err := o.Handle(context.Background(), incoming(tt.conv, "<@bot> hi", "bot"))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.failedAt, failedFrom)
			assert.Equal(t, []sent{{reply: true, text: ErrorMessage}}, tt.conv.out)
		})
	}
}

func TestOrchestrator_FailureFallsBackToSend(t *testing.T) {
	t.Parallel()

	conv := &fakeConversation{noReply: true}
	o := NewOrchestrator(testConfig(), &fakeGenerator{err: errors.New("down")}, nil, nil, nil)

	require.Error(t, o.Handle(context.Background(), incoming(conv, "!ask hi")))
	assert.Equal(t, []sent{{text: ErrorMessage}}, conv.out)
}

func TestOrchestrator_DispatchFailureIsNotReported(t *testing.T) {
	t.Parallel()

	boom := errors.New("missing permissions")
	conv := &fakeConversation{sendErr: boom}
	o := NewOrchestrator(testConfig(), &fakeGenerator{text: "answer"}, nil, nil, nil)
	states := recordStates(o)

	err := o.Handle(context.Background(), incoming(conv, "!ask hi"))
	require.ErrorIs(t, err, boom)
	assert.Empty(t, conv.out)
	assert.Equal(t, StateFailed, (*states)[len(*states)-1])
}

func TestOrchestrator_ImagesOnly(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{bodies: map[string][]byte{"https://cdn/cat.png": []byte("cat")}}
	gen := &fakeGenerator{text: "a cat"}
	cfg := testConfig()
	cfg.MaxHistoryMessages = 0
	o := NewOrchestrator(cfg, gen, NewAssembler(f, 0, nil, nil), nil, nil)

	in := incoming(&fakeConversation{}, "<@bot>", "bot")
	in.Message.Attachments = []channels.Attachment{{URL: "https://cdn/cat.png", ContentType: "image/png"}}

	require.NoError(t, o.Handle(context.Background(), in))
	require.Len(t, gen.got.Images, 1)
	assert.Equal(t, "image/png", gen.got.Images[0].MIMEType)
	assert.Equal(t, "", gen.got.Prompt())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "history_fetch", StateHistoryFetch.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(99)", State(99).String())
}
