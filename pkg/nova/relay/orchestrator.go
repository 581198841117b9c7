package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nova-ai/nova/pkg/nova/channels"
)

// User-visible fixed strings.
const (
	ErrorMessage    = "Sorry, I encountered an error while processing your request."
	GreetingMessage = "Hi! Mention me with a question and I'll help you!"
)

// ErrEmptyResponse is returned when the backend produced no text.
var ErrEmptyResponse = errors.New("no response text received from the model")

// Generator is the generation backend.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// State is a pipeline run state.
type State int

const (
	StateIdle State = iota
	StateHistoryFetch
	StatePayloadBuild
	StateGenerating
	StateResolving
	StateDispatching
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateHistoryFetch: "history_fetch",
	StatePayloadBuild: "payload_build",
	StateGenerating:   "generating",
	StateResolving:    "resolving",
	StateDispatching:  "dispatching",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TransitionFunc observes state changes of a run.
type TransitionFunc func(runID string, from, to State)

// Config holds the orchestrator's policy knobs.
type Config struct {
	SystemPrompt  string
	HelpText      string
	CommandPrefix string

	MaxHistoryMessages int
	MaxHistoryChars    int
	IncludeAttachments bool

	ChunkSize int
}

// Orchestrator runs one pipeline per inbound event. It holds no per-run
// state, so Handle may be called concurrently for different events.
type Orchestrator struct {
	cfg        Config
	gen        Generator
	assembler  *Assembler
	mentions   *MentionResolver
	dispatcher Dispatcher
	logger     *slog.Logger

	onTransition TransitionFunc
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(cfg Config, gen Generator, assembler *Assembler, mentions *MentionResolver, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if assembler == nil {
		assembler = NewAssembler(nil, 0, nil, logger)
	}
	if mentions == nil {
		mentions = NewMentionResolver(nil, nil)
	}
	return &Orchestrator{
		cfg:        cfg,
		gen:        gen,
		assembler:  assembler,
		mentions:   mentions,
		dispatcher: Dispatcher{ChunkSize: cfg.ChunkSize},
		logger:     logger.With("component", "orchestrator"),
	}
}

// OnTransition registers a hook called on every state change.
func (o *Orchestrator) OnTransition(fn TransitionFunc) {
	o.onTransition = fn
}

// Handle processes one inbound event. Events that are not addressed to the
// bot return nil without side effects. A failed run has already reported
// the failure to the user when the error is returned.
func (o *Orchestrator) Handle(ctx context.Context, in *channels.Incoming) error {
	trig := ParseTrigger(in.Message, in.BotID, o.cfg.CommandPrefix)
	conv := in.Conversation

	switch trig.Kind {
	case TriggerNone:
		return nil
	case TriggerHelp:
		return o.dispatcher.Dispatch(ctx, o.cfg.HelpText, sendAll(conv))
	}

	images := o.assembler.ImageURLs(in.Message.Attachments)
	if trig.Prompt == "" && len(images) == 0 {
		return conv.Send(ctx, GreetingMessage)
	}

	return o.run(ctx, in, trig, images)
}

func (o *Orchestrator) run(ctx context.Context, in *channels.Incoming, trig Trigger, images []string) error {
	runID := uuid.NewString()
	conv := in.Conversation
	logger := o.logger.With(
		"run_id", runID,
		"channel_id", in.Message.ChannelID,
		"author_id", in.Message.AuthorID,
		"trigger", trig.Kind.String(),
	)

	state := StateIdle
	move := func(to State) {
		if o.onTransition != nil {
			o.onTransition(runID, state, to)
		}
		logger.Debug("run state", "from", state.String(), "to", to.String())
		state = to
	}
	fail := func(err error) error {
		from := state
		move(StateFailed)
		logger.Error("run failed", "state", from.String(), "error", err)
		o.reportFailure(ctx, conv, logger)
		return fmt.Errorf("%s: %w", from, err)
	}

	move(StateHistoryFetch)
	var history []channels.Message
	if o.cfg.MaxHistoryMessages > 0 {
		var err error
		history, err = conv.History(ctx, o.cfg.MaxHistoryMessages, in.Message.ID)
		if err != nil {
			return fail(fmt.Errorf("fetching history: %w", err))
		}
	}
	transcript := BuildTranscript(history, TranscriptOptions{
		MaxChars:           o.cfg.MaxHistoryChars,
		IncludeAttachments: o.cfg.IncludeAttachments,
		BotID:              in.BotID,
	})

	move(StatePayloadBuild)
	req := o.assembler.Assemble(ctx, o.cfg.SystemPrompt, transcript.String(), trig.Prompt, images)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	logger.Debug("request built",
		"history_lines", transcript.Len(),
		"images", len(req.Images),
		"requested_images", len(images),
	)

	move(StateGenerating)
	if err := conv.Typing(ctx); err != nil {
		logger.Debug("typing indicator failed", "error", err)
	}
	text, err := o.gen.Generate(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("generating: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		return fail(ErrEmptyResponse)
	}

	move(StateResolving)
	members, ok, err := conv.Members(ctx)
	if err != nil {
		logger.Warn("member directory unavailable", "error", err)
		members, ok = nil, false
	}
	text = o.mentions.Resolve(text, MentionContext{
		TargetID:     in.Message.AuthorID,
		Members:      members,
		HasDirectory: ok,
	})

	move(StateDispatching)
	if err := o.dispatcher.Dispatch(ctx, text, replyFirst(conv)); err != nil {
		move(StateFailed)
		logger.Error("dispatch failed", "error", err)
		return err
	}

	move(StateDone)
	logger.Info("run complete", "response_len", len(text))
	return nil
}

// reportFailure sends exactly one error message, threaded when possible.
func (o *Orchestrator) reportFailure(ctx context.Context, conv channels.Responder, logger *slog.Logger) {
	err := conv.Reply(ctx, ErrorMessage)
	if errors.Is(err, channels.ErrNoReplyTarget) {
		err = conv.Send(ctx, ErrorMessage)
	}
	if err != nil {
		logger.Warn("failed to report error to user", "error", err)
	}
}

// replyFirst threads the first chunk to the inbound message and sends the
// rest as plain channel messages.
func replyFirst(r channels.Responder) SendFunc {
	return func(ctx context.Context, c Chunk) error {
		if c.Index == 0 {
			err := r.Reply(ctx, c.Text)
			if !errors.Is(err, channels.ErrNoReplyTarget) {
				return err
			}
		}
		return r.Send(ctx, c.Text)
	}
}

func sendAll(r channels.Responder) SendFunc {
	return func(ctx context.Context, c Chunk) error {
		return r.Send(ctx, c.Text)
	}
}
