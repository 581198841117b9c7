// Package console implements a local terminal channel. Every line typed is
// treated as a message addressed to the bot, and answers are printed back
// in color. History lives in memory for the lifetime of the session.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/nova-ai/nova/pkg/nova/channels"
)

// Identities used for console messages.
const (
	BotID     = "nova"
	UserID    = "console"
	ChannelID = "console"
)

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
}

// HandleFunc processes one inbound message.
type HandleFunc func(ctx context.Context, in *channels.Incoming) error

// Console is a single terminal conversation.
type Console struct {
	out      io.Writer
	userName string
	botName  string

	bot  *color.Color
	dim  *color.Color
	fail *color.Color

	mu      sync.Mutex
	seq     int
	history []channels.Message
}

// New creates a console writing to out.
func New(out io.Writer, userName, botName string) *Console {
	if userName == "" {
		userName = "you"
	}
	if botName == "" {
		botName = "NOVA"
	}
	return &Console{
		out:      out,
		userName: userName,
		botName:  botName,
		bot:      color.New(color.FgCyan, color.Bold),
		dim:      color.New(color.FgHiBlack),
		fail:     color.New(color.FgRed),
	}
}

// NewReadline builds the interactive line editor.
func NewReadline(prompt, historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// Incoming records text as a user message addressed to the bot.
func (c *Console) Incoming(text string) *channels.Incoming {
	msg := c.record(UserID, c.userName, false, text)
	msg.Mentions = []string{BotID}
	return &channels.Incoming{
		Message:      msg,
		Conversation: c,
		BotID:        BotID,
	}
}

// Run reads lines until EOF, "exit" or cancellation, handing each to fn.
func (c *Console) Run(ctx context.Context, r LineReader, fn HandleFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := r.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit", "/exit", "/quit":
			return nil
		}

		if err := fn(ctx, c.Incoming(line)); err != nil {
			c.dim.Fprintf(c.out, "  (%v)\n", err)
		}
	}
}

// ---------- channels.Conversation ----------

// History returns up to limit messages recorded before the given ID.
func (c *Console) History(_ context.Context, limit int, before string) ([]channels.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := len(c.history)
	for i, m := range c.history {
		if m.ID == before {
			end = i
			break
		}
	}
	start := max(0, end-limit)
	return append([]channels.Message(nil), c.history[start:end]...), nil
}

// Send prints text as the bot.
func (c *Console) Send(_ context.Context, text string) error {
	c.record(BotID, c.botName, true, text)
	_, err := fmt.Fprintf(c.out, "%s %s\n", c.bot.Sprint(c.botName+":"), text)
	return err
}

// Reply is Send; the terminal has no threading.
func (c *Console) Reply(ctx context.Context, text string) error {
	return c.Send(ctx, text)
}

// Members reports no directory.
func (c *Console) Members(context.Context) ([]channels.Member, bool, error) {
	return nil, false, nil
}

// Typing prints a dim status line.
func (c *Console) Typing(context.Context) error {
	_, err := c.dim.Fprintf(c.out, "  %s is typing...\n", c.botName)
	return err
}

func (c *Console) record(authorID, name string, isBot bool, text string) channels.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	msg := channels.Message{
		ID:         strconv.Itoa(c.seq),
		AuthorID:   authorID,
		AuthorName: name,
		IsBot:      isBot,
		Content:    text,
		ChannelID:  ChannelID,
		Timestamp:  time.Now(),
	}
	c.history = append(c.history, msg)
	return msg
}

var _ channels.Conversation = (*Console)(nil)
