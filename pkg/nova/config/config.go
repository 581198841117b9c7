// Package config defines the NOVA configuration and how it is loaded from
// YAML, .env files, environment variables and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/nova-ai/nova/pkg/nova/channels/discord"
	"github.com/nova-ai/nova/pkg/nova/llm"
	"github.com/nova-ai/nova/pkg/nova/media"
	"github.com/nova-ai/nova/pkg/nova/relay"
)

// Config holds all bot configuration.
type Config struct {
	// Name is the bot name used in help output.
	Name string `yaml:"name"`

	// CommandPrefix precedes text commands (e.g. "!ask").
	CommandPrefix string `yaml:"command_prefix"`

	// Discord configures the Discord channel.
	Discord discord.Config `yaml:"discord"`

	// Model configures the generation backend.
	Model llm.Config `yaml:"model"`

	// History bounds the transcript sent with every question.
	History HistoryConfig `yaml:"history"`

	// Media configures attachment downloads.
	Media MediaConfig `yaml:"media"`

	// Mentions configures placeholder resolution in answers.
	Mentions MentionsConfig `yaml:"mentions"`

	// Dispatch configures outbound chunking.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Prompts points at the system prompt and help text files.
	Prompts PromptsConfig `yaml:"prompts"`

	// Health configures the health-check HTTP endpoint.
	Health HealthConfig `yaml:"health"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// HistoryConfig bounds channel history.
type HistoryConfig struct {
	// MaxMessages is how many prior messages are fetched.
	MaxMessages int `yaml:"max_messages"`

	// MaxChars bounds the rendered transcript.
	MaxChars int `yaml:"max_chars"`

	// IncludeAttachments adds attachment URLs to transcript lines.
	IncludeAttachments bool `yaml:"include_attachments"`
}

// MediaConfig configures image handling.
type MediaConfig struct {
	media.Config `yaml:",inline"`

	// MimeTypes maps URL extensions to MIME types, checked in order.
	MimeTypes []relay.MimeRule `yaml:"mime_types"`
}

// MentionsConfig configures the mention resolver.
type MentionsConfig struct {
	Placeholders []string `yaml:"placeholders"`
	Reserved     []string `yaml:"reserved"`
}

// DispatchConfig configures outbound messages.
type DispatchConfig struct {
	// ChunkSize is the platform's single-message limit.
	ChunkSize int `yaml:"chunk_size"`
}

// PromptsConfig points at prompt files.
type PromptsConfig struct {
	SystemFile string `yaml:"system_file"`
	HelpFile   string `yaml:"help_file"`
}

// HealthConfig configures the health endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the log format ("json", "text").
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:          "NOVA",
		CommandPrefix: "!",
		Discord:       discord.DefaultConfig(),
		Model:         llm.DefaultConfig(),
		History: HistoryConfig{
			MaxMessages:        20,
			MaxChars:           3000,
			IncludeAttachments: true,
		},
		Media: MediaConfig{
			Config:    media.DefaultConfig(),
			MimeTypes: append([]relay.MimeRule(nil), relay.DefaultMimeRules...),
		},
		Mentions: MentionsConfig{
			Placeholders: append([]string(nil), relay.DefaultPlaceholders...),
			Reserved:     append([]string(nil), relay.DefaultReserved...),
		},
		Dispatch: DispatchConfig{ChunkSize: relay.DefaultChunkSize},
		Prompts: PromptsConfig{
			SystemFile: "text_files/prompt.txt",
			HelpFile:   "text_files/help_text.txt",
		},
		Health: HealthConfig{
			Enabled: true,
			Address: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Dispatch.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.chunk_size must be positive, got %d", c.Dispatch.ChunkSize))
	}
	if c.History.MaxMessages < 0 {
		errs = append(errs, fmt.Errorf("history.max_messages must not be negative, got %d", c.History.MaxMessages))
	}
	if c.History.MaxMessages > 100 {
		errs = append(errs, fmt.Errorf("history.max_messages is capped at 100 by Discord, got %d", c.History.MaxMessages))
	}
	if c.History.MaxChars < 0 {
		errs = append(errs, fmt.Errorf("history.max_chars must not be negative, got %d", c.History.MaxChars))
	}
	if c.Media.Timeout != "" {
		if d, err := time.ParseDuration(c.Media.Timeout); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("media.timeout %q is not a positive duration", c.Media.Timeout))
		}
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature must be within [0, 2], got %v", c.Model.Temperature))
	}
	return errors.Join(errs...)
}

// RelayConfig projects the settings the orchestrator needs. Prompt texts
// are passed in because they come from files.
func (c *Config) RelayConfig(systemPrompt, helpText string) relay.Config {
	return relay.Config{
		SystemPrompt:       systemPrompt,
		HelpText:           helpText,
		CommandPrefix:      c.CommandPrefix,
		MaxHistoryMessages: c.History.MaxMessages,
		MaxHistoryChars:    c.History.MaxChars,
		IncludeAttachments: c.History.IncludeAttachments,
		ChunkSize:          c.Dispatch.ChunkSize,
	}
}
