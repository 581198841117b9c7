package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nova-ai/nova/pkg/nova/config"
	"github.com/nova-ai/nova/pkg/nova/llm"
	"github.com/nova-ai/nova/pkg/nova/media"
	"github.com/nova-ai/nova/pkg/nova/relay"
	"github.com/spf13/cobra"
)

// loadConfig resolves the config from the --config flag or discovery.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, used, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, used, nil
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg config.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildOrchestrator wires secrets, prompts, the Gemini client, the image
// fetcher and the mention resolver into a relay.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*relay.Orchestrator, error) {
	config.ResolveSecrets(cfg, logger)

	systemPrompt := config.LoadSystemPrompt(cfg.Prompts.SystemFile, logger)
	helpText := config.LoadHelpText(cfg.Prompts.HelpFile, logger)

	gen, err := llm.NewGemini(ctx, cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	fetcher := media.NewFetcher(cfg.Media.Config, logger)
	assembler := relay.NewAssembler(fetcher, cfg.Media.TimeoutDuration(), cfg.Media.MimeTypes, logger)
	mentions := relay.NewMentionResolver(cfg.Mentions.Placeholders, cfg.Mentions.Reserved)

	return relay.NewOrchestrator(cfg.RelayConfig(systemPrompt, helpText), gen, assembler, mentions, logger), nil
}

// maskSecret keeps env references and hides everything else.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case config.IsEnvReference(s):
		return s
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}
