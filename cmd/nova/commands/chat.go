package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nova-ai/nova/pkg/nova/channels/console"
	"github.com/spf13/cobra"
)

// newChatCmd creates the `nova chat` command for local conversations.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to NOVA from the terminal",
		Long: `Ask a single question, or start an interactive session (no arguments).
The session keeps its own history, so follow-up questions have context.
Commands such as !help_nova work the same way as on Discord.

Examples:
  nova chat "What is a goroutine?"
  nova chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Keep logs out of the conversation unless asked for.
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logCfg := cfg.Logging
	logCfg.Format = "text"
	if !verbose {
		logCfg.Level = "warn"
	}
	logger := newLogger(logCfg, verbose, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	user := os.Getenv("USER")
	c := console.New(cmd.OutOrStdout(), user, cfg.Name)

	if len(args) > 0 {
		return orch.Handle(ctx, c.Incoming(args[0]))
	}

	rl, err := console.NewReadline("you> ", historyFile())
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "%s is ready. Type exit to quit.\n", cfg.Name)
	return c.Run(ctx, rl, orch.Handle)
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nova_history")
}
