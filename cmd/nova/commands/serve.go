package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nova-ai/nova/pkg/nova/channels"
	"github.com/nova-ai/nova/pkg/nova/channels/discord"
	"github.com/nova-ai/nova/pkg/nova/health"
	"github.com/nova-ai/nova/pkg/nova/relay"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the `nova serve` command that runs the bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and answer questions",
		Long: `Start NOVA as a long-running service: connect to the Discord gateway,
serve the health endpoint and answer every message that mentions the bot
or uses the !ask command.

Examples:
  nova serve
  nova serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger := newLogger(cfg.Logging, verbose, os.Stdout)
	if configPath != "" {
		logger.Info("config loaded", "path", configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Create relay ──
	orch, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	// ── Connect Discord ──
	dc := discord.New(cfg.Discord, logger)
	if err := dc.Connect(ctx); err != nil {
		return err
	}

	// ── Start health endpoint ──
	var healthSrv *health.Server
	if cfg.Health.Enabled {
		healthSrv = health.NewServer(dc, cfg.Health.Address, logger)
		if err := healthSrv.Start(ctx); err != nil {
			logger.Error("failed to start health server", "error", err)
		}
	}

	logger.Info("NOVA running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"prefix", cfg.CommandPrefix,
		"model", cfg.Model.Model,
	)

	// Runs keep going after the shutdown signal until the grace period ends.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var wg sync.WaitGroup
	serveLoop(ctx, workCtx, dc.Receive(), orch, &wg)

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		_ = dc.Disconnect()
		if healthSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = healthSrv.Stop(shutdownCtx)
			cancel()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		cancelWork()
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}
	return nil
}

// serveLoop runs one orchestrator pass per inbound message, each on its own
// goroutine, until ctx is cancelled or the source closes.
func serveLoop(ctx, workCtx context.Context, in <-chan *channels.Incoming, orch *relay.Orchestrator, wg *sync.WaitGroup) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				// Failures are logged and reported to the user by the relay.
				_ = orch.Handle(workCtx, msg)
			}()
		}
	}
}
