package commands

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/nova-ai/nova/pkg/nova/health"
	"github.com/spf13/cobra"
)

// newHealthCmd creates the `nova health` command. It exits non-zero when
// the bot is unhealthy, so it can back a container HEALTHCHECK.
func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the running bot's health endpoint",
		Long: `Query the health endpoint of a running nova serve. The address
defaults to the one in the config file.

Examples:
  nova health
  nova health --url http://bot.internal:8080/healthz`,
		RunE: runHealth,
	}
	cmd.Flags().String("url", "", "health endpoint URL")
	cmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
	return cmd
}

func runHealth(cmd *cobra.Command, _ []string) error {
	url, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if url == "" {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		url = healthURL(cfg.Health.Address)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, code, err := health.Check(ctx, &http.Client{Timeout: timeout}, url)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	status := color.New(color.FgGreen, color.Bold)
	if code != http.StatusOK {
		status = color.New(color.FgRed, color.Bold)
	}
	status.Fprintf(out, "%s\n", strings.ToUpper(report.Status))

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(out, "  connected:    %v\n", report.Connected)
	gray.Fprintf(out, "  uptime:       %s\n", report.Uptime)
	gray.Fprintf(out, "  errors:       %d\n", report.ErrorCount)
	if !report.LastMessageAt.IsZero() {
		gray.Fprintf(out, "  last message: %s\n", report.LastMessageAt.Format(time.RFC3339))
	}

	if code != http.StatusOK {
		return fmt.Errorf("unhealthy: HTTP %d", code)
	}
	return nil
}

// healthURL turns a listen address into a local URL.
func healthURL(address string) string {
	if strings.HasPrefix(address, ":") {
		address = "localhost" + address
	}
	if strings.HasPrefix(address, "0.0.0.0:") {
		address = "localhost" + strings.TrimPrefix(address, "0.0.0.0")
	}
	return "http://" + address + health.Path
}
