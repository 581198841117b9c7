package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/nova-ai/nova/pkg/nova/config"
	"github.com/spf13/cobra"
)

// newSetupCmd creates the `nova setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Ask for the Discord bot token and the GenAI API key, store them in the
OS keyring and write a config file that references them.

Examples:
  nova setup
  nova setup --output ./config.yaml
  nova setup --reset`,
		RunE: runSetup,
	}
	cmd.Flags().StringP("output", "o", "config.yaml", "where to write the config file")
	cmd.Flags().Bool("reset", false, "remove the stored secrets from the OS keyring and exit")
	return cmd
}

func runSetup(cmd *cobra.Command, _ []string) error {
	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		return resetSecrets(cmd.OutOrStdout())
	}

	output, _ := cmd.Flags().GetString("output")
	cfg := config.DefaultConfig()

	var (
		discordToken string
		apiKey       string
		useKeyring   = true
		overwrite    bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot name").
				Value(&cfg.Name),
			huh.NewInput().
				Title("Command prefix").
				Value(&cfg.CommandPrefix).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("prefix is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				EchoMode(huh.EchoModePassword).
				Value(&discordToken),
			huh.NewInput().
				Title("GenAI API key").
				Description("From Google AI Studio").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewConfirm().
				Title("Store secrets in the OS keyring?").
				Value(&useKeyring),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	if _, err := os.Stat(output); err == nil {
		if err := huh.NewConfirm().
			Title(fmt.Sprintf("%s exists. Overwrite?", output)).
			Value(&overwrite).
			Run(); err != nil || !overwrite {
			return fmt.Errorf("not overwriting %s", output)
		}
	}

	// The config file never contains the real secrets.
	cfg.Discord.Token = "${" + config.EnvDiscordToken + "}"
	cfg.Model.APIKey = "${" + config.EnvGenAIKey + "}"

	out := cmd.OutOrStdout()
	if useKeyring {
		storeSecret(out, config.KeyringDiscordToken, discordToken)
		storeSecret(out, config.KeyringGenAIKey, apiKey)
	} else {
		fmt.Fprintf(out, "Export %s and %s before running nova serve.\n", config.EnvDiscordToken, config.EnvGenAIKey)
	}

	if err := config.SaveConfigToFile(cfg, output); err != nil {
		return err
	}
	fmt.Fprintf(out, "Config written to %s\n", output)
	return nil
}

func storeSecret(out io.Writer, key, value string) {
	if value == "" {
		return
	}
	if err := config.StoreKeyring(key, value); err != nil {
		fmt.Fprintf(out, "[!] Could not store %s in the keyring: %v\n", key, err)
		return
	}
	fmt.Fprintf(out, "Stored %s in the OS keyring.\n", key)
}

func resetSecrets(out io.Writer) error {
	if err := config.ClearKeyring(); err != nil {
		return fmt.Errorf("clearing keyring: %w", err)
	}
	fmt.Fprintln(out, "Removed stored secrets from the OS keyring.")
	return nil
}
