package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "nova"

	KeyringDiscordToken = "discord_token"
	KeyringGenAIKey     = "genai_api_key"
)

// Swapped in tests.
var (
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring, or "" when absent.
func GetKeyring(key string) string {
	val, err := keyringGet(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring. A secret that is
// already absent is not an error.
func DeleteKeyring(key string) error {
	err := keyringDelete(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// ClearKeyring removes every secret nova stores in the OS keyring.
func ClearKeyring() error {
	var errs []error
	for _, key := range []string{KeyringDiscordToken, KeyringGenAIKey} {
		if err := DeleteKeyring(key); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// ResolveSecrets fills secrets still missing after env/config resolution
// from the OS keyring.
func ResolveSecrets(cfg *Config, logger *slog.Logger) {
	if cfg.Discord.Token == "" || IsEnvReference(cfg.Discord.Token) {
		if v := GetKeyring(KeyringDiscordToken); v != "" {
			cfg.Discord.Token = v
			logger.Debug("discord token loaded from OS keyring")
		}
	}
	if cfg.Model.APIKey == "" || IsEnvReference(cfg.Model.APIKey) {
		if v := GetKeyring(KeyringGenAIKey); v != "" {
			cfg.Model.APIKey = v
			logger.Debug("GenAI API key loaded from OS keyring")
		}
	}

	if cfg.Model.APIKey == "" || IsEnvReference(cfg.Model.APIKey) {
		logger.Warn("no GenAI API key found. Set GENAI_API_KEY or run: nova setup")
	}
}
