package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSystemPrompt is written to the prompt file when it does not exist.
const DefaultSystemPrompt = "You are NOVA, a helpful, friendly, and concise AI assistant " +
	"for a Discord server. Answer clearly and politely, and keep " +
	"replies appropriate for a general audience."

// DefaultHelpText is used when no help file is present.
const DefaultHelpText = "**NOVA-AI Discord Bot Help**\n\n" +
	"**Ways to interact with me:**\n" +
	"1. Mention me (@NOVA-AI) followed by your question\n" +
	"2. Use the `!ask` command followed by your question\n\n" +
	"**Examples:**\n" +
	"- @NOVA-AI What is artificial intelligence?\n" +
	"- !ask Tell me a joke\n\n" +
	"**Note:** I'm powered by Google's Gemini AI!\n"

// LoadSystemPrompt reads the system prompt, creating the file with the
// default prompt when it is missing. Read errors and empty files fall back
// to the default.
func LoadSystemPrompt(path string, logger *slog.Logger) string {
	if path == "" {
		return DefaultSystemPrompt
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, DefaultSystemPrompt); err != nil {
			logger.Warn("couldn't create prompt file", "path", path, "error", err)
			return DefaultSystemPrompt
		}
		logger.Info("created default prompt file", "path", path)
	}
	return readOr(path, DefaultSystemPrompt, logger)
}

// LoadHelpText reads the help text, falling back to the built-in text.
func LoadHelpText(path string, logger *slog.Logger) string {
	if path == "" {
		return DefaultHelpText
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultHelpText
	}
	return readOr(path, DefaultHelpText, logger)
}

func readOr(path, fallback string, logger *slog.Logger) string {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("couldn't read prompt file", "path", path, "error", err)
		return fallback
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return fallback
}

func writeDefault(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
