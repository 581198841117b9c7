// Package llm implements the generation backend on top of the Google GenAI
// SDK (Gemini).
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nova-ai/nova/pkg/nova/relay"
	"google.golang.org/genai"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.7

	// maxToolRounds bounds the function-calling loop.
	maxToolRounds = 4
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("GENAI_API_KEY not set")

// unresolvedSecret reports a key that is empty or still an unexpanded
// "${VAR}" reference.
func unresolvedSecret(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.HasPrefix(s, "$")
}

// Config configures the Gemini client.
type Config struct {
	// APIKey is the Google AI Studio key.
	APIKey string `yaml:"api_key"`

	// Model is the model name (e.g. "gemini-2.5-flash").
	Model string `yaml:"model"`

	// Temperature controls sampling randomness.
	Temperature float32 `yaml:"temperature"`

	// EnableTools exposes the built-in function tools to the model.
	EnableTools bool `yaml:"enable_tools"`

	// Retry configures retries and fallback models.
	Retry RetryConfig `yaml:"retry"`
}

// DefaultConfig returns the default model configuration.
func DefaultConfig() Config {
	return Config{
		Model:       defaultModel,
		Temperature: defaultTemperature,
		EnableTools: true,
		Retry:       DefaultRetryConfig(),
	}
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements relay.Generator.
type Gemini struct {
	models contentGenerator
	cfg    Config
	tools  *Toolbox
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewGemini creates the client explicitly; callers own its lifetime.
func NewGemini(ctx context.Context, cfg Config, logger *slog.Logger) (*Gemini, error) {
	if unresolvedSecret(cfg.APIKey) {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(models contentGenerator, cfg Config, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	g := &Gemini{
		models: models,
		cfg:    cfg,
		logger: logger.With("component", "gemini", "model", cfg.Model),
		sleep:  sleepCtx,
	}
	if cfg.EnableTools {
		g.tools = DefaultToolbox()
	}
	return g
}

// Generate sends the request and returns the model's text. Function calls
// requested by the model are executed and fed back until it answers in
// text or the round limit is hit.
func (g *Gemini) Generate(ctx context.Context, req *relay.Request) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(userParts(req), genai.RoleUser)}
	config := g.generateConfig(req.SystemInstruction)

	for round := 0; ; round++ {
		resp, err := g.generateWithFallback(ctx, contents, config)
		if err != nil {
			return "", fmt.Errorf("gemini: generate: %w", err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 || g.tools == nil {
			text := strings.TrimSpace(resp.Text())
			if text == "" {
				return "", relay.ErrEmptyResponse
			}
			return text, nil
		}
		if round >= maxToolRounds {
			return "", fmt.Errorf("gemini: tool loop exceeded %d rounds", maxToolRounds)
		}

		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			contents = append(contents, resp.Candidates[0].Content)
		}
		results := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			g.logger.Debug("tool call", "name", call.Name)
			results = append(results, genai.NewPartFromFunctionResponse(call.Name, g.tools.Call(call.Name, call.Args)))
		}
		contents = append(contents, genai.NewContentFromParts(results, genai.RoleUser))
	}
}

func (g *Gemini) generateConfig(system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.cfg.Temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.tools != nil {
		config.Tools = []*genai.Tool{{FunctionDeclarations: g.tools.Declarations()}}
	}
	return config
}

// userParts orders the text part first, then images in input order.
func userParts(req *relay.Request) []*genai.Part {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	if text := req.Prompt(); text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	return parts
}

var _ relay.Generator = (*Gemini)(nil)
