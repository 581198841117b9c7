package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"google.golang.org/genai"
)

// RetryConfig configures retries with backoff and model fallback.
type RetryConfig struct {
	// FallbackModels are tried in order once the primary model is exhausted.
	FallbackModels []string `yaml:"fallback_models"`

	// MaxRetries per model before moving to the next (default: 2).
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoffMs is the initial retry delay in ms (default: 1000).
	InitialBackoffMs int `yaml:"initial_backoff_ms"`

	// MaxBackoffMs caps the backoff (default: 30000).
	MaxBackoffMs int `yaml:"max_backoff_ms"`

	// RetryOnStatusCodes lists HTTP codes that trigger a retry.
	RetryOnStatusCodes []int `yaml:"retry_on_status_codes"`
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         2,
		InitialBackoffMs:   1000,
		MaxBackoffMs:       30000,
		RetryOnStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

// backoff returns min(initial * 2^attempt, max).
func (r RetryConfig) backoff(attempt int) time.Duration {
	initial := time.Duration(r.InitialBackoffMs) * time.Millisecond
	if initial <= 0 {
		initial = time.Second
	}
	maxBackoff := time.Duration(r.MaxBackoffMs) * time.Millisecond
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	d := initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}

func (r RetryConfig) retryable(code int) bool {
	return code != 0 && slices.Contains(r.RetryOnStatusCodes, code)
}

// statusCode extracts the HTTP status from a GenAI API error, or 0.
func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// generateWithFallback walks the model chain, retrying retryable errors
// with exponential backoff. Non-retryable errors fail immediately.
func (g *Gemini) generateWithFallback(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	chain := append([]string{g.cfg.Model}, g.cfg.Retry.FallbackModels...)
	maxRetries := max(g.cfg.Retry.MaxRetries, 0)

	var lastErr error
	for _, model := range chain {
		for attempt := 0; attempt <= maxRetries; attempt++ {
			resp, err := g.models.GenerateContent(ctx, model, contents, config)
			if err == nil {
				return resp, nil
			}
			lastErr = err

			code := statusCode(err)
			if !g.cfg.Retry.retryable(code) {
				g.logger.Warn("non-retryable generation error", "model", model, "attempt", attempt+1, "status", code, "error", err)
				return nil, err
			}
			if attempt == maxRetries {
				g.logger.Warn("exhausted retries for model", "model", model, "attempts", attempt+1, "error", err)
				break
			}

			delay := g.cfg.Retry.backoff(attempt)
			g.logger.Info("retrying after retryable error",
				"model", model,
				"attempt", attempt+1,
				"status", code,
				"backoff_ms", delay.Milliseconds(),
			)
			if err := g.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("context cancelled during backoff: %w", err)
			}
		}
	}
	return nil, fmt.Errorf("all models failed: %w", lastErr)
}
