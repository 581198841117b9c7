// Package media downloads message attachments for the generation backend.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultMaxImageSize matches the Gemini inline-data limit.
const DefaultMaxImageSize = 20 * 1024 * 1024

const maxRedirects = 10

// ErrTooLarge is returned when a body exceeds the configured limit.
var ErrTooLarge = errors.New("media exceeds size limit")

// Config configures the fetcher.
type Config struct {
	// MaxImageSize is the largest body accepted, in bytes.
	MaxImageSize int64 `yaml:"max_image_size"`

	// Timeout is the per-request timeout (e.g. "15s").
	Timeout string `yaml:"timeout"`

	// Guard restricts reachable hosts.
	Guard GuardConfig `yaml:"guard"`
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxImageSize: DefaultMaxImageSize,
		Timeout:      "15s",
	}
}

// TimeoutDuration parses Timeout, falling back to 15s.
func (c Config) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 15 * time.Second
}

// Fetcher downloads attachment bytes over HTTP.
type Fetcher struct {
	client  *http.Client
	guard   *Guard
	maxSize int64
	logger  *slog.Logger
}

// NewFetcher creates a fetcher. The per-image deadline comes from the
// caller's context; the client timeout is only a backstop.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := cfg.MaxImageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	guard := NewGuard(cfg.Guard, logger)
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.TimeoutDuration(),
			// Every hop is checked, not only the attachment URL.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("media: stopped after %d redirects", maxRedirects)
				}
				return guard.Check(req.URL.String())
			},
		},
		guard:   guard,
		maxSize: maxSize,
		logger:  logger.With("component", "media"),
	}
}

// Fetch downloads url. Non-2xx responses and oversized bodies are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.guard.Check(url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("media: create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("media: download %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > f.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("media: reading body: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxSize)
	}

	f.logger.Debug("image downloaded", "url", url, "bytes", len(data))
	return data, nil
}
