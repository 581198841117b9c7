// Package health serves and queries the bot's health endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nova-ai/nova/pkg/nova/channels"
)

// Path is the endpoint route.
const Path = "/healthz"

// StatusProvider reports channel health.
type StatusProvider interface {
	Health() channels.HealthStatus
}

// Report is the JSON body served at Path.
type Report struct {
	Status        string    `json:"status"`
	Connected     bool      `json:"connected"`
	LastMessageAt time.Time `json:"last_message_at"`
	ErrorCount    int       `json:"error_count"`
	Uptime        string    `json:"uptime"`
}

// Server is the health HTTP server.
type Server struct {
	provider  StatusProvider
	address   string
	server    *http.Server
	logger    *slog.Logger
	startedAt time.Time
}

// NewServer creates a health server for provider.
func NewServer(provider StatusProvider, address string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if address == "" {
		address = ":8080"
	}
	return &Server{
		provider:  provider,
		address:   address,
		logger:    logger.With("component", "health"),
		startedAt: time.Now(),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleHealth)
	return securityHeaders(mux)
}

// Start starts listening in the background.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server error", "error", err)
		}
	}()
	s.logger.Info("health server started", "address", s.address)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleHealth implements GET /healthz. A disconnected channel is reported
// with 503 so container health checks fail.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	st := s.provider.Health()
	uptime := time.Since(s.startedAt).Round(time.Second).String()
	if uptime == "0s" {
		uptime = "<1s"
	}

	report := Report{
		Status:        "ok",
		Connected:     st.Connected,
		LastMessageAt: st.LastMessageAt,
		ErrorCount:    st.ErrorCount,
		Uptime:        uptime,
	}
	code := http.StatusOK
	if !st.Connected {
		report.Status = "disconnected"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Check queries a health endpoint. A 503 still yields a decoded report;
// the returned status code tells the caller whether the bot is healthy.
func Check(ctx context.Context, client *http.Client, url string) (*Report, int, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", url, err)
	}
	defer resp.Body.Close()

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding health report: %w", err)
	}
	return &report, resp.StatusCode, nil
}
