package media

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// ErrBlocked is returned for URLs the guard refuses to fetch.
var ErrBlocked = errors.New("url blocked")

// GuardConfig configures which hosts image downloads may reach.
type GuardConfig struct {
	// AllowPrivate permits loopback and private addresses (tests, LAN CDNs).
	AllowPrivate bool `yaml:"allow_private"`

	// AllowedHosts, when set, is the only set of hosts that may be fetched.
	AllowedHosts []string `yaml:"allowed_hosts"`

	// BlockedHosts are always refused.
	BlockedHosts []string `yaml:"blocked_hosts"`
}

var builtinBlockedHosts = []string{
	"localhost.localdomain",
	"metadata.google.internal",
}

// Guard validates URLs before the fetcher dials them. Hostnames are
// resolved first so a public name pointing at an internal address is
// still refused.
type Guard struct {
	cfg    GuardConfig
	logger *slog.Logger

	// lookup is swapped in tests.
	lookup func(host string) ([]string, error)
}

// NewGuard creates a guard from config.
func NewGuard(cfg GuardConfig, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		cfg:    cfg,
		logger: logger.With("component", "url_guard"),
		lookup: net.LookupHost,
	}
}

// Check returns nil when rawURL may be fetched.
func (g *Guard) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid url: %v", ErrBlocked, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return g.block(rawURL, "scheme %q not allowed", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return g.block(rawURL, "no host")
	}
	if host == "localhost" && !g.cfg.AllowPrivate {
		return g.block(rawURL, "localhost not allowed")
	}
	if containsFold(builtinBlockedHosts, host) || containsFold(g.cfg.BlockedHosts, host) {
		return g.block(rawURL, "host %s is blocked", host)
	}
	if len(g.cfg.AllowedHosts) > 0 && !containsFold(g.cfg.AllowedHosts, host) {
		return g.block(rawURL, "host %s is not in the allowed list", host)
	}

	addrs, err := g.lookup(host)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", host, err)
	}
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil {
			return g.block(rawURL, "unrecognised address %q", a)
		}
		if reason := g.disallowedIP(ip); reason != "" {
			return g.block(rawURL, "%s address %s", reason, ip)
		}
	}
	return nil
}

// disallowedIP names the class of a refused address, or returns "".
func (g *Guard) disallowedIP(ip net.IP) string {
	switch {
	case ip.IsUnspecified():
		return "unspecified"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		// Covers the 169.254.169.254 metadata endpoint.
		return "link-local"
	case g.cfg.AllowPrivate:
		return ""
	case ip.IsLoopback():
		return "loopback"
	case ip.IsPrivate():
		return "private"
	}
	return ""
}

func (g *Guard) block(rawURL, format string, args ...any) error {
	reason := fmt.Sprintf(format, args...)
	g.logger.Warn("image url blocked", "url", rawURL, "reason", reason)
	return fmt.Errorf("%w: %s", ErrBlocked, reason)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
