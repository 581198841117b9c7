package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(maxSize int64) *Fetcher {
	return NewFetcher(Config{
		MaxImageSize: maxSize,
		Timeout:      "5s",
		Guard:        GuardConfig{AllowPrivate: true},
	}, nil)
}

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("PNGDATA"))
		case "/big.png":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/slow.png":
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(32)

	data, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	_, err = f.Fetch(context.Background(), srv.URL+"/big.png")
	require.ErrorIs(t, err, ErrTooLarge)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, srv.URL+"/slow.png")
	require.Error(t, err)
}

func TestFetcher_GuardRunsFirst(t *testing.T) {
	t.Parallel()

	f := NewFetcher(DefaultConfig(), nil)
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/a.png")
	require.ErrorIs(t, err, ErrBlocked)
}

func TestFetcher_RedirectsAreGuarded(t *testing.T) {
	t.Parallel()

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hop.png":
			http.Redirect(w, r, srvURL+"/ok.png", http.StatusFound)
		case "/escape.png":
			port := strings.TrimPrefix(srvURL, "http://127.0.0.1:")
			http.Redirect(w, r, "http://localhost:"+port+"/ok.png", http.StatusFound)
		case "/loop.png":
			http.Redirect(w, r, srvURL+"/loop.png", http.StatusFound)
		case "/ok.png":
			_, _ = w.Write([]byte("PNGDATA"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	f := NewFetcher(Config{
		Timeout: "5s",
		Guard:   GuardConfig{AllowPrivate: true, BlockedHosts: []string{"localhost"}},
	}, nil)

	data, err := f.Fetch(context.Background(), srv.URL+"/hop.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)

	_, err = f.Fetch(context.Background(), srv.URL+"/escape.png")
	require.ErrorIs(t, err, ErrBlocked)
	assert.Contains(t, err.Error(), "host localhost is blocked")

	_, err = f.Fetch(context.Background(), srv.URL+"/loop.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 10 redirects")
}

func TestConfig_TimeoutDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3*time.Second, Config{Timeout: "3s"}.TimeoutDuration())
	assert.Equal(t, 15*time.Second, Config{Timeout: "bogus"}.TimeoutDuration())
	assert.Equal(t, 15*time.Second, Config{}.TimeoutDuration())
}
