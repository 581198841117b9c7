package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nova-ai/nova/pkg/nova/channels"
	"github.com/nova-ai/nova/pkg/nova/config"
	"github.com/nova-ai/nova/pkg/nova/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd("1.2.3")
	assert.Equal(t, "1.2.3", root.Version)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "chat", "setup", "config", "health"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, false, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger = newLogger(config.LoggingConfig{Level: "error", Format: "text"}, true, &buf)
	logger.Debug("verbose wins")
	assert.Contains(t, buf.String(), "msg=\"verbose wins\"")
}

func TestMaskSecret(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "${GENAI_API_KEY}", maskSecret("${GENAI_API_KEY}"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "abcd****wxyz", maskSecret("abcdefghijklmnopqrstuvwxyz"))
}

func TestHealthURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://localhost:8080/healthz", healthURL(":8080"))
	assert.Equal(t, "http://localhost:9000/healthz", healthURL("0.0.0.0:9000"))
	assert.Equal(t, "http://10.0.0.5:8080/healthz", healthURL("10.0.0.5:8080"))
}

func TestConfigInit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init", "--path", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "${DISCORD_TOKEN}")
	assert.Contains(t, string(data), "${GENAI_API_KEY}")

	cfg, err := config.ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().History, cfg.History)

	again := NewRootCmd("test")
	again.SetOut(&bytes.Buffer{})
	again.SetArgs([]string{"config", "init", "--path", path})
	assert.Error(t, again.Execute())
}

func TestSetupReset(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, config.StoreKeyring(config.KeyringDiscordToken, "tok"))
	require.NoError(t, config.StoreKeyring(config.KeyringGenAIKey, "key"))

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"setup", "--reset"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "Removed stored secrets")
	assert.Empty(t, config.GetKeyring(config.KeyringDiscordToken))
	assert.Empty(t, config.GetKeyring(config.KeyringGenAIKey))

	// Already empty.
	require.NoError(t, resetSecrets(&bytes.Buffer{}))
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, req *relay.Request) (string, error) {
	return "echo: " + req.UserText, nil
}

type recordingConversation struct {
	mu      sync.Mutex
	replies []string
}

func (c *recordingConversation) Send(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, text)
	return nil
}

func (c *recordingConversation) Reply(ctx context.Context, text string) error {
	return c.Send(ctx, text)
}

func (c *recordingConversation) History(context.Context, int, string) ([]channels.Message, error) {
	return nil, nil
}

func (c *recordingConversation) Members(context.Context) ([]channels.Member, bool, error) {
	return nil, false, nil
}

func (c *recordingConversation) Typing(context.Context) error { return nil }

func TestServeLoop(t *testing.T) {
	t.Parallel()

	orch := relay.NewOrchestrator(relay.Config{CommandPrefix: "!", ChunkSize: 2000}, echoGenerator{}, nil, nil, nil)
	conv := &recordingConversation{}

	in := make(chan *channels.Incoming, 2)
	in <- &channels.Incoming{
		Message:      channels.Message{ID: "1", AuthorID: "u", Content: "!ask hi"},
		Conversation: conv,
		BotID:        "bot",
	}
	in <- &channels.Incoming{
		Message:      channels.Message{ID: "2", AuthorID: "u", Content: "not for the bot"},
		Conversation: conv,
		BotID:        "bot",
	}
	close(in)

	var wg sync.WaitGroup
	serveLoop(context.Background(), context.Background(), in, orch, &wg)
	wg.Wait()

	assert.Equal(t, []string{"echo: hi"}, conv.replies)
}
