// Package discord implements the Discord channel for NOVA using discordgo.
//
// Features:
//   - Mention and prefix-command triggers (parsed by the relay)
//   - Channel history, oldest first
//   - Typing indicators
//   - Guild member directory for mention resolution
//   - Guild and channel allowlists
//   - Automatic reconnection via discordgo's gateway
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nova-ai/nova/pkg/nova/channels"
)

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// AllowedGuilds restricts which guild (server) IDs the bot responds in.
	// Empty means respond in all guilds.
	AllowedGuilds []string `yaml:"allowed_guilds"`

	// AllowedChannels restricts which channel IDs the bot responds in.
	// Empty means respond in all channels.
	AllowedChannels []string `yaml:"allowed_channels"`

	// SendTyping sends "typing..." indicators while processing.
	SendTyping bool `yaml:"send_typing"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendTyping: true,
	}
}

// Discord connects to the gateway and emits one channels.Incoming per
// accepted message.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	// messages is the channel for incoming messages forwarded to the relay.
	messages chan *channels.Incoming

	// connected tracks connection state.
	connected atomic.Bool

	// lastMsg tracks the last message timestamp for health.
	lastMsg atomic.Value // time.Time

	// errorCount tracks consecutive send errors.
	errorCount atomic.Int64
}

// New creates a new Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.Incoming, 256),
	}
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if token := strings.TrimSpace(d.cfg.Token); token == "" || strings.HasPrefix(token, "$") {
		return fmt.Errorf("discord: bot token is required")
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	// Message content is a privileged intent; guild members feeds the
	// state cache used for mention resolution.
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers

	session.AddHandler(d.onMessageCreate)
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		d.connected.Store(false)
		d.logger.Warn("discord: gateway disconnected")
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		d.connected.Store(true)
		d.logger.Info("discord: gateway resumed")
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.connected.Store(true)

	user := session.State.User
	d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)

	return nil
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	if d.session != nil {
		if err := d.session.Close(); err != nil {
			d.logger.Warn("discord: closing session", "error", err)
		}
	}
	d.connected.Store(false)
	d.logger.Info("discord: disconnected")
	return nil
}

// Receive returns the incoming messages channel.
func (d *Discord) Receive() <-chan *channels.Incoming {
	return d.messages
}

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
	}
}

// ---------- Event Handlers ----------

// onMessageCreate handles incoming Discord messages.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}

	if !d.accept(m.Message, botID) {
		return
	}

	conv := &conversation{
		api:       s,
		state:     s.State,
		channelID: m.ChannelID,
		guildID:   m.GuildID,
		messageID: m.ID,
		typing:    d.cfg.SendTyping,
		onError:   func() { d.errorCount.Add(1) },
		onSuccess: func() { d.errorCount.Store(0) },
	}

	incoming := &channels.Incoming{
		Message:      convertMessage(m.Message),
		Conversation: conv,
		BotID:        botID,
	}

	d.lastMsg.Store(time.Now())

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", m.ID)
	}
}

// accept applies the self/bot guards and the allowlists.
func (d *Discord) accept(m *discordgo.Message, botID string) bool {
	if m == nil || m.Author == nil {
		return false
	}
	// Ignore messages from the bot itself and from other bots.
	if m.Author.ID == botID || m.Author.Bot {
		return false
	}
	if len(d.cfg.AllowedGuilds) > 0 && m.GuildID != "" && !slices.Contains(d.cfg.AllowedGuilds, m.GuildID) {
		return false
	}
	if len(d.cfg.AllowedChannels) > 0 && !slices.Contains(d.cfg.AllowedChannels, m.ChannelID) {
		return false
	}
	return true
}

// ---------- Helpers ----------

// convertMessage maps a discordgo message to the platform-neutral snapshot.
func convertMessage(m *discordgo.Message) channels.Message {
	msg := channels.Message{
		ID:        m.ID,
		Content:   m.Content,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.IsBot = m.Author.Bot
		msg.AuthorName = authorName(m.Author, m.Member)
	}
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, channels.Attachment{
			URL:         att.URL,
			ContentType: att.ContentType,
			Filename:    att.Filename,
		})
	}
	for _, u := range m.Mentions {
		if u != nil {
			msg.Mentions = append(msg.Mentions, u.ID)
		}
	}
	return msg
}

// authorName prefers the guild nickname, then the global display name.
func authorName(u *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// convertMember maps a guild member to a directory entry.
func convertMember(m *discordgo.Member) (channels.Member, bool) {
	if m == nil || m.User == nil {
		return channels.Member{}, false
	}
	return channels.Member{
		ID:          m.User.ID,
		DisplayName: authorName(m.User, m),
		Username:    m.User.Username,
	}, true
}
