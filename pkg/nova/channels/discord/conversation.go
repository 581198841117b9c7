package discord

import (
	"context"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/nova-ai/nova/pkg/nova/channels"
)

const (
	// maxHistoryPage is the Discord limit for one ChannelMessages call.
	maxHistoryPage = 100

	// maxMemberPage is the Discord limit for one GuildMembers call.
	maxMemberPage = 1000
)

// restAPI is the subset of *discordgo.Session used by a conversation.
type restAPI interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

// conversation implements channels.Conversation for one inbound message.
type conversation struct {
	api       restAPI
	state     *discordgo.State
	channelID string
	guildID   string
	messageID string
	typing    bool

	onError   func()
	onSuccess func()
}

// History fetches up to limit messages before the given ID, oldest first.
func (c *conversation) History(ctx context.Context, limit int, before string) ([]channels.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	limit = min(limit, maxHistoryPage)

	raw, err := c.api.ChannelMessages(c.channelID, limit, before, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: fetching history: %w", err)
	}

	// Discord returns newest first.
	msgs := make([]channels.Message, 0, len(raw))
	for _, m := range slices.Backward(raw) {
		if m == nil {
			continue
		}
		msgs = append(msgs, convertMessage(m))
	}
	return msgs, nil
}

// Send posts text to the channel.
func (c *conversation) Send(ctx context.Context, text string) error {
	return c.send(ctx, &discordgo.MessageSend{Content: text})
}

// Reply posts text as a reply to the inbound message.
func (c *conversation) Reply(ctx context.Context, text string) error {
	if c.messageID == "" {
		return channels.ErrNoReplyTarget
	}
	return c.send(ctx, &discordgo.MessageSend{
		Content: text,
		Reference: &discordgo.MessageReference{
			MessageID: c.messageID,
			ChannelID: c.channelID,
			GuildID:   c.guildID,
		},
	})
}

func (c *conversation) send(ctx context.Context, msg *discordgo.MessageSend) error {
	if c.api == nil {
		return channels.ErrChannelDisconnected
	}
	// Only explicit user mentions ping; @everyone, @here and roles never do.
	msg.AllowedMentions = &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
	}
	if _, err := c.api.ChannelMessageSendComplex(c.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		if c.onError != nil {
			c.onError()
		}
		return fmt.Errorf("discord: sending message: %w", err)
	}
	if c.onSuccess != nil {
		c.onSuccess()
	}
	return nil
}

// Members returns the guild member directory. The gateway state cache is
// used when populated; otherwise one REST page is fetched. Direct messages
// have no directory.
func (c *conversation) Members(ctx context.Context) ([]channels.Member, bool, error) {
	if c.guildID == "" {
		return nil, false, nil
	}

	if members := cachedMembers(c.state, c.guildID); len(members) > 0 {
		return members, true, nil
	}

	raw, err := c.api.GuildMembers(c.guildID, "", maxMemberPage, discordgo.WithContext(ctx))
	if err != nil {
		return nil, false, fmt.Errorf("discord: listing members: %w", err)
	}
	return convertMembers(raw), true, nil
}

// cachedMembers snapshots the guild's members from the gateway state. The
// gateway goroutines mutate the slice and the members in place, so both are
// read under the state lock.
func cachedMembers(state *discordgo.State, guildID string) []channels.Member {
	if state == nil {
		return nil
	}
	g, err := state.Guild(guildID)
	if err != nil {
		return nil
	}
	state.RLock()
	defer state.RUnlock()
	return convertMembers(g.Members)
}

func convertMembers(raw []*discordgo.Member) []channels.Member {
	members := make([]channels.Member, 0, len(raw))
	for _, m := range raw {
		if member, ok := convertMember(m); ok {
			members = append(members, member)
		}
	}
	return members
}

// Typing shows the typing indicator when enabled.
func (c *conversation) Typing(ctx context.Context) error {
	if !c.typing {
		return nil
	}
	return c.api.ChannelTyping(c.channelID, discordgo.WithContext(ctx))
}

var _ channels.Conversation = (*conversation)(nil)
