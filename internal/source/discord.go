package source

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"guildstats/pkg/errors"
)

// Discord adapts a discordgo session to the Source interface.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord creates a gateway session for the given bot token. The session
// is not opened yet; call Start before the first sync pass.
func NewDiscord(token string) (*Discord, error) {
	if token == "" {
		return nil, fmt.Errorf("no bot token configured")
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Discord{session: s}, nil
}

// Start opens the Discord gateway connection.
func (d *Discord) Start() error {
	return d.session.Open()
}

// Stop closes the Discord gateway connection.
func (d *Discord) Stop() {
	_ = d.session.Close()
}

// ListChannels returns the guild's text channels plus its active threads.
func (d *Discord) ListChannels(_ context.Context, guildID string) ([]ChannelInfo, error) {
	channels, err := d.session.GuildChannels(guildID)
	if err != nil {
		return nil, errors.NewSourceUnavailable("list channels", err)
	}

	var infos []ChannelInfo
	for _, ch := range channels {
		if !isTextBased(ch.Type) {
			continue
		}
		infos = append(infos, ChannelInfo{ID: ch.ID, Name: ch.Name, Type: int(ch.Type)})
	}

	threads, err := d.session.GuildThreadsActive(guildID)
	if err != nil {
		return nil, errors.NewSourceUnavailable("list threads", err)
	}
	for _, th := range threads.Threads {
		infos = append(infos, ChannelInfo{ID: th.ID, Name: th.Name, Type: int(th.Type)})
	}

	return infos, nil
}

// CanRead checks the bot's effective permissions on the channel.
func (d *Discord) CanRead(channelID string) bool {
	if d.session.State == nil || d.session.State.User == nil {
		return false
	}
	perms, err := d.session.UserChannelPermissions(d.session.State.User.ID, channelID)
	if err != nil {
		return false
	}
	required := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory)
	return perms&required == required
}

// FetchMessages requests one page from the channel history, newest first.
func (d *Discord) FetchMessages(_ context.Context, channelID string, limit int, beforeID, afterID string) ([]MessageRecord, error) {
	msgs, err := d.session.ChannelMessages(channelID, limit, beforeID, afterID, "")
	if err != nil {
		return nil, errors.NewSourceUnavailable("fetch messages", err)
	}

	records := make([]MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		rec := MessageRecord{
			ID:        m.ID,
			CreatedAt: m.Timestamp,
			Type:      int(m.Type),
			Content:   m.Content,
		}
		if m.Author != nil {
			rec.Author = AuthorRecord{
				ID:            m.Author.ID,
				Username:      m.Author.Username,
				Discriminator: m.Author.Discriminator,
				Bot:           m.Author.Bot,
				System:        m.Author.System,
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func isTextBased(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return true
	}
	return false
}
