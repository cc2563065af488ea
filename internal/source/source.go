package source

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"guildstats/internal/models"
	"guildstats/pkg/errors"
)

// Source is the paginated read API of the external message platform. The
// sync engine never talks to Discord directly; it consumes this interface so
// tests can drive the state machine with scripted pages.
type Source interface {
	// ListChannels returns the current channel set for a guild, including
	// active threads. Order is whatever the platform returns; callers that
	// need determinism must sort.
	ListChannels(ctx context.Context, guildID string) ([]ChannelInfo, error)
	// CanRead reports whether the ingesting identity may view the channel
	// and read its history.
	CanRead(channelID string) bool
	// FetchMessages returns up to limit messages from one channel, newest
	// first. At most one of beforeID/afterID may be set; empty strings mean
	// no bound, which yields the most recent messages.
	FetchMessages(ctx context.Context, channelID string, limit int, beforeID, afterID string) ([]MessageRecord, error)
}

// ChannelInfo is a raw channel listing entry as the platform reports it.
type ChannelInfo struct {
	ID   string
	Name string
	Type int
}

// AuthorRecord is the author metadata embedded in a fetched message.
type AuthorRecord struct {
	ID            string
	Username      string
	Discriminator string
	Bot           bool
	System        bool
}

// MessageRecord is one raw page entry. Fields are loosely typed on purpose;
// Validate converts them into store entities and rejects non-conforming
// records before anything touches the database.
type MessageRecord struct {
	ID        string
	CreatedAt time.Time
	Type      int
	Content   string
	Author    AuthorRecord
}

// ParseSnowflake converts a platform identifier into its numeric form.
// Snowflakes are unsigned 64-bit values whose numeric order matches creation
// order, which is what the sync cursor depends on.
func ParseSnowflake(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty snowflake")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad snowflake %q: %w", s, err)
	}
	return id, nil
}

// FormatSnowflake renders a numeric identifier back to wire form.
func FormatSnowflake(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// Validate converts a raw channel entry into a store row.
func (c ChannelInfo) Validate(guildID int64) (models.Channel, error) {
	id, err := ParseSnowflake(c.ID)
	if err != nil {
		return models.Channel{}, errors.NewMalformedRecord("channel listing", err)
	}
	if c.Name == "" {
		return models.Channel{}, errors.NewMalformedRecord("channel listing", fmt.Errorf("channel %s has no name", c.ID))
	}
	return models.Channel{ID: id, Name: c.Name, GuildID: guildID}, nil
}

// Validate converts a raw page entry into store rows. storeContent controls
// whether message text is kept verbatim or only its length.
func (r MessageRecord) Validate(guildID, channelID int64, storeContent bool) (models.Message, models.User, error) {
	msgID, err := ParseSnowflake(r.ID)
	if err != nil {
		return models.Message{}, models.User{}, errors.NewMalformedRecord("message record", err)
	}
	authorID, err := ParseSnowflake(r.Author.ID)
	if err != nil {
		return models.Message{}, models.User{}, errors.NewMalformedRecord("message record", fmt.Errorf("message %s author: %w", r.ID, err))
	}
	if r.CreatedAt.IsZero() {
		return models.Message{}, models.User{}, errors.NewMalformedRecord("message record", fmt.Errorf("message %s has no timestamp", r.ID))
	}

	msg := models.Message{
		ID:            msgID,
		CreatedAt:     r.CreatedAt,
		Type:          r.Type,
		ContentLength: utf8.RuneCountInString(r.Content),
		AuthorID:      authorID,
		ChannelID:     channelID,
		GuildID:       guildID,
	}
	if storeContent {
		msg.Content = r.Content
	}

	user := models.User{
		ID:            authorID,
		Bot:           r.Author.Bot,
		System:        r.Author.System,
		Username:      r.Author.Username,
		Discriminator: r.Author.Discriminator,
	}
	return msg, user, nil
}
