package repository

import (
	"time"

	"gorm.io/gorm"

	"guildstats/internal/models"
)

// MessageFilter narrows aggregation queries to a guild, channel or author.
// Zero fields are unconstrained.
type MessageFilter struct {
	GuildID   int64
	ChannelID int64
	AuthorID  int64
}

// DayCount is one day of message volume.
type DayCount struct {
	Day   time.Time
	Count int64
}

// AuthorCount ranks one author inside a window.
type AuthorCount struct {
	UserID        int64
	Username      string
	Discriminator string
	Count         int64
}

// ChannelCount ranks one channel inside a window.
type ChannelCount struct {
	ChannelID int64
	Name      string
	Count     int64
}

// WindowTotals summarizes a window: message volume and distinct authors.
type WindowTotals struct {
	Messages int64
	Authors  int64
}

type StatsRepository interface {
	DailyCounts(filter MessageFilter, from, to time.Time) ([]DayCount, error)
	Totals(filter MessageFilter, from, to time.Time) (WindowTotals, error)
	TopAuthors(filter MessageFilter, from, to time.Time, limit int) ([]AuthorCount, error)
	TopChannels(filter MessageFilter, from, to time.Time, limit int) ([]ChannelCount, error)
}

type GormStatsRepository struct {
	db *gorm.DB
}

func NewGormStatsRepository(db *gorm.DB) *GormStatsRepository {
	return &GormStatsRepository{db: db}
}

func (r *GormStatsRepository) scoped(filter MessageFilter, from, to time.Time) *gorm.DB {
	q := r.db.Model(&models.Message{}).
		Where("created_at >= ? AND created_at < ?", from, to)
	if filter.GuildID != 0 {
		q = q.Where("guild_id = ?", filter.GuildID)
	}
	if filter.ChannelID != 0 {
		q = q.Where("channel_id = ?", filter.ChannelID)
	}
	if filter.AuthorID != 0 {
		q = q.Where("author_id = ?", filter.AuthorID)
	}
	return q
}

// DailyCounts returns the sparse per-day message volume inside the window.
// Days with no messages are absent; dense zero-filling happens in the stats
// service.
func (r *GormStatsRepository) DailyCounts(filter MessageFilter, from, to time.Time) ([]DayCount, error) {
	var counts []DayCount
	err := r.scoped(filter, from, to).
		Select("DATE(created_at) as day, COUNT(*) as count").
		Group("1").
		Order("1").
		Scan(&counts).Error
	return counts, err
}

func (r *GormStatsRepository) Totals(filter MessageFilter, from, to time.Time) (WindowTotals, error) {
	var totals WindowTotals
	err := r.scoped(filter, from, to).
		Select("COUNT(*) as messages, COUNT(DISTINCT author_id) as authors").
		Scan(&totals).Error
	return totals, err
}

// TopAuthors ranks authors by message count, descending. Ties break on the
// author ID ascending so repeated queries return a stable order.
func (r *GormStatsRepository) TopAuthors(filter MessageFilter, from, to time.Time, limit int) ([]AuthorCount, error) {
	var authors []AuthorCount
	err := r.scoped(filter, from, to).
		Select("users.id as user_id, users.username, users.discriminator, COUNT(*) as count").
		Joins("INNER JOIN users ON users.id = messages.author_id").
		Group("users.id, users.username, users.discriminator").
		Order("count DESC, users.id ASC").
		Limit(limit).
		Scan(&authors).Error
	return authors, err
}

// TopChannels ranks channels by message count, descending, ties on channel
// ID ascending.
func (r *GormStatsRepository) TopChannels(filter MessageFilter, from, to time.Time, limit int) ([]ChannelCount, error) {
	var channels []ChannelCount
	err := r.scoped(filter, from, to).
		Select("channels.id as channel_id, channels.name, COUNT(*) as count").
		Joins("INNER JOIN channels ON channels.id = messages.channel_id").
		Group("channels.id, channels.name").
		Order("count DESC, channels.id ASC").
		Limit(limit).
		Scan(&channels).Error
	return channels, err
}
