package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"guildstats/internal/repository"
	"guildstats/pkg/cache"
	"guildstats/pkg/logger"
)

// Activity is the windowed summary for a guild, channel or user scope.
type Activity struct {
	Series   []Bucket `json:"series"`
	Messages int64    `json:"messages"`
	Authors  int64    `json:"authors,omitempty"`
	From     string   `json:"from"`
	To       string   `json:"to"`
}

// RankedUser is one entry of a top-authors report.
type RankedUser struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Count  int64    `json:"count"`
	Series []Bucket `json:"series"`
}

// RankedChannel is one entry of a top-channels report.
type RankedChannel struct {
	ChannelID string   `json:"channel_id"`
	Name      string   `json:"name"`
	Count     int64    `json:"count"`
	Series    []Bucket `json:"series"`
}

// Service answers the read-side queries over the mirrored data. Results are
// cached briefly; the mirror only moves once per sync pass anyway.
type Service struct {
	repo  repository.StatsRepository
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewService creates a stats service. cache may be nil to disable caching.
func NewService(repo repository.StatsRepository, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Service{repo: repo, cache: c, ttl: ttl, log: log}
}

// DailyCounts returns the dense, zero-filled per-day series for the scope,
// one entry per calendar day in [from, to] inclusive.
func (s *Service) DailyCounts(filter repository.MessageFilter, from, to time.Time) ([]Bucket, error) {
	sparse, err := s.repo.DailyCounts(filter, from, exclusiveEnd(to))
	if err != nil {
		return nil, err
	}
	return DenseDaily(sparse, from, to), nil
}

// Activity builds the windowed summary: reduced series plus totals.
func (s *Service) Activity(ctx context.Context, filter repository.MessageFilter, from, to time.Time) (*Activity, error) {
	key := cacheKey("activity", filter, from, to, 0)
	var cached Activity
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	series, err := s.DailyCounts(filter, from, to)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.Totals(filter, from, exclusiveEnd(to))
	if err != nil {
		return nil, err
	}

	activity := &Activity{
		Series:   Reduce(series),
		Messages: totals.Messages,
		Authors:  totals.Authors,
		From:     from.Format("2006-01-02"),
		To:       to.Format("2006-01-02"),
	}
	s.toCache(ctx, key, activity)
	return activity, nil
}

// TopUsers ranks authors in the scope by message count, each with its own
// reduced daily series. Ties break on the author ID, so the order is stable.
func (s *Service) TopUsers(ctx context.Context, filter repository.MessageFilter, from, to time.Time, limit int) ([]RankedUser, error) {
	key := cacheKey("top_users", filter, from, to, limit)
	var cached []RankedUser
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	authors, err := s.repo.TopAuthors(filter, from, exclusiveEnd(to), limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedUser, 0, len(authors))
	for _, a := range authors {
		scoped := filter
		scoped.AuthorID = a.UserID
		series, err := s.DailyCounts(scoped, from, to)
		if err != nil {
			return nil, err
		}
		name := a.Username
		if a.Discriminator != "" && a.Discriminator != "0" {
			name = a.Username + "#" + a.Discriminator
		}
		ranked = append(ranked, RankedUser{
			UserID: fmt.Sprintf("%d", a.UserID),
			Name:   name,
			Count:  a.Count,
			Series: Reduce(series),
		})
	}
	s.toCache(ctx, key, ranked)
	return ranked, nil
}

// TopChannels ranks channels in the scope by message count, each with its
// own reduced daily series.
func (s *Service) TopChannels(ctx context.Context, filter repository.MessageFilter, from, to time.Time, limit int) ([]RankedChannel, error) {
	key := cacheKey("top_channels", filter, from, to, limit)
	var cached []RankedChannel
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	channels, err := s.repo.TopChannels(filter, from, exclusiveEnd(to), limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedChannel, 0, len(channels))
	for _, c := range channels {
		scoped := filter
		scoped.ChannelID = c.ChannelID
		series, err := s.DailyCounts(scoped, from, to)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedChannel{
			ChannelID: fmt.Sprintf("%d", c.ChannelID),
			Name:      c.Name,
			Count:     c.Count,
			Series:    Reduce(series),
		})
	}
	s.toCache(ctx, key, ranked)
	return ranked, nil
}

// exclusiveEnd turns an inclusive report day into the exclusive timestamp
// bound the queries use.
func exclusiveEnd(to time.Time) time.Time {
	return to.AddDate(0, 0, 1)
}

func cacheKey(kind string, filter repository.MessageFilter, from, to time.Time, limit int) string {
	return fmt.Sprintf("stats:%s:%d:%d:%d:%s:%s:%d",
		kind, filter.GuildID, filter.ChannelID, filter.AuthorID,
		from.Format("2006-01-02"), to.Format("2006-01-02"), limit)
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	raw, found := s.cache.Get(ctx, key)
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *Service) toCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.LogError(err, "failed to cache stats result", "key", key)
		return
	}
	s.cache.Set(ctx, key, raw, s.ttl)
}
