package ingest

import (
	"context"
	"time"

	"guildstats/internal/models"
	"guildstats/internal/source"
	"guildstats/pkg/errors"
	"guildstats/pkg/logger"
)

// Store interfaces consumed by the sync engine. The gorm repositories
// satisfy them in production; tests use in-memory fakes.

type ChannelStore interface {
	Upsert(channel models.Channel) error
}

type UserStore interface {
	Upsert(user models.User) error
}

type MessageStore interface {
	// Insert persists a message once. inserted is false when the ID was
	// already known.
	Insert(message models.Message) (inserted bool, err error)
	// IDBounds returns the smallest and largest persisted message IDs for
	// the channel; ok is false for an empty channel.
	IDBounds(channelID int64) (min, max int64, ok bool, err error)
	// RandomID picks one persisted message ID uniformly at random.
	RandomID(channelID int64) (id int64, ok bool, err error)
}

// syncState is the phase of the per-channel pagination state machine.
type syncState int

const (
	stateBackfill syncState = iota
	stateForward
	stateGapRepair
	stateDone
)

func (s syncState) String() string {
	switch s {
	case stateBackfill:
		return "backfill"
	case stateForward:
		return "forward"
	case stateGapRepair:
		return "gap_repair"
	default:
		return "done"
	}
}

// ChannelSyncer converges one channel's mirror with the source: backfill
// below the earliest known message, forward sync above the latest, then a
// random probe for gaps in between. All writes are idempotent, so a crash or
// source failure at any point leaves a state the next pass resumes from.
type ChannelSyncer struct {
	source       source.Source
	messages     MessageStore
	users        UserStore
	limiter      Limiter
	pageSize     int
	retention    time.Time
	storeContent bool
	log          *logger.Logger
}

// SyncerOptions configures a ChannelSyncer.
type SyncerOptions struct {
	// PageSize is the per-request message limit.
	PageSize int
	// Retention is the date below which backfill stops pursuing history.
	Retention time.Time
	// StoreContent keeps message text verbatim instead of its length only.
	StoreContent bool
}

// DefaultSyncerOptions mirrors the platform's maximum page size and an
// effectively unbounded retention window.
func DefaultSyncerOptions() SyncerOptions {
	return SyncerOptions{
		PageSize:  100,
		Retention: time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// NewChannelSyncer wires a syncer against a source, stores and a shared
// request limiter.
func NewChannelSyncer(src source.Source, messages MessageStore, users UserStore, limiter Limiter, opts SyncerOptions, log *logger.Logger) *ChannelSyncer {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &ChannelSyncer{
		source:       src,
		messages:     messages,
		users:        users,
		limiter:      limiter,
		pageSize:     opts.PageSize,
		retention:    opts.Retention,
		storeContent: opts.StoreContent,
		log:          log,
	}
}

// pageResult summarizes what storing one page changed.
type pageResult struct {
	seen         int
	added        int
	malformed    int
	oldestSeen   int64
	newestSeen   int64
	hitRetention bool
}

// Sync runs the state machine for one channel until it reaches done or a
// request fails. Returned errors are classified: store failures are fatal to
// the whole pass, source failures only to this channel.
func (s *ChannelSyncer) Sync(ctx context.Context, channel models.Channel) error {
	log := s.log.WithChannel(channel.ID, channel.Name)

	// The cursor is derived, not stored: bounds of what is already persisted.
	minKnown, maxKnown, ok, err := s.messages.IDBounds(channel.ID)
	if err != nil {
		return errors.NewStoreUnavailable("derive cursor", err)
	}

	state := stateBackfill
	var lowerBound, upperBound int64
	if ok {
		lowerBound = minKnown
		upperBound = maxKnown
	}

	var inserted int
	for state != stateDone {
		var beforeID, afterID int64
		switch state {
		case stateBackfill:
			beforeID = lowerBound
		case stateForward:
			afterID = upperBound
		case stateGapRepair:
			probe, found, err := s.messages.RandomID(channel.ID)
			if err != nil {
				return errors.NewStoreUnavailable("pick gap probe", err)
			}
			if !found {
				// Nothing persisted, nothing to repair.
				state = stateDone
				continue
			}
			beforeID = probe
		}

		page, err := s.fetchPage(ctx, channel, state, beforeID, afterID)
		if err != nil {
			return err
		}

		result, err := s.storePage(log, channel, page)
		if err != nil {
			return err
		}
		inserted += result.added

		switch state {
		case stateBackfill:
			// A first page on an empty cursor also establishes the upper
			// bound, so forward sync starts strictly above what backfill
			// stored. This holds even when the same page hits retention.
			if result.newestSeen > upperBound {
				upperBound = result.newestSeen
			}
			if result.hitRetention {
				// Retention boundary reached; older history is deliberately
				// not pursued.
				state = stateForward
				continue
			}
			// A page of only malformed records still counts as progress,
			// otherwise one corrupt page would hide all history below it.
			if result.added == 0 && result.malformed == 0 {
				state = stateForward
				continue
			}
			if result.oldestSeen == 0 {
				// Nothing on this page carried a usable ID to move the
				// cursor past, so stop rather than refetch it forever.
				state = stateForward
				continue
			}
			lowerBound = result.oldestSeen
		case stateForward:
			if result.seen == 0 {
				state = stateGapRepair
				continue
			}
			if result.newestSeen > upperBound {
				upperBound = result.newestSeen
			}
		case stateGapRepair:
			if result.added > 0 {
				// A gap was at least partially filled; let the forward
				// cursor drive further progress.
				state = stateForward
			} else {
				state = stateDone
			}
		}
	}

	log.Info("channel up to date", "inserted", inserted)
	return nil
}

// fetchPage throttles, then requests one page. The limiter runs before every
// request so consecutive requests are spaced by the configured delay
// regardless of which state issued them.
func (s *ChannelSyncer) fetchPage(ctx context.Context, channel models.Channel, state syncState, beforeID, afterID int64) ([]source.MessageRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.NewSourceUnavailable("throttle", err)
	}

	page, err := s.source.FetchMessages(ctx, source.FormatSnowflake(channel.ID), s.pageSize,
		source.FormatSnowflake(beforeID), source.FormatSnowflake(afterID))
	if err != nil {
		if errors.IsSourceUnavailable(err) {
			return nil, err
		}
		return nil, errors.NewSourceUnavailable("fetch messages", err)
	}

	pagesFetched.WithLabelValues(state.String()).Inc()
	return page, nil
}

// storePage validates and persists one page. Author upsert always precedes
// the message insert, so a crash in between leaves an author without a
// message, never the reverse. Malformed records are skipped individually.
func (s *ChannelSyncer) storePage(log *logger.Logger, channel models.Channel, page []source.MessageRecord) (pageResult, error) {
	var result pageResult

	for _, record := range page {
		msg, user, err := record.Validate(channel.GuildID, channel.ID, s.storeContent)
		if err != nil {
			result.malformed++
			recordsMalformed.Inc()
			log.LogError(err, "skipping malformed record", "record_id", record.ID)
			// A malformed record with a parseable ID still moves the
			// cursor, so the surrounding history is not lost with it.
			if id, idErr := source.ParseSnowflake(record.ID); idErr == nil && id != 0 {
				if result.oldestSeen == 0 || id < result.oldestSeen {
					result.oldestSeen = id
				}
				if id > result.newestSeen {
					result.newestSeen = id
				}
			}
			continue
		}

		if msg.CreatedAt.Before(s.retention) {
			result.hitRetention = true
			return result, nil
		}

		result.seen++
		if result.oldestSeen == 0 || msg.ID < result.oldestSeen {
			result.oldestSeen = msg.ID
		}
		if msg.ID > result.newestSeen {
			result.newestSeen = msg.ID
		}

		if err := s.users.Upsert(user); err != nil {
			return result, errors.NewStoreUnavailable("upsert author", err)
		}

		inserted, err := s.messages.Insert(msg)
		if err != nil {
			return result, errors.NewStoreUnavailable("insert message", err)
		}
		if inserted {
			result.added++
			messagesInserted.Inc()
		}
	}

	return result, nil
}
