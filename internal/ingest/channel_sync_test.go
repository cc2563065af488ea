package ingest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildstats/internal/models"
	"guildstats/internal/source"
	"guildstats/pkg/errors"
	"guildstats/pkg/logger"
)

// test fixture base: message n is created n minutes after this instant, so
// higher snowflakes are strictly later.
var baseTime = time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: false, Output: io.Discard})
}

// fetchCall records the bounds of one page request.
type fetchCall struct {
	beforeID string
	afterID  string
}

// fakeSource serves scripted message records with Discord-like pagination:
// pages come back newest first, a before bound selects the highest IDs below
// it, an after bound the lowest IDs above it.
type fakeSource struct {
	records    []source.MessageRecord
	channels   []source.ChannelInfo
	unreadable map[string]bool
	fetches    []fetchCall
	failAt     int // 1-based fetch index that fails, 0 = never
}

func (f *fakeSource) ListChannels(_ context.Context, _ string) ([]source.ChannelInfo, error) {
	return f.channels, nil
}

func (f *fakeSource) CanRead(channelID string) bool {
	return !f.unreadable[channelID]
}

func (f *fakeSource) FetchMessages(_ context.Context, _ string, limit int, beforeID, afterID string) ([]source.MessageRecord, error) {
	f.fetches = append(f.fetches, fetchCall{beforeID: beforeID, afterID: afterID})
	if f.failAt > 0 && len(f.fetches) == f.failAt {
		return nil, errors.NewSourceUnavailable("fetch messages", fmt.Errorf("injected failure"))
	}

	var before, after int64
	if beforeID != "" {
		before, _ = source.ParseSnowflake(beforeID)
	}
	if afterID != "" {
		after, _ = source.ParseSnowflake(afterID)
	}

	var matched []source.MessageRecord
	for _, r := range f.records {
		id, _ := source.ParseSnowflake(r.ID)
		if before != 0 && id >= before {
			continue
		}
		if after != 0 && id <= after {
			continue
		}
		matched = append(matched, r)
	}

	// Newest first.
	sort.Slice(matched, func(i, j int) bool {
		a, _ := source.ParseSnowflake(matched[i].ID)
		b, _ := source.ParseSnowflake(matched[j].ID)
		return a > b
	})

	if after != 0 && len(matched) > limit {
		// An after bound pages from the bound upward: the lowest IDs above it.
		matched = matched[len(matched)-limit:]
	} else if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// msgKey scopes fixture messages per channel; the test fixtures reuse small
// IDs across channels, unlike real snowflakes.
type msgKey struct {
	channel int64
	id      int64
}

type fakeMessageStore struct {
	messages  map[msgKey]models.Message
	probes    []int64 // scripted RandomID results, then falls back to max
	insertErr error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: map[msgKey]models.Message{}}
}

func (s *fakeMessageStore) Insert(m models.Message) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	key := msgKey{channel: m.ChannelID, id: m.ID}
	if _, known := s.messages[key]; known {
		return false, nil
	}
	s.messages[key] = m
	return true, nil
}

func (s *fakeMessageStore) IDBounds(channelID int64) (int64, int64, bool, error) {
	var min, max int64
	for key := range s.messages {
		if key.channel != channelID {
			continue
		}
		if min == 0 || key.id < min {
			min = key.id
		}
		if key.id > max {
			max = key.id
		}
	}
	if min == 0 {
		return 0, 0, false, nil
	}
	return min, max, true, nil
}

func (s *fakeMessageStore) RandomID(channelID int64) (int64, bool, error) {
	if len(s.probes) > 0 {
		probe := s.probes[0]
		s.probes = s.probes[1:]
		return probe, true, nil
	}
	_, max, ok, _ := s.IDBounds(channelID)
	return max, ok, nil
}

func (s *fakeMessageStore) countByChannel(channelID int64) int {
	count := 0
	for key := range s.messages {
		if key.channel == channelID {
			count++
		}
	}
	return count
}

func (s *fakeMessageStore) minID(channelID int64) int64 {
	min, _, _, _ := s.IDBounds(channelID)
	return min
}

type fakeUserStore struct {
	users     map[int64]models.User
	upsertErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[int64]models.User{}}
}

func (s *fakeUserStore) Upsert(u models.User) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if existing, known := s.users[u.ID]; known {
		existing.Username = u.Username
		existing.Discriminator = u.Discriminator
		s.users[u.ID] = existing
		return nil
	}
	s.users[u.ID] = u
	return nil
}

type fakeChannelStore struct {
	channels  map[int64]models.Channel
	upsertErr error
}

func newFakeChannelStore() *fakeChannelStore {
	return &fakeChannelStore{channels: map[int64]models.Channel{}}
}

func (s *fakeChannelStore) Upsert(ch models.Channel) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.channels[ch.ID] = ch
	return nil
}

// genRecords builds messages with IDs 1..n, each one minute apart, all from
// the same author.
func genRecords(n int) []source.MessageRecord {
	records := make([]source.MessageRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, source.MessageRecord{
			ID:        fmt.Sprintf("%d", i),
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
			Type:      0,
			Content:   "hello",
			Author: source.AuthorRecord{
				ID:       "900",
				Username: "alice",
			},
		})
	}
	return records
}

func newTestSyncer(src source.Source, messages *fakeMessageStore, users *fakeUserStore, retention time.Time) *ChannelSyncer {
	return NewChannelSyncer(src, messages, users, NopLimiter{}, SyncerOptions{
		PageSize:  100,
		Retention: retention,
	}, testLogger())
}

func testChannel() models.Channel {
	return models.Channel{ID: 42, Name: "general", GuildID: 7}
}

func TestBackfillTermination(t *testing.T) {
	src := &fakeSource{records: genRecords(250)}
	messages := newFakeMessageStore()
	syncer := newTestSyncer(src, messages, newFakeUserStore(), baseTime.AddDate(-1, 0, 0))

	err := syncer.Sync(context.Background(), testChannel())
	require.NoError(t, err)

	assert.Equal(t, 250, messages.countByChannel(42))

	// Three backfill pages, a fourth empty one, one empty forward page, one
	// fully-known gap probe.
	require.Len(t, src.fetches, 6)
	assert.Equal(t, fetchCall{}, src.fetches[0])
	assert.Equal(t, fetchCall{beforeID: "151"}, src.fetches[1])
	assert.Equal(t, fetchCall{beforeID: "51"}, src.fetches[2])
	assert.Equal(t, fetchCall{beforeID: "1"}, src.fetches[3])
	assert.Equal(t, fetchCall{afterID: "250"}, src.fetches[4])
	assert.Equal(t, "", src.fetches[5].afterID)
	assert.NotEqual(t, "", src.fetches[5].beforeID)
}

func TestSyncTwiceIsIdempotent(t *testing.T) {
	src := &fakeSource{records: genRecords(250)}
	messages := newFakeMessageStore()
	users := newFakeUserStore()
	syncer := newTestSyncer(src, messages, users, baseTime.AddDate(-1, 0, 0))

	require.NoError(t, syncer.Sync(context.Background(), testChannel()))
	require.NoError(t, syncer.Sync(context.Background(), testChannel()))

	assert.Equal(t, 250, messages.countByChannel(42))
	assert.Len(t, users.users, 1)
}

func TestRetentionBoundaryStopsBackfill(t *testing.T) {
	// Messages up to ID 120 predate the retention cutoff.
	retention := baseTime.Add(121 * time.Minute)
	src := &fakeSource{records: genRecords(250)}
	messages := newFakeMessageStore()
	syncer := newTestSyncer(src, messages, newFakeUserStore(), retention)

	err := syncer.Sync(context.Background(), testChannel())
	require.NoError(t, err)

	// 121..250 stored; older history deliberately left unfetched.
	assert.Equal(t, 130, messages.countByChannel(42))
	assert.Equal(t, int64(121), messages.minID(42))
}

func TestResumeAfterSourceFailure(t *testing.T) {
	src := &fakeSource{records: genRecords(250), failAt: 2}
	messages := newFakeMessageStore()
	users := newFakeUserStore()
	syncer := newTestSyncer(src, messages, users, baseTime.AddDate(-1, 0, 0))

	err := syncer.Sync(context.Background(), testChannel())
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
	assert.Equal(t, 100, messages.countByChannel(42))

	// The next pass picks backfill up at the persisted minimum, not at the
	// newest message.
	src.failAt = 0
	src.fetches = nil
	require.NoError(t, syncer.Sync(context.Background(), testChannel()))
	assert.Equal(t, fetchCall{beforeID: "151"}, src.fetches[0])
	assert.Equal(t, 250, messages.countByChannel(42))
}

func TestGapRepairFillsHole(t *testing.T) {
	src := &fakeSource{records: genRecords(250)}
	messages := newFakeMessageStore()
	users := newFakeUserStore()

	// Pre-seed 1..50 and 151..250 so the middle is a gap the cursors alone
	// would never revisit.
	for i := 1; i <= 250; i++ {
		if i > 50 && i < 151 {
			continue
		}
		messages.messages[msgKey{channel: 42, id: int64(i)}] = models.Message{ID: int64(i), ChannelID: 42, GuildID: 7}
	}
	// First probe lands above the hole, the second below it.
	messages.probes = []int64{200, 40}

	syncer := newTestSyncer(src, messages, users, baseTime.AddDate(-1, 0, 0))
	require.NoError(t, syncer.Sync(context.Background(), testChannel()))

	// The probe below 200 reveals 100..150 as new; 51..99 stays for a later
	// pass, since gap repair only has to make progress.
	assert.Equal(t, 201, messages.countByChannel(42))
	for i := int64(100); i <= 150; i++ {
		assert.Contains(t, messages.messages, msgKey{channel: 42, id: i})
	}
}

func TestMalformedRecordSkipped(t *testing.T) {
	records := genRecords(10)
	records[4].Author.ID = "" // message 5 has no usable author
	src := &fakeSource{records: records}
	messages := newFakeMessageStore()
	syncer := newTestSyncer(src, messages, newFakeUserStore(), baseTime.AddDate(-1, 0, 0))

	err := syncer.Sync(context.Background(), testChannel())
	require.NoError(t, err)

	assert.Equal(t, 9, messages.countByChannel(42))
	assert.NotContains(t, messages.messages, msgKey{channel: 42, id: 5})
}

func TestRetentionInsideFirstPageSetsForwardCursor(t *testing.T) {
	// Messages up to ID 199 predate the cutoff, so the very first backfill
	// page both stores 200..250 and hits retention.
	retention := baseTime.Add(200 * time.Minute)
	src := &fakeSource{records: genRecords(250)}
	messages := newFakeMessageStore()
	syncer := newTestSyncer(src, messages, newFakeUserStore(), retention)

	err := syncer.Sync(context.Background(), testChannel())
	require.NoError(t, err)

	assert.Equal(t, 51, messages.countByChannel(42))
	assert.Equal(t, int64(200), messages.minID(42))

	// Forward sync must page strictly above the newest stored message even
	// though backfill ended on its first page; without the bound it would
	// refetch the newest window.
	require.GreaterOrEqual(t, len(src.fetches), 2)
	assert.Equal(t, fetchCall{afterID: "250"}, src.fetches[1])
}

func TestMalformedPageDoesNotEndBackfill(t *testing.T) {
	// IDs 51..150 span a full page of records with no usable author. The
	// valid history below them must still be reached.
	records := genRecords(250)
	for i := 51; i <= 150; i++ {
		records[i-1].Author.ID = ""
	}
	src := &fakeSource{records: records}
	messages := newFakeMessageStore()
	syncer := newTestSyncer(src, messages, newFakeUserStore(), baseTime.AddDate(-1, 0, 0))

	err := syncer.Sync(context.Background(), testChannel())
	require.NoError(t, err)

	// The corrupt page still moved the cursor below it.
	require.GreaterOrEqual(t, len(src.fetches), 3)
	assert.Equal(t, fetchCall{beforeID: "151"}, src.fetches[1])
	assert.Equal(t, fetchCall{beforeID: "51"}, src.fetches[2])

	assert.Equal(t, 150, messages.countByChannel(42))
	assert.Contains(t, messages.messages, msgKey{channel: 42, id: int64(1)})
	assert.NotContains(t, messages.messages, msgKey{channel: 42, id: int64(100)})
}

func TestStoreFailureIsFatal(t *testing.T) {
	src := &fakeSource{records: genRecords(10)}
	messages := newFakeMessageStore()
	messages.insertErr = fmt.Errorf("connection refused")
	syncer := newTestSyncer(src, messages, newFakeUserStore(), baseTime.AddDate(-1, 0, 0))

	err := syncer.Sync(context.Background(), testChannel())
	require.Error(t, err)
	assert.True(t, errors.IsStoreUnavailable(err))
}

func TestEmptyChannelReachesDone(t *testing.T) {
	src := &fakeSource{}
	messages := newFakeMessageStore()
	syncer := newTestSyncer(src, messages, newFakeUserStore(), baseTime.AddDate(-1, 0, 0))

	require.NoError(t, syncer.Sync(context.Background(), testChannel()))
	assert.Equal(t, 0, messages.countByChannel(42))
	// One empty backfill page, one empty forward page, then done with no
	// probe since nothing is persisted.
	assert.Len(t, src.fetches, 2)
}

func TestAuthorRenameUpdatesUser(t *testing.T) {
	records := genRecords(2)
	records[0].Author.Username = "alice-renamed"
	src := &fakeSource{records: records}
	messages := newFakeMessageStore()
	users := newFakeUserStore()
	syncer := newTestSyncer(src, messages, users, baseTime.AddDate(-1, 0, 0))

	require.NoError(t, syncer.Sync(context.Background(), testChannel()))

	// Pages arrive newest first, so the rename on message 1 is the older
	// observation; the stored name follows the latest upsert to run.
	require.Contains(t, users.users, int64(900))
	assert.Equal(t, "alice-renamed", users.users[900].Username)
}
