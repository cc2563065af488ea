package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildstats_pages_fetched_total",
		Help: "Pages requested from the message source, by sync state.",
	}, []string{"state"})

	messagesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildstats_messages_inserted_total",
		Help: "Messages persisted for the first time.",
	})

	recordsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildstats_records_malformed_total",
		Help: "Page entries skipped because required fields were missing.",
	})

	channelsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildstats_channels_skipped_total",
		Help: "Channels skipped for lack of read permissions.",
	})

	channelErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildstats_channel_errors_total",
		Help: "Channel syncs aborted by a source-side failure.",
	})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guildstats_pass_duration_seconds",
		Help:    "Wall time of a full sync pass.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	passesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildstats_passes_skipped_total",
		Help: "Scheduler ticks dropped because a pass was still running.",
	})
)
