package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"guildstats/internal/source"
	"guildstats/pkg/errors"
	"guildstats/pkg/logger"
)

// Orchestrator drives one full sync pass: list every configured guild's
// channels, refresh channel metadata, then run the channel syncer for each
// readable channel. Channels run strictly one after another; the platform
// rate budget is shared per bot identity, so there is nothing to gain from
// parallel workers here.
type Orchestrator struct {
	source   source.Source
	channels ChannelStore
	syncer   *ChannelSyncer
	guildIDs []string
	log      *logger.Logger
}

// NewOrchestrator creates an orchestrator over a fixed guild list. The list
// order is kept as given so repeated passes enumerate identically.
func NewOrchestrator(src source.Source, channels ChannelStore, syncer *ChannelSyncer, guildIDs []string, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Orchestrator{
		source:   src,
		channels: channels,
		syncer:   syncer,
		guildIDs: guildIDs,
		log:      log,
	}
}

// RunPass mirrors every configured guild once. Source failures are isolated
// to the guild or channel they hit; store failures abort the pass, since
// ingestion cannot continue without durability.
func (o *Orchestrator) RunPass(ctx context.Context) error {
	start := time.Now()
	log := o.log.WithPass(uuid.NewString())

	var channelsSynced, skipped int
	for _, rawGuildID := range o.guildIDs {
		guildID, err := source.ParseSnowflake(rawGuildID)
		if err != nil {
			log.LogError(err, "skipping misconfigured guild", "guild", rawGuildID)
			continue
		}
		glog := log.WithGuild(guildID)
		glog.Info("syncing guild")

		infos, err := o.source.ListChannels(ctx, rawGuildID)
		if err != nil {
			glog.LogError(err, "listing channels failed, skipping guild")
			continue
		}

		// Deterministic channel order within a pass.
		sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

		// Channel metadata is refreshed up front, before any message sync,
		// so renames land even when a later sync fails.
		channels := infos[:0]
		for _, info := range infos {
			ch, err := info.Validate(guildID)
			if err != nil {
				glog.LogError(err, "skipping malformed channel entry", "channel", info.ID)
				continue
			}
			if err := o.channels.Upsert(ch); err != nil {
				return errors.NewStoreUnavailable("upsert channel", err)
			}
			channels = append(channels, info)
		}
		glog.Info("channel list refreshed", "channels", len(channels))

		for _, info := range channels {
			ch, _ := info.Validate(guildID)

			if !o.source.CanRead(info.ID) {
				glog.Info("skipping channel, no permission to read history", "channel", info.Name)
				channelsSkipped.Inc()
				skipped++
				continue
			}

			if err := o.syncer.Sync(ctx, ch); err != nil {
				if errors.IsStoreUnavailable(err) {
					return err
				}
				// Channel-level failure: everything written so far is
				// durable, the next pass resumes from the persisted cursor.
				channelErrors.Inc()
				glog.LogError(err, "channel sync aborted", "channel", ch.Name)
				continue
			}
			channelsSynced++
		}
	}

	duration := time.Since(start)
	passDuration.Observe(duration.Seconds())
	log.LogPass(len(o.guildIDs), channelsSynced, skipped, duration)
	return nil
}
