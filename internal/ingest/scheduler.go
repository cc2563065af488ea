package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"guildstats/pkg/logger"
)

// PassFunc runs one full sync pass.
type PassFunc func(ctx context.Context) error

// Scheduler triggers a pass immediately on start and re-arms it on a fixed
// interval, indefinitely. A pass still in progress when the timer fires
// causes that tick to be skipped rather than overlapped.
type Scheduler struct {
	interval time.Duration
	run      PassFunc
	running  atomic.Bool
	log      *logger.Logger
}

// NewScheduler creates a scheduler for the given pass function.
func NewScheduler(interval time.Duration, run PassFunc, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Scheduler{interval: interval, run: run, log: log}
}

// Start blocks until ctx is cancelled, firing passes on the schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.fire(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire launches one pass unless the previous one is still running.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		passesSkipped.Inc()
		s.log.Warn("previous sync pass still running, skipping this tick")
		return
	}

	go func() {
		defer s.running.Store(false)
		if err := s.run(ctx); err != nil {
			s.log.LogError(err, "sync pass aborted")
		}
	}()
}
