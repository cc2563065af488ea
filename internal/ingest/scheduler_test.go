package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerSkipsTicksWhileRunning(t *testing.T) {
	var started atomic.Int32
	release := make(chan struct{})

	run := func(ctx context.Context) error {
		started.Add(1)
		<-release
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(20*time.Millisecond, run, testLogger())
	go s.Start(ctx)

	// Several ticks elapse while the first pass is blocked; the guard must
	// drop them all instead of stacking passes.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), started.Load())

	close(release)
	assert.Eventually(t, func() bool {
		return started.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerFiresImmediatelyOnStart(t *testing.T) {
	var started atomic.Int32
	run := func(ctx context.Context) error {
		started.Add(1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(time.Hour, run, testLogger())
	go s.Start(ctx)

	assert.Eventually(t, func() bool {
		return started.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	var started atomic.Int32
	run := func(ctx context.Context) error {
		started.Add(1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(10*time.Millisecond, run, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	after := started.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, started.Load())
}
