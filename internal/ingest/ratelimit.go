package ingest

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out requests to the message source. The platform rate
// budget is shared per bot identity, not per channel, so one limiter is
// shared by everything the orchestrator runs.
type Limiter interface {
	Wait(ctx context.Context) error
}

// FixedDelay enforces a constant gap between consecutive requests. A fixed
// delay, not exponential backoff, is the documented policy; swapping in an
// adaptive strategy only means replacing this type.
type FixedDelay struct {
	limiter *rate.Limiter
}

// NewFixedDelay creates a limiter allowing one request per delay interval.
// The first call passes immediately.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request may be issued or the context ends.
func (f *FixedDelay) Wait(ctx context.Context) error {
	return f.limiter.Wait(ctx)
}

// NopLimiter applies no throttling. Used by tests.
type NopLimiter struct{}

func (NopLimiter) Wait(context.Context) error { return nil }
