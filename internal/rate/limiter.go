// Package rate paces outbound Gmail calls.
package rate

import (
	"context"
	"fmt"
	"time"
)

// Limiter gates outbound API calls so we stay inside Gmail quotas.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Fixed blocks for a constant interval on every Wait.
type Fixed struct {
	Interval time.Duration
}

// NewFixed returns a limiter that sleeps d per call.
func NewFixed(d time.Duration) Fixed {
	return Fixed{Interval: d}
}

// Wait sleeps for the interval or until the context is canceled.
func (f Fixed) Wait(ctx context.Context) error {
	if f.Interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(f.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Nop never blocks.
type Nop struct{}

// Wait returns immediately.
func (Nop) Wait(context.Context) error { return nil }

var (
	_ Limiter = Fixed{}
	_ Limiter = Nop{}
)
