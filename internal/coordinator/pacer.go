package coordinator

import (
	"context"
	"time"
)

// Pacer delays the loop between wallets. Pace returns early with the
// context error when the run is stopped.
type Pacer interface {
	Pace(ctx context.Context) error
}

// TimerPacer waits a fixed interval.
type TimerPacer struct {
	Interval time.Duration
}

// Pace waits for the interval or until ctx is done.
func (p TimerPacer) Pace(ctx context.Context) error {
	if p.Interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
