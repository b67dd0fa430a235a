package reaper

import (
	"context"
	"fmt"
	"time"

	"ms-reservations/internal/logger"
)

// Sweeper is the slice of the reservation service the reaper drives.
// SweepExpired isolates per-item failures itself; the reaper only
// schedules sweeps and reports totals.
type Sweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// Reaper periodically releases the seats of PENDING reservations whose
// hold deadline has passed. Safe to run alongside other instances: each
// expiry is a conditional update, so two reapers racing on the same row
// produce one EXPIRED transition and one no-op.
type Reaper struct {
	Service   Sweeper
	Interval  time.Duration
	BatchSize int
	Logger    *logger.Logger
}

func New(service Sweeper, interval time.Duration, batchSize int, log *logger.Logger) *Reaper {
	return &Reaper{
		Service:   service,
		Interval:  interval,
		BatchSize: batchSize,
		Logger:    log,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. A failed
// sweep is logged and retried on the next tick; it never stops the loop.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	if r.Logger != nil {
		r.Logger.LogReaper(fmt.Sprintf("started, interval %s, batch %d", r.Interval, r.BatchSize))
	}

	for {
		select {
		case <-ctx.Done():
			if r.Logger != nil {
				r.Logger.LogReaper("stopped")
			}
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exposed so callers can force a reap outside the
// ticker schedule.
func (r *Reaper) Sweep(ctx context.Context) {
	expired, err := r.Service.SweepExpired(ctx, r.BatchSize)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Error("REAPER", fmt.Sprintf("sweep failed: %v", err))
		}
		return
	}
	if expired > 0 && r.Logger != nil {
		r.Logger.LogReaper(fmt.Sprintf("released holds of %d expired reservations", expired))
	}
}
