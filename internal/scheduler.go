package application

import (
	"context"
	"log/slog"
	"time"
)

type ticker interface {
	Tick(now uint32)
}

type flusher interface {
	Flush() error
}

// scheduler drives the arbiter from a fixed-period timer with a millisecond
// counter that starts at zero and wraps.
type scheduler struct {
	logger   *slog.Logger
	interval time.Duration
	target   ticker
	panel    flusher
	now      func() time.Time
}

func newScheduler(logger *slog.Logger, interval time.Duration, target ticker, panel flusher) *scheduler {
	return &scheduler{
		logger:   logger.With("component", "scheduler"),
		interval: interval,
		target:   target,
		panel:    panel,
		now:      time.Now,
	}
}

func (that *scheduler) Run(ctx context.Context) error {
	timer := time.NewTicker(that.interval)
	defer timer.Stop()

	start := that.now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			that.step(start)
		}
	}
}

func (that *scheduler) step(start time.Time) {
	that.target.Tick(uint32(that.now().Sub(start).Milliseconds()))

	if err := that.panel.Flush(); err != nil {
		that.logger.Warn("failed to refresh panel", "error", err)
	}
}
