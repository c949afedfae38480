package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// SweepFunc releases every reserved hold whose deadline has passed and returns how many it released.
type SweepFunc func(ctx context.Context) (int, error)

// Sweeper periodically runs a sweep. It re-derives due holds from their
// ExpiresAt alone, independent of any timer state.
type Sweeper struct {
	sweep    SweepFunc
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper running sweep every interval.
func NewSweeper(sweep SweepFunc, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{sweep: sweep, interval: interval, logger: logger}
}

// Run sweeps once immediately, recovering holds whose timers were lost with a
// previous process, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.runOnce(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, "periodic")
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context, trigger string) {
	released, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error("expiration sweep failed", "trigger", trigger, "error", err)
		return
	}
	if released > 0 {
		s.logger.Info("expiration sweep released holds", "trigger", trigger, "released", released)
	}
}
