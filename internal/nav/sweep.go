package nav

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically drops patterns whose last use is older than the
// configured age. Patterns are never deleted by default; the sweep only
// runs when an eviction age is set.
type Sweeper struct {
	store    Pruner
	logger   *slog.Logger
	age      time.Duration
	interval time.Duration
}

// NewSweeper creates a Sweeper. A zero or negative age disables sweeping
// and Run returns immediately.
func NewSweeper(store Pruner, age time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	interval := age / 4
	if interval > 6*time.Hour {
		interval = 6 * time.Hour
	}
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		logger:   logger.With("component", "pattern-sweep"),
		age:      age,
		interval: interval,
	}
}

// Run blocks until the context is cancelled, sweeping on each tick.
func (s *Sweeper) Run(ctx context.Context) {
	if s.age <= 0 || s.store == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.age)
	n, err := s.store.PruneBefore(ctx, cutoff)
	if err != nil {
		s.logger.Warn("pattern sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned stale patterns", "count", n, "cutoff", cutoff)
	}
}
