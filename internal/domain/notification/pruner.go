package notification

import (
	"context"
	"log/slog"
	"time"
)

// PrunerConfig holds configuration for the audit retention pruner.
type PrunerConfig struct {
	// Interval is how often the pruner scans for expired rows.
	Interval time.Duration

	// MaxAge is how long audit rows are retained. Zero disables pruning.
	MaxAge time.Duration
}

// Pruner periodically deletes audit rows older than the retention window.
// The log table is append-only from the dispatch path's perspective;
// retention is the one maintenance operation that removes rows, and it only
// ever touches rows past the window.
type Pruner struct {
	store  LogStore
	config PrunerConfig
}

// NewPruner creates a new retention pruner.
func NewPruner(store LogStore, cfg PrunerConfig) *Pruner {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Pruner{store: store, config: cfg}
}

// Run starts the pruner loop. It blocks until the context is cancelled.
// Should be called in a goroutine.
func (p *Pruner) Run(ctx context.Context) {
	if p.config.MaxAge <= 0 {
		slog.Info("audit retention pruning disabled")
		return
	}

	slog.Info("pruner started",
		"interval", p.config.Interval,
		"max_age", p.config.MaxAge,
	)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pruner stopped")
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep performs one retention cycle.
func (p *Pruner) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.config.MaxAge)

	removed, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("pruner: retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("pruner: expired audit rows removed", "count", removed, "cutoff", cutoff)
	}
}
