package worker

import (
	"context"
	"log/slog"
	"time"
)

// Retention is implemented by stores that can delete records older than a
// cutoff. Only terminal data is eligible; open cases are never pruned.
type Retention interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes old audit data based on retention policy.
type Pruner struct {
	retention time.Duration
	targets   map[string]Retention
}

// NewPruner creates a new Pruner worker over the named targets.
func NewPruner(retention time.Duration, targets map[string]Retention) *Pruner {
	return &Pruner{
		retention: retention,
		targets:   targets,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Calculate check interval (e.g., 10% of retention period, but max 1 hour)
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	for name, target := range p.targets {
		n, err := target.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			slog.Warn("Prune failed", "target", name, "error", err)
			continue
		}
		if n > 0 {
			slog.Info("Pruned old records", "target", name, "count", n)
		}
	}
}
