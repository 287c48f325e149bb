package workers

import (
	"collab-lab/contract"
	"collab-lab/observability"
	"context"
	"log/slog"
	"time"
)

// IdleSweepWorker periodically asks the registry to destroy sessions that saw
// no inbound activity for longer than threshold.
type IdleSweepWorker struct {
	log       *slog.Logger
	registry  contract.IRegistry
	interval  time.Duration
	threshold time.Duration
}

func NewIdleSweepWorker(log *slog.Logger, registry contract.IRegistry, interval, threshold time.Duration) *IdleSweepWorker {
	return &IdleSweepWorker{log: log, registry: registry, interval: interval, threshold: threshold}
}

func (w *IdleSweepWorker) Run(ctx context.Context) error {
	w.log.Info("Starting idle sweep worker", "interval", w.interval, "threshold", w.threshold)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass.
func (w *IdleSweepWorker) Sweep(ctx context.Context) []string {
	observability.IdleSweeps.Inc()
	evicted := w.registry.SweepIdle(ctx, w.threshold)
	if len(evicted) > 0 {
		w.log.Info("Idle sessions evicted", "count", len(evicted), "session_ids", evicted)
	}
	return evicted
}
