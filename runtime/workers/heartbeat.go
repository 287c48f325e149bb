package workers

import (
	"collab-lab/observability"
	"context"
	"log/slog"
	"time"
)

const defaultHeartbeatInterval = 5 * time.Second

// HeartbeatWorker samples the server process (RSS, CPU) and publishes it as gauges.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
	sample   func() (observability.ProcessStats, error)
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration) *HeartbeatWorker {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &HeartbeatWorker{log: log, interval: interval, sample: observability.SelfStats}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := w.sample()
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			observability.ProcessRSSBytes.Set(float64(stats.RSSBytes))
			observability.ProcessCPUPercent.Set(stats.CPUPercent)
		}
	}
}
