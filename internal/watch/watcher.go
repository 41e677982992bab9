// internal/watch/watcher.go

// Package watch runs the overdue-progress sweep in the background.
package watch

import (
	"context"
	"time"

	"rooftrust-engine/internal/common/logger"
)

// Sweeper is the slice of the engine the watcher drives.
type Sweeper interface {
	NotifyOverdue(ctx context.Context) (int, error)
}

// Watcher periodically scans tracked projects and triggers automated delay
// notices for those past the silence threshold.
type Watcher struct {
	sweeper  Sweeper
	interval time.Duration
	logger   logger.Logger
}

func New(sweeper Sweeper, interval time.Duration, log logger.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Watcher{
		sweeper:  sweeper,
		interval: interval,
		logger:   log.WithFields(map[string]interface{}{"component": "watch"}),
	}
}

// Run blocks until the context is cancelled, sweeping once per interval.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("overdue watcher started", map[string]interface{}{
		"interval": w.interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("overdue watcher stopped", nil)
			return
		case <-ticker.C:
			sent, err := w.sweeper.NotifyOverdue(ctx)
			if err != nil {
				w.logger.Error("overdue sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			if sent > 0 {
				w.logger.Info("delay notices sent", map[string]interface{}{
					"count": sent,
				})
			}
		}
	}
}
