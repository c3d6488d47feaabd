// Package worker hosts the background loops driving the sync pipeline:
// change feed polling and the scheduled ranking/tag cycles.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// batcher drains one batch of the change feed (ISP).
type batcher interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// FeedWorkerConfig tunes the change feed poll loop.
type FeedWorkerConfig struct {
	PollInterval time.Duration
}

// FeedWorker polls the catalog change feed and pushes batches through the
// coordinator until the context is cancelled.
type FeedWorker struct {
	coordinator batcher
	cfg         FeedWorkerConfig
	logger      *zap.Logger
}

// NewFeedWorker creates the feed poll worker.
func NewFeedWorker(c batcher, cfg FeedWorkerConfig, logger *zap.Logger) *FeedWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &FeedWorker{coordinator: c, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled. A non-empty batch triggers an
// immediate follow-up poll so a backlog drains at full speed instead of
// one batch per tick.
func (w *FeedWorker) Run(ctx context.Context) error {
	w.logger.Info("starting feed worker",
		zap.Duration("poll_interval", w.cfg.PollInterval))

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("feed worker stopped")
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := w.coordinator.ProcessBatch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						w.logger.Info("feed worker stopped")
						return ctx.Err()
					}
					w.logger.Error("process feed batch", zap.Error(err))
					break
				}
				if n == 0 {
					break
				}
			}
		}
	}
}
