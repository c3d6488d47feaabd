package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// cycler runs the scheduled ranking cycle and the full tag sweep (ISP).
type cycler interface {
	RunScheduledCycle(ctx context.Context) (int, error)
	RunTagSweep(ctx context.Context) (int, error)
}

// ScheduleWorkerConfig tunes the periodic cycle loop.
type ScheduleWorkerConfig struct {
	CycleInterval time.Duration
	SweepInterval time.Duration
}

// ScheduleWorker drives the periodic ranking recomputation over dirty items
// and the slower full-catalog tag sweep.
type ScheduleWorker struct {
	coordinator cycler
	cfg         ScheduleWorkerConfig
	logger      *zap.Logger
}

// NewScheduleWorker creates the cycle worker.
func NewScheduleWorker(c cycler, cfg ScheduleWorkerConfig, logger *zap.Logger) *ScheduleWorker {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	return &ScheduleWorker{coordinator: c, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *ScheduleWorker) Run(ctx context.Context) error {
	w.logger.Info("starting schedule worker",
		zap.Duration("cycle_interval", w.cfg.CycleInterval),
		zap.Duration("sweep_interval", w.cfg.SweepInterval))

	cycle := time.NewTicker(w.cfg.CycleInterval)
	defer cycle.Stop()
	sweep := time.NewTicker(w.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("schedule worker stopped")
			return ctx.Err()
		case <-cycle.C:
			if _, err := w.coordinator.RunScheduledCycle(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("ranking cycle", zap.Error(err))
			}
		case <-sweep.C:
			if _, err := w.coordinator.RunTagSweep(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("tag sweep", zap.Error(err))
			}
		}
	}
}
