package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// Lease grants one process at a time the right to sweep.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

const leaseReleaseTimeout = 2 * time.Second

type Worker struct {
	engine   *Engine
	lease    Lease
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	leaseTTL time.Duration
}

type WorkerConfig struct {
	Interval time.Duration
	// Timeout bounds one sweep, including every repository call it makes.
	Timeout  time.Duration
	LeaseTTL time.Duration
}

// NewWorker builds the sweep scheduler. lease may be nil for single-replica deployments.
func NewWorker(engine *Engine, lease Lease, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.Timeout + 10*time.Second
	}
	return &Worker{
		engine:   engine,
		lease:    lease,
		logger:   logger,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		leaseTTL: cfg.LeaseTTL,
	}
}

// Run sweeps once at start and then on every tick until ctx is done. Sweeps run inline, so a
// slow sweep delays the next tick instead of overlapping it.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep if the lease is available. A sweep already in progress is not
// cancelled by ctx; it ends on its own or at the timeout.
func (w *Worker) RunOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	if w.lease != nil {
		ok, err := w.lease.Acquire(sweepCtx, w.leaseTTL)
		if err != nil {
			w.logger.Error("sweep lease failed", "err", err)
			return
		}
		if !ok {
			w.logger.Debug("sweep skipped, lease held elsewhere")
			return
		}
		defer w.release(ctx)
	}

	res, err := w.engine.Sweep(sweepCtx)
	if err != nil {
		w.logger.Error("lifecycle sweep abandoned", "err", err,
			"confirmed", res.Confirmed, "started", res.Started, "completed", res.Completed)
		return
	}
	if res.Total() > 0 || res.Skipped > 0 {
		w.logger.Info("lifecycle sweep finished",
			"confirmed", res.Confirmed,
			"started", res.Started,
			"completed", res.Completed,
			"skipped", res.Skipped,
		)
	}
}

// release frees the lease on its own deadline, so a sweep that ran out its timeout still
// hands the lease back before the next tick.
func (w *Worker) release(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaseReleaseTimeout)
	defer cancel()
	if err := w.lease.Release(releaseCtx); err != nil {
		w.logger.Warn("sweep lease release failed", "err", err)
	}
}
