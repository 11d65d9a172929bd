// Package worker runs the background loops of the server: oracle outbox
// dispatch, harvest request expiry and login limiter cleanup.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Task performs one round of work and reports how many items it handled.
type Task func(ctx context.Context) (int, error)

// Periodic runs a Task immediately and then on every tick until its context ends.
type Periodic struct {
	name     string
	interval time.Duration
	task     Task
	log      *zap.Logger
}

// NewPeriodic constructs a Periodic worker.
func NewPeriodic(name string, interval time.Duration, task Task, log *zap.Logger) *Periodic {
	if interval <= 0 {
		interval = time.Second
	}
	return &Periodic{name: name, interval: interval, task: task, log: log.With(zap.String("worker", name))}
}

// Run blocks until ctx is cancelled. Task errors are logged and do not stop the loop.
func (w *Periodic) Run(ctx context.Context) error {
	w.log.Info("worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.round(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return nil
		case <-ticker.C:
			w.round(ctx)
		}
	}
}

func (w *Periodic) round(ctx context.Context) {
	n, err := w.task(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		w.log.Warn("worker round failed", zap.Int("handled", n), zap.Error(err))
	case n > 0:
		w.log.Debug("worker round", zap.Int("handled", n))
	}
}

// Dispatcher is the oracle outbox side used by the dispatch worker.
type Dispatcher interface {
	DispatchOnce(ctx context.Context) (int, error)
}

// Expirer closes overdue harvest requests.
type Expirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// NewDispatchWorker delivers pending oracle queries every interval.
func NewDispatchWorker(d Dispatcher, interval time.Duration, log *zap.Logger) *Periodic {
	return NewPeriodic("oracle-dispatch", interval, d.DispatchOnce, log)
}

// NewExpiryWorker expires up to batch stale requests every interval.
func NewExpiryWorker(e Expirer, interval time.Duration, batch int, log *zap.Logger) *Periodic {
	return NewPeriodic("request-expiry", interval, func(ctx context.Context) (int, error) {
		return e.ExpireStale(ctx, batch)
	}, log)
}

// Pruner drops login limiter entries that ended before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// NewPruneWorker removes limiter entries idle for longer than retain every interval.
func NewPruneWorker(p Pruner, interval, retain time.Duration, now func() time.Time, log *zap.Logger) *Periodic {
	return NewPeriodic("limiter-prune", interval, func(ctx context.Context) (int, error) {
		return p.Prune(ctx, now().Add(-retain))
	}, log)
}
