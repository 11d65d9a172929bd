package oracle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/metrics"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository"
)

// DispatcherOptions configures Dispatcher.
type DispatcherOptions struct {
	Owner     string        // lease owner, unique per process
	Batch     int           // queries claimed per round
	Lease     time.Duration // how long a claim is held
	BaseDelay time.Duration // retry delay after the first failed attempt; doubles per attempt
	MaxDelay  time.Duration
}

// Dispatcher moves pending outbox queries to the oracle gateway.
type Dispatcher struct {
	outbox repository.Outbox
	gw     Gateway
	opts   DispatcherOptions
	now    func() time.Time
	log    *zap.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(outbox repository.Outbox, gw Gateway, opts DispatcherOptions, log *zap.Logger) *Dispatcher {
	if opts.Owner == "" {
		opts.Owner = "dispatcher"
	}
	if opts.Batch <= 0 {
		opts.Batch = 16
	}
	if opts.Lease <= 0 {
		opts.Lease = time.Minute
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 5 * time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Minute
	}
	return &Dispatcher{outbox: outbox, gw: gw, opts: opts, now: time.Now, log: log}
}

// DispatchOnce claims one batch of due queries and delivers them.
// It returns the number delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	now := d.now()
	batch, err := d.outbox.ClaimQueries(ctx, now, d.opts.Batch, d.opts.Owner, now.Add(d.opts.Lease))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, q := range batch {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		ok, err := d.deliver(ctx, q)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, q model.OracleQuery) (bool, error) {
	attempts := q.Attempts + 1
	start := time.Now()
	derr := d.gw.Deliver(ctx, q)
	metrics.OracleDeliveryDuration.Observe(time.Since(start).Seconds())

	log := d.log.With(zap.String("query_id", q.QueryID), zap.Int("attempt", attempts))
	switch {
	case derr == nil:
		metrics.OracleDeliveries.WithLabelValues("sent").Inc()
		if _, err := d.outbox.MarkSent(ctx, q.QueryID, d.opts.Owner, attempts, d.now()); err != nil {
			return false, err
		}
		log.Info("oracle query sent")
		return true, nil

	case isRejected(derr) || attempts >= q.MaxAttempts:
		metrics.OracleDeliveries.WithLabelValues("failed").Inc()
		log.Warn("oracle query failed", zap.Error(derr))
		_, err := d.outbox.MarkFailed(ctx, q.QueryID, d.opts.Owner, attempts, derr.Error(), d.now())
		return false, err

	default:
		metrics.OracleDeliveries.WithLabelValues("retry").Inc()
		next := d.now().Add(d.backoff(attempts))
		log.Warn("oracle query will be retried", zap.Time("next", next), zap.Error(derr))
		_, err := d.outbox.MarkRetry(ctx, q.QueryID, d.opts.Owner, attempts, next, derr.Error())
		return false, err
	}
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.opts.BaseDelay
	for i := 1; i < attempts && delay < d.opts.MaxDelay; i++ {
		delay *= 2
	}
	return min(delay, d.opts.MaxDelay)
}
