package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ssgreg/repeat"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/model"
)

// HTTPOptions configures HTTPGateway.
type HTTPOptions struct {
	URL       string
	Secret    []byte
	Timeout   time.Duration // per POST
	Tries     int           // POSTs per Deliver call
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// HTTPGateway POSTs signed query payloads to the oracle endpoint.
type HTTPGateway struct {
	opts   HTTPOptions
	client *http.Client
	now    func() time.Time
	log    *zap.Logger
}

// NewHTTPGateway constructs an HTTPGateway.
func NewHTTPGateway(opts HTTPOptions, log *zap.Logger) *HTTPGateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Tries <= 0 {
		opts.Tries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 2 * time.Second
	}
	return &HTTPGateway{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		now:    time.Now,
		log:    log,
	}
}

// Deliver posts the payload, retrying transport errors, 429 and 5xx answers.
// Other 4xx answers return ErrRejected.
func (g *HTTPGateway) Deliver(ctx context.Context, q model.OracleQuery) error {
	return repeat.Repeat(
		repeat.Fn(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := g.post(ctx, q)
			if err != nil && !isRejected(err) {
				return repeat.HintTemporary(err)
			}
			return err
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(g.opts.Tries),
		repeat.FnOnError(func(err error) error {
			g.log.Warn("oracle post failed", zap.String("query_id", q.QueryID), zap.Error(err))
			return err
		}),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: g.opts.BaseDelay,
				MaxDelay:  g.opts.MaxDelay,
			}).Set(),
		),
	)
}

func (g *HTTPGateway) post(ctx context.Context, q model.OracleQuery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.URL, bytes.NewReader(q.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w: %w", err, ErrRejected)
	}
	now := g.now()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, fmt.Sprint(now.Unix()))
	req.Header.Set(HeaderSignature, Sign(g.opts.Secret, now, q.Payload))

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("oracle answered %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	default:
		return fmt.Errorf("oracle answered %d: %s: %w", resp.StatusCode, bytes.TrimSpace(msg), ErrRejected)
	}
}
