package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
)

const queryCols = `query_id, payload, status, attempts, max_attempts, next_attempt_at, last_error, created_at`

func scanQuery(row pgx.Row) (model.OracleQuery, error) {
	var (
		q      model.OracleQuery
		status string
	)
	if err := row.Scan(&q.QueryID, &q.Payload, &status, &q.Attempts, &q.MaxAttempts,
		&q.NextAttemptAt, &q.LastError, &q.CreatedAt); err != nil {
		return q, err
	}
	q.Status = model.QueryStatus(status)
	q.NextAttemptAt = q.NextAttemptAt.UTC()
	q.CreatedAt = q.CreatedAt.UTC()
	return q, nil
}

// ClaimQueries leases due pending queries to owner. Rows leased by another
// dispatcher are skipped until their lease runs out.
func (l *Ledger) ClaimQueries(ctx context.Context, now time.Time, limit int, owner string, leaseUntil time.Time) ([]model.OracleQuery, error) {
	const q = `
UPDATE oracle_outbox SET lease_owner=$3, lease_until=$4
WHERE query_id IN (
  SELECT query_id FROM oracle_outbox
  WHERE status='pending' AND next_attempt_at <= $1 AND (lease_until IS NULL OR lease_until <= $1)
  ORDER BY created_at, query_id
  LIMIT $2
  FOR UPDATE SKIP LOCKED
)
RETURNING ` + queryCols
	rows, err := l.db.Pool.Query(ctx, q, now, limit, owner, leaseUntil)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OracleQuery
	for rows.Next() {
		oq, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, oq)
	}
	return out, rows.Err()
}

// MarkSent records a successful delivery.
func (l *Ledger) MarkSent(ctx context.Context, queryID, owner string, attempts int, at time.Time) (bool, error) {
	const q = `
UPDATE oracle_outbox
SET status='sent', attempts=$3, last_error='', lease_owner=NULL, lease_until=NULL, finished_at=$4
WHERE query_id=$1 AND status='pending' AND (lease_owner IS NULL OR lease_owner=$2)`
	return l.mark(ctx, q, queryID, owner, attempts, at)
}

// MarkRetry releases the lease and schedules another attempt.
func (l *Ledger) MarkRetry(ctx context.Context, queryID, owner string, attempts int, next time.Time, lastErr string) (bool, error) {
	const q = `
UPDATE oracle_outbox
SET attempts=$3, next_attempt_at=$4, last_error=$5, lease_owner=NULL, lease_until=NULL
WHERE query_id=$1 AND status='pending' AND (lease_owner IS NULL OR lease_owner=$2)`
	return l.mark(ctx, q, queryID, owner, attempts, next, lastErr)
}

// MarkFailed gives up on the query.
func (l *Ledger) MarkFailed(ctx context.Context, queryID, owner string, attempts int, lastErr string, at time.Time) (bool, error) {
	const q = `
UPDATE oracle_outbox
SET status='failed', attempts=$3, last_error=$4, lease_owner=NULL, lease_until=NULL, finished_at=$5
WHERE query_id=$1 AND status='pending' AND (lease_owner IS NULL OR lease_owner=$2)`
	return l.mark(ctx, q, queryID, owner, attempts, lastErr, at)
}

func (l *Ledger) mark(ctx context.Context, q, queryID, owner string, args ...any) (bool, error) {
	tag, err := l.db.Pool.Exec(ctx, q, append([]any{queryID, owner}, args...)...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Query loads one outbox row.
func (l *Ledger) Query(ctx context.Context, queryID string) (model.OracleQuery, error) {
	oq, err := scanQuery(l.db.Pool.QueryRow(ctx, `SELECT `+queryCols+` FROM oracle_outbox WHERE query_id=$1`, queryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return oq, fmt.Errorf("query %s: %w", queryID, errs.ErrNotFound)
	}
	return oq, err
}
