package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG keeps login attempts in the auth_limiter table so that every server
// replica sees the same counters.
type PG struct {
	db       querier
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter over a pool or a transaction.
func NewPG(db querier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{db: db, window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, account string, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE account=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.db.QueryRow(ctx, q, account, ipHash).Scan(&blockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if now := l.now(); blockedUntil.After(now) {
		return false, blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the attempts of (account, ip).
func (l *PG) Success(ctx context.Context, account string, ipHash []byte) error {
	_, err := l.db.Exec(ctx, `DELETE FROM auth_limiter WHERE account=$1 AND ip_hash=$2`, account, ipHash)
	return err
}

// Failure counts a failed attempt. The counter restarts when the previous
// failure is older than the window; reaching maxFails blocks for blockFor.
// Counting and blocking happen in one statement.
func (l *PG) Failure(ctx context.Context, account string, ipHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO auth_limiter AS a (account, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, CASE WHEN $5 <= 1 THEN $3::timestamptz + $6::interval ELSE 'epoch' END, $3)
ON CONFLICT (account, ip_hash) DO UPDATE
SET fail_count = CASE WHEN $3 - a.updated_at > $4::interval THEN 1 ELSE a.fail_count + 1 END,
    blocked_until = CASE
      WHEN (CASE WHEN $3 - a.updated_at > $4::interval THEN 1 ELSE a.fail_count + 1 END) >= $5
      THEN $3::timestamptz + $6::interval
      ELSE a.blocked_until END,
    updated_at = $3
RETURNING fail_count, blocked_until`
	now := l.now().UTC()
	var (
		fails        int
		blockedUntil time.Time
	)
	if err := l.db.QueryRow(ctx, q, account, ipHash, now, l.window, l.maxFails, l.blockFor).
		Scan(&fails, &blockedUntil); err != nil {
		return false, 0, err
	}
	if fails >= l.maxFails && blockedUntil.After(now) {
		return true, blockedUntil.Sub(now), nil
	}
	return false, 0, nil
}

// Prune deletes entries whose last failure and block both ended before cutoff.
func (l *PG) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `DELETE FROM auth_limiter WHERE updated_at < $1 AND blocked_until < $1`
	tag, err := l.db.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
