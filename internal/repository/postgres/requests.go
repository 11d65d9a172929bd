package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
)

const requestCols = `query_id, requester, cid, collection_address, token_ids, days_staked, multiplier::text,
amount_of_stakers, stake_timestamp, status, rarity::text, reward::text, created_at, expires_at, completed_at`

func scanRequest(row pgx.Row) (model.HarvestRequest, error) {
	var (
		r                   model.HarvestRequest
		requester, colAddr  []byte
		ids                 []string
		mul, rarity, reward string
		status              string
		completed           *time.Time
	)
	if err := row.Scan(&r.QueryID, &requester, &r.Cid, &colAddr, &ids, &r.DaysStaked, &mul,
		&r.AmountOfStakers, &r.StakeTimestamp, &status, &rarity, &reward,
		&r.CreatedAt, &r.ExpiresAt, &completed); err != nil {
		return r, err
	}
	r.Requester = common.BytesToAddress(requester)
	r.CollectionAddress = common.BytesToAddress(colAddr)
	r.Status = model.RequestStatus(status)
	r.StakeTimestamp = r.StakeTimestamp.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	r.CompletedAt = fromNullTime(completed)

	var err error
	for _, s := range ids {
		id, err := parseAmount("token_ids", s)
		if err != nil {
			return r, err
		}
		r.TokenIDs = append(r.TokenIDs, id)
	}
	if r.Multiplier, err = parseAmount("multiplier", mul); err != nil {
		return r, err
	}
	if r.Rarity, err = parseAmount("rarity", rarity); err != nil {
		return r, err
	}
	r.Reward, err = parseAmount("reward", reward)
	return r, err
}

func (t *ledgerTx) PendingRequest(ctx context.Context, user common.Address, cid uint64) (model.HarvestRequest, bool, error) {
	q := `SELECT ` + requestCols + ` FROM harvest_requests
WHERE requester=$1 AND cid=$2 AND status='pending'`
	r, err := scanRequest(t.tx.QueryRow(ctx, q, user.Bytes(), cid))
	switch {
	case err == nil:
		return r, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return model.HarvestRequest{}, false, nil
	default:
		return model.HarvestRequest{}, false, err
	}
}

func (t *ledgerTx) CreateRequest(ctx context.Context, r model.HarvestRequest) error {
	const q = `
INSERT INTO harvest_requests (query_id, requester, cid, collection_address, token_ids, days_staked, multiplier,
  amount_of_stakers, stake_timestamp, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12)`
	ids := make([]string, len(r.TokenIDs))
	for i := range r.TokenIDs {
		ids[i] = r.TokenIDs[i].Dec()
	}
	_, err := t.tx.Exec(ctx, q, r.QueryID, r.Requester.Bytes(), r.Cid, r.CollectionAddress.Bytes(), ids,
		r.DaysStaked, r.Multiplier.Dec(), r.AmountOfStakers, r.StakeTimestamp, string(r.Status),
		r.CreatedAt, r.ExpiresAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s for cid %d: %w", r.Requester.Hex(), r.Cid, errs.ErrRequestPending)
	}
	return err
}

func (t *ledgerTx) Request(ctx context.Context, queryID string) (model.HarvestRequest, error) {
	q := `SELECT ` + requestCols + ` FROM harvest_requests WHERE query_id=$1 FOR UPDATE`
	r, err := scanRequest(t.tx.QueryRow(ctx, q, queryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, fmt.Errorf("query %s: %w", queryID, errs.ErrUnknownRequest)
	}
	return r, err
}

func (t *ledgerTx) CompleteRequest(ctx context.Context, r model.HarvestRequest) error {
	const q = `
UPDATE harvest_requests SET status=$2, rarity=$3::numeric, reward=$4::numeric, completed_at=$5
WHERE query_id=$1`
	tag, err := t.tx.Exec(ctx, q, r.QueryID, string(r.Status), r.Rarity.Dec(), r.Reward.Dec(), nullTime(r.CompletedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("query %s: %w", r.QueryID, errs.ErrUnknownRequest)
	}
	return nil
}

func (t *ledgerTx) StaleRequests(ctx context.Context, now time.Time, limit int) ([]model.HarvestRequest, error) {
	q := `SELECT ` + requestCols + ` FROM harvest_requests
WHERE status='pending' AND expires_at <= $1
ORDER BY expires_at
LIMIT $2
FOR UPDATE SKIP LOCKED`
	rows, err := t.tx.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HarvestRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
