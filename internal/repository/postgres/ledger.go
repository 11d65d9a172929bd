package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository"
)

// Ledger implements repository.Ledger and repository.Outbox using PostgreSQL.
// Row locks are taken in the order position, pool, funding.
type Ledger struct{ db *DB }

var (
	_ repository.Ledger = (*Ledger)(nil)
	_ repository.Outbox = (*Ledger)(nil)
)

// NewLedger constructs a ledger repository.
func NewLedger(db *DB) *Ledger { return &Ledger{db: db} }

// WithinTx runs fn in one database transaction and commits when fn succeeds.
func (l *Ledger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) (err error) {
	tx, err := l.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	return fn(&ledgerTx{tx: tx})
}

type ledgerTx struct{ tx pgx.Tx }

const collectionCols = `cid, is_stakable, collection_address, staking_fee::text, harvesting_fee::text,
multiplier::text, maturity_period, max_days_for_staking, staking_limit, updated_at`

func scanCollection(row pgx.Row) (model.CollectionConfig, error) {
	var (
		c                      model.CollectionConfig
		addr                   []byte
		stakeFee, harvFee, mul string
	)
	if err := row.Scan(&c.Cid, &c.IsStakable, &addr, &stakeFee, &harvFee, &mul,
		&c.MaturityPeriod, &c.MaxDaysForStaking, &c.StakingLimit, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.CollectionAddress = common.BytesToAddress(addr)
	c.UpdatedAt = c.UpdatedAt.UTC()
	var err error
	if c.StakingFee, err = parseAmount("staking_fee", stakeFee); err != nil {
		return c, err
	}
	if c.HarvestingFee, err = parseAmount("harvesting_fee", harvFee); err != nil {
		return c, err
	}
	c.Multiplier, err = parseAmount("multiplier", mul)
	return c, err
}

func (t *ledgerTx) Collection(ctx context.Context, cid uint64) (model.CollectionConfig, error) {
	q := `SELECT ` + collectionCols + ` FROM collections WHERE cid=$1`
	c, err := scanCollection(t.tx.QueryRow(ctx, q, cid))
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("cid %d: %w", cid, errs.ErrUnknownCollection)
	}
	return c, err
}

func (t *ledgerTx) CollectionByAddress(ctx context.Context, addr common.Address) (model.CollectionConfig, error) {
	q := `SELECT ` + collectionCols + ` FROM collections WHERE collection_address=$1`
	c, err := scanCollection(t.tx.QueryRow(ctx, q, addr.Bytes()))
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("collection %s: %w", addr.Hex(), errs.ErrNotFound)
	}
	return c, err
}

func (t *ledgerTx) CreateCollection(ctx context.Context, cfg model.CollectionConfig) (uint64, error) {
	const q = `
INSERT INTO collections (cid, is_stakable, collection_address, staking_fee, harvesting_fee, multiplier,
  maturity_period, max_days_for_staking, staking_limit, updated_at)
VALUES (nextval('collection_cid_seq'), $1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9)
RETURNING cid`
	var cid uint64
	err := t.tx.QueryRow(ctx, q, cfg.IsStakable, cfg.CollectionAddress.Bytes(),
		cfg.StakingFee.Dec(), cfg.HarvestingFee.Dec(), cfg.Multiplier.Dec(),
		cfg.MaturityPeriod, cfg.MaxDaysForStaking, cfg.StakingLimit, cfg.UpdatedAt).Scan(&cid)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("collection %s: %w", cfg.CollectionAddress.Hex(), errs.ErrAlreadyExists)
	}
	return cid, err
}

func (t *ledgerTx) UpdateCollection(ctx context.Context, cfg model.CollectionConfig) error {
	const q = `
UPDATE collections SET is_stakable=$2, staking_fee=$3::numeric, harvesting_fee=$4::numeric, multiplier=$5::numeric,
  maturity_period=$6, max_days_for_staking=$7, staking_limit=$8, updated_at=$9
WHERE cid=$1`
	tag, err := t.tx.Exec(ctx, q, cfg.Cid, cfg.IsStakable,
		cfg.StakingFee.Dec(), cfg.HarvestingFee.Dec(), cfg.Multiplier.Dec(),
		cfg.MaturityPeriod, cfg.MaxDaysForStaking, cfg.StakingLimit, cfg.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cid %d: %w", cfg.Cid, errs.ErrUnknownCollection)
	}
	return nil
}

func (t *ledgerTx) ListCollections(ctx context.Context) ([]model.CollectionConfig, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+collectionCols+` FROM collections ORDER BY cid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CollectionConfig
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *ledgerTx) Funding(ctx context.Context) (model.Funding, error) {
	const q = `
SELECT balance::text, collected_fees::text, oracle_spend::text, withdrawn::text
FROM funding WHERE id=1 FOR UPDATE`
	var bal, fees, spend, out string
	if err := t.tx.QueryRow(ctx, q).Scan(&bal, &fees, &spend, &out); err != nil {
		return model.Funding{}, err
	}
	var (
		f   model.Funding
		err error
	)
	if f.Balance, err = parseAmount("balance", bal); err != nil {
		return f, err
	}
	if f.CollectedFees, err = parseAmount("collected_fees", fees); err != nil {
		return f, err
	}
	if f.OracleSpend, err = parseAmount("oracle_spend", spend); err != nil {
		return f, err
	}
	f.Withdrawn, err = parseAmount("withdrawn", out)
	return f, err
}

func (t *ledgerTx) PutFunding(ctx context.Context, f model.Funding) error {
	const q = `
UPDATE funding SET balance=$1::numeric, collected_fees=$2::numeric, oracle_spend=$3::numeric, withdrawn=$4::numeric
WHERE id=1`
	_, err := t.tx.Exec(ctx, q, f.Balance.Dec(), f.CollectedFees.Dec(), f.OracleSpend.Dec(), f.Withdrawn.Dec())
	return err
}

func (t *ledgerTx) EnqueueQuery(ctx context.Context, q model.OracleQuery) error {
	const ins = `
INSERT INTO oracle_outbox (query_id, payload, status, attempts, max_attempts, next_attempt_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.tx.Exec(ctx, ins, q.QueryID, q.Payload, string(q.Status), q.Attempts, q.MaxAttempts,
		q.NextAttemptAt, q.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("query %s: %w", q.QueryID, errs.ErrAlreadyExists)
	}
	return err
}
