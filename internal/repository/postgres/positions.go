package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
)

const positionSel = `
SELECT stake_timestamp, reward_accrued::text
FROM positions WHERE user_address=$1 AND cid=$2`

// Position creates the row when absent so that concurrent first stakes
// serialise on it.
func (t *ledgerTx) Position(ctx context.Context, user common.Address, cid uint64) (model.Position, error) {
	const ensure = `
INSERT INTO positions (user_address, cid) VALUES ($1, $2)
ON CONFLICT (user_address, cid) DO NOTHING`
	if _, err := t.tx.Exec(ctx, ensure, user.Bytes(), cid); err != nil {
		return model.Position{User: user, Cid: cid}, err
	}
	return t.readPosition(ctx, user, cid, positionSel+` FOR UPDATE`)
}

// PositionView reads without locking; a missing row is a zero position.
func (t *ledgerTx) PositionView(ctx context.Context, user common.Address, cid uint64) (model.Position, error) {
	p, err := t.readPosition(ctx, user, cid, positionSel)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Position{User: user, Cid: cid}, nil
	}
	return p, err
}

func (t *ledgerTx) readPosition(ctx context.Context, user common.Address, cid uint64, sel string) (model.Position, error) {
	const tokens = `
SELECT token_id::text FROM staked_tokens
WHERE user_address=$1 AND cid=$2 ORDER BY seq`

	p := model.Position{User: user, Cid: cid}
	var (
		ts      *time.Time
		accrued string
	)
	if err := t.tx.QueryRow(ctx, sel, user.Bytes(), cid).Scan(&ts, &accrued); err != nil {
		return p, err
	}
	p.StakeTimestamp = fromNullTime(ts)
	var err error
	if p.RewardAccrued, err = parseAmount("reward_accrued", accrued); err != nil {
		return p, err
	}

	rows, err := t.tx.Query(ctx, tokens, user.Bytes(), cid)
	if err != nil {
		return p, err
	}
	defer rows.Close()
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return p, err
		}
		id, err := parseAmount("token_id", s)
		if err != nil {
			return p, err
		}
		p.TokenIDs = append(p.TokenIDs, id)
	}
	return p, rows.Err()
}

func (t *ledgerTx) PutPosition(ctx context.Context, p model.Position) error {
	const q = `
INSERT INTO positions (user_address, cid, stake_timestamp, reward_accrued)
VALUES ($1, $2, $3, $4::numeric)
ON CONFLICT (user_address, cid)
DO UPDATE SET stake_timestamp=EXCLUDED.stake_timestamp, reward_accrued=EXCLUDED.reward_accrued`
	_, err := t.tx.Exec(ctx, q, p.User.Bytes(), p.Cid, nullTime(p.StakeTimestamp), p.RewardAccrued.Dec())
	return err
}

func (t *ledgerTx) AddTokens(ctx context.Context, user common.Address, cid uint64, ids []uint256.Int, at time.Time) error {
	const q = `
INSERT INTO staked_tokens (cid, token_id, user_address, staked_at)
VALUES ($1, $2::numeric, $3, $4)`
	batch := slices.Clone(ids)
	slices.SortFunc(batch, func(a, b uint256.Int) int { return a.Cmp(&b) })
	for _, id := range batch {
		_, err := t.tx.Exec(ctx, q, cid, id.Dec(), user.Bytes(), at)
		if isUniqueViolation(err) {
			return fmt.Errorf("token %s already staked: %w", id.Dec(), errs.ErrTransferFailed)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *ledgerTx) RemoveTokens(ctx context.Context, user common.Address, cid uint64, ids []uint256.Int) error {
	const q = `DELETE FROM staked_tokens WHERE cid=$1 AND token_id=$2::numeric AND user_address=$3`
	for _, id := range ids {
		tag, err := t.tx.Exec(ctx, q, cid, id.Dec(), user.Bytes())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("token %s: %w", id.Dec(), errs.ErrNotOwner)
		}
	}
	return nil
}

func (t *ledgerTx) Pool(ctx context.Context, cid uint64) (model.PoolAggregate, error) {
	const ensure = `INSERT INTO pools (cid) VALUES ($1) ON CONFLICT (cid) DO NOTHING`
	const sel = `SELECT amount_of_stakers, amount_staked_in_pool FROM pools WHERE cid=$1 FOR UPDATE`
	p := model.PoolAggregate{Cid: cid}
	if _, err := t.tx.Exec(ctx, ensure, cid); err != nil {
		return p, err
	}
	err := t.tx.QueryRow(ctx, sel, cid).Scan(&p.AmountOfStakers, &p.AmountStakedInPool)
	return p, err
}

// PoolView reads without locking; a missing row is a zero aggregate.
func (t *ledgerTx) PoolView(ctx context.Context, cid uint64) (model.PoolAggregate, error) {
	const sel = `SELECT amount_of_stakers, amount_staked_in_pool FROM pools WHERE cid=$1`
	p := model.PoolAggregate{Cid: cid}
	err := t.tx.QueryRow(ctx, sel, cid).Scan(&p.AmountOfStakers, &p.AmountStakedInPool)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PoolAggregate{Cid: cid}, nil
	}
	return p, err
}

func (t *ledgerTx) PutPool(ctx context.Context, p model.PoolAggregate) error {
	const q = `
INSERT INTO pools (cid, amount_of_stakers, amount_staked_in_pool) VALUES ($1, $2, $3)
ON CONFLICT (cid)
DO UPDATE SET amount_of_stakers=EXCLUDED.amount_of_stakers, amount_staked_in_pool=EXCLUDED.amount_staked_in_pool`
	_, err := t.tx.Exec(ctx, q, p.Cid, p.AmountOfStakers, p.AmountStakedInPool)
	return err
}
