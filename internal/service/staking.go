package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/metrics"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository"
)

// StakingService moves NFTs in and out of the pool and exposes the ledger views.
type StakingService interface {
	// Stake locks one token; payment must cover the staking fee.
	Stake(ctx context.Context, p authz.Principal, cid uint64, tokenID uint256.Int, payment uint256.Int) error
	// BatchStake locks all tokenIDs or none.
	BatchStake(ctx context.Context, p authz.Principal, cid uint64, tokenIDs []uint256.Int, payment uint256.Int) error
	// Unstake returns one token to its staker.
	Unstake(ctx context.Context, p authz.Principal, cid uint64, tokenID uint256.Int) error
	// BatchUnstake returns all tokenIDs or none.
	BatchUnstake(ctx context.Context, p authz.Principal, cid uint64, tokenIDs []uint256.Int) error
	// ViewAmountOfStakers returns the number of non-empty positions in cid.
	ViewAmountOfStakers(ctx context.Context, cid uint64) (uint64, error)
	// GetCollectionInfo returns the config of cid with its pool totals.
	GetCollectionInfo(ctx context.Context, cid uint64) (model.CollectionInfo, error)
	// GetUser returns the position of user in cid; unknown users get a zero position.
	GetUser(ctx context.Context, user common.Address, cid uint64) (model.UserInfo, error)
}

type StakingServiceImpl struct {
	store    repository.Ledger
	chain    Chain
	clock    Clock
	maxBatch int
	log      *zap.Logger
}

// NewStakingService constructs StakingService with batch limits.
func NewStakingService(store repository.Ledger, ch Chain, clock Clock, maxBatch int, log *zap.Logger) *StakingServiceImpl {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &StakingServiceImpl{store: store, chain: ch, clock: clock, maxBatch: maxBatch, log: log}
}

// validateBatch rejects empty, oversized and duplicated batches.
func (s *StakingServiceImpl) validateBatch(ids []uint256.Int) error {
	if len(ids) == 0 {
		return fmt.Errorf("empty batch: %w", errs.ErrInvalidArgument)
	}
	if len(ids) > s.maxBatch {
		return fmt.Errorf("batch too large (%d > %d): %w", len(ids), s.maxBatch, errs.ErrInvalidArgument)
	}
	seen := make(map[uint256.Int]struct{}, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("token[%d] %s repeated: %w", i, id.Dec(), errs.ErrInvalidArgument)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Stake locks a single token.
func (s *StakingServiceImpl) Stake(ctx context.Context, p authz.Principal, cid uint64, tokenID uint256.Int, payment uint256.Int) error {
	return s.BatchStake(ctx, p, cid, []uint256.Int{tokenID}, payment)
}

// BatchStake checks every precondition, updates the ledger, then pulls the
// payment and the tokens. Any failure leaves the ledger and custody unchanged.
func (s *StakingServiceImpl) BatchStake(ctx context.Context, p authz.Principal, cid uint64, tokenIDs []uint256.Int, payment uint256.Int) (err error) {
	defer func() { observe("stake", err) }()
	if p.Anonymous() {
		return errs.ErrUnauthorized
	}
	if err = s.validateBatch(tokenIDs); err != nil {
		return err
	}
	n := uint64(len(tokenIDs))
	now := ledgerNow(s.clock)
	var pool model.PoolAggregate

	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		cfg, err := tx.Collection(ctx, cid)
		if err != nil {
			return err
		}
		if !cfg.IsStakable {
			return fmt.Errorf("cid %d: %w", cid, errs.ErrNotStakable)
		}
		pos, err := tx.Position(ctx, p.Address, cid)
		if err != nil {
			return err
		}
		if pos.AmountStaked()+n > cfg.StakingLimit {
			return fmt.Errorf("%d staked + %d > %d: %w", pos.AmountStaked(), n, cfg.StakingLimit, errs.ErrLimitExceeded)
		}
		fee, overflow := new(uint256.Int).MulOverflow(&cfg.StakingFee, uint256.NewInt(n))
		if overflow {
			return fmt.Errorf("fee overflow: %w", errs.ErrInvalidArgument)
		}
		if payment.Lt(fee) {
			return fmt.Errorf("paid %s, fee %s: %w", payment.Dec(), fee.Dec(), errs.ErrInsufficientFee)
		}

		col, err := s.chain.Collections.Collection(cfg.CollectionAddress)
		if err != nil {
			return asTransferFailed(err)
		}
		approved, err := col.IsApprovedForAll(ctx, p.Address, s.chain.Custody)
		if err != nil {
			return asTransferFailed(err)
		}
		if !approved {
			return fmt.Errorf("custody not approved for %s: %w", p.Address.Hex(), errs.ErrTransferFailed)
		}
		for i := range tokenIDs {
			owner, err := col.OwnerOf(ctx, &tokenIDs[i])
			if err != nil {
				return asTransferFailed(err)
			}
			if owner != p.Address {
				return fmt.Errorf("token %s owned by %s: %w", tokenIDs[i].Dec(), owner.Hex(), errs.ErrTransferFailed)
			}
		}

		if err := tx.AddTokens(ctx, p.Address, cid, tokenIDs, now); err != nil {
			return err
		}
		pool, err = tx.Pool(ctx, cid)
		if err != nil {
			return err
		}
		if pos.AmountStaked() == 0 {
			pool.AmountOfStakers++
		}
		pool.AmountStakedInPool += n
		if err := tx.PutPool(ctx, pool); err != nil {
			return err
		}
		pos.StakeTimestamp = now
		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}
		f, err := tx.Funding(ctx)
		if err != nil {
			return err
		}
		f.Balance.Add(&f.Balance, &payment)
		f.CollectedFees.Add(&f.CollectedFees, &payment)
		if err := tx.PutFunding(ctx, f); err != nil {
			return err
		}

		if err := s.chain.Funds.Collect(ctx, p.Address, &payment); err != nil {
			return fmt.Errorf("collect fee: %w", asTransferFailed(err))
		}
		if err := s.chain.pullTokens(ctx, col, p.Address, tokenIDs, s.log); err != nil {
			s.chain.refund(ctx, p.Address, &payment, s.log)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publishPool(pool)
	s.log.Info("staked",
		zap.String("user", p.Address.Hex()),
		zap.Uint64("cid", cid),
		zap.Int("tokens", len(tokenIDs)),
		zap.Uint64("stakers", pool.AmountOfStakers),
	)
	return nil
}

// Unstake returns a single token.
func (s *StakingServiceImpl) Unstake(ctx context.Context, p authz.Principal, cid uint64, tokenID uint256.Int) error {
	return s.BatchUnstake(ctx, p, cid, []uint256.Int{tokenID})
}

// BatchUnstake removes tokens from the caller's position and returns custody.
// It charges nothing and ignores maturity and stakability.
func (s *StakingServiceImpl) BatchUnstake(ctx context.Context, p authz.Principal, cid uint64, tokenIDs []uint256.Int) (err error) {
	defer func() { observe("unstake", err) }()
	if p.Anonymous() {
		return errs.ErrUnauthorized
	}
	if err = s.validateBatch(tokenIDs); err != nil {
		return err
	}
	n := uint64(len(tokenIDs))
	var pool model.PoolAggregate

	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		cfg, err := tx.Collection(ctx, cid)
		if err != nil {
			return err
		}
		pos, err := tx.Position(ctx, p.Address, cid)
		if err != nil {
			return err
		}
		for i := range tokenIDs {
			if !pos.Holds(tokenIDs[i]) {
				return fmt.Errorf("token %s: %w", tokenIDs[i].Dec(), errs.ErrNotOwner)
			}
		}
		if err := tx.RemoveTokens(ctx, p.Address, cid, tokenIDs); err != nil {
			return err
		}
		pool, err = tx.Pool(ctx, cid)
		if err != nil {
			return err
		}
		pool.AmountStakedInPool -= n
		remaining := pos.AmountStaked() - n
		if remaining == 0 {
			pool.AmountOfStakers--
			pos.StakeTimestamp = time.Time{}
		}
		if err := tx.PutPool(ctx, pool); err != nil {
			return err
		}
		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}

		col, err := s.chain.Collections.Collection(cfg.CollectionAddress)
		if err != nil {
			return asTransferFailed(err)
		}
		return s.chain.releaseTokens(ctx, col, p.Address, tokenIDs, s.log)
	})
	if err != nil {
		return err
	}
	s.publishPool(pool)
	s.log.Info("unstaked",
		zap.String("user", p.Address.Hex()),
		zap.Uint64("cid", cid),
		zap.Int("tokens", len(tokenIDs)),
		zap.Uint64("stakers", pool.AmountOfStakers),
	)
	return nil
}

func (s *StakingServiceImpl) publishPool(pool model.PoolAggregate) {
	label := strconv.FormatUint(pool.Cid, 10)
	metrics.TokensStaked.WithLabelValues(label).Set(float64(pool.AmountStakedInPool))
	metrics.Stakers.WithLabelValues(label).Set(float64(pool.AmountOfStakers))
}

// ViewAmountOfStakers returns the staker count of cid.
func (s *StakingServiceImpl) ViewAmountOfStakers(ctx context.Context, cid uint64) (uint64, error) {
	info, err := s.GetCollectionInfo(ctx, cid)
	if err != nil {
		return 0, err
	}
	return info.Pool.AmountOfStakers, nil
}

// GetCollectionInfo returns the config and pool aggregate of cid.
func (s *StakingServiceImpl) GetCollectionInfo(ctx context.Context, cid uint64) (model.CollectionInfo, error) {
	var info model.CollectionInfo
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		if info.Config, err = tx.Collection(ctx, cid); err != nil {
			return err
		}
		info.Pool, err = tx.PoolView(ctx, cid)
		return err
	})
	return info, err
}

// GetUser returns the position of user in cid with its derived day count.
func (s *StakingServiceImpl) GetUser(ctx context.Context, user common.Address, cid uint64) (model.UserInfo, error) {
	var info model.UserInfo
	now := ledgerNow(s.clock)
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		cfg, err := tx.Collection(ctx, cid)
		if err != nil {
			return err
		}
		if info.Position, err = tx.PositionView(ctx, user, cid); err != nil {
			return err
		}
		info.DaysStaked = info.Position.DaysStaked(now, cfg.MaxDaysForStaking)
		return nil
	})
	return info, err
}
