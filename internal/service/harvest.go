package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/metrics"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository"
)

// HarvestService issues oracle-priced harvest requests and applies their results.
type HarvestService interface {
	// Harvest snapshots the caller's position and queues an oracle query; returns the query id.
	Harvest(ctx context.Context, p authz.Principal, cid uint64, payment uint256.Int) (string, error)
	// GetRequest returns a request by query id.
	GetRequest(ctx context.Context, queryID string) (model.HarvestRequest, error)
	// OnOracleResult credits the reward of a pending request exactly once.
	OnOracleResult(ctx context.Context, p authz.Principal, queryID string, rarity uint256.Int) (model.HarvestRequest, error)
	// CancelRequest closes a pending request without reward.
	CancelRequest(ctx context.Context, p authz.Principal, queryID string) error
	// ExpireStale closes up to limit pending requests past their deadline.
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// HarvestOptions configures the oracle side of harvesting.
type HarvestOptions struct {
	OracleQueryCost  uint256.Int   // debited from funding per query
	RequestTTL       time.Duration // pending requests expire after this
	QueryMaxAttempts int           // outbox delivery budget
	CallbackURL      string        // advertised to the oracle in each query
}

type HarvestServiceImpl struct {
	store repository.Ledger
	chain Chain
	clock Clock
	opts  HarvestOptions
	log   *zap.Logger
}

// NewHarvestService constructs HarvestService.
func NewHarvestService(store repository.Ledger, ch Chain, clock Clock, opts HarvestOptions, log *zap.Logger) *HarvestServiceImpl {
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = 24 * time.Hour
	}
	if opts.QueryMaxAttempts <= 0 {
		opts.QueryMaxAttempts = 8
	}
	return &HarvestServiceImpl{store: store, chain: ch, clock: clock, opts: opts, log: log}
}

// Harvest validates eligibility, pays for the oracle query out of funding and
// stores the request together with its outbox query.
func (s *HarvestServiceImpl) Harvest(ctx context.Context, p authz.Principal, cid uint64, payment uint256.Int) (queryID string, err error) {
	defer func() { observe("harvest", err) }()
	if p.Anonymous() {
		return "", errs.ErrUnauthorized
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	queryID = id.String()
	now := ledgerNow(s.clock)
	var req model.HarvestRequest

	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		cfg, err := tx.Collection(ctx, cid)
		if err != nil {
			return err
		}
		pos, err := tx.Position(ctx, p.Address, cid)
		if err != nil {
			return err
		}
		if pos.AmountStaked() == 0 {
			return fmt.Errorf("cid %d: %w", cid, errs.ErrNothingStaked)
		}
		if !pos.Matured(now, cfg.MaturityPeriod) {
			return fmt.Errorf("staked at %s, maturity %ds: %w", pos.StakeTimestamp.Format(time.RFC3339), cfg.MaturityPeriod, errs.ErrNotMature)
		}
		if pos.DaysStaked(now, cfg.MaxDaysForStaking) == 0 {
			return fmt.Errorf("no whole day staked since %s: %w", pos.StakeTimestamp.Format(time.RFC3339), errs.ErrNotMature)
		}
		if pending, ok, err := tx.PendingRequest(ctx, p.Address, cid); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("query %s: %w", pending.QueryID, errs.ErrRequestPending)
		}
		if payment.Lt(&cfg.HarvestingFee) {
			return fmt.Errorf("paid %s, fee %s: %w", payment.Dec(), cfg.HarvestingFee.Dec(), errs.ErrInsufficientFee)
		}

		// pool before funding, same lock order as staking
		pool, err := tx.Pool(ctx, cid)
		if err != nil {
			return err
		}

		f, err := tx.Funding(ctx)
		if err != nil {
			return err
		}
		f.Balance.Add(&f.Balance, &payment)
		f.CollectedFees.Add(&f.CollectedFees, &payment)
		if f.Balance.Lt(&s.opts.OracleQueryCost) {
			return fmt.Errorf("balance %s, query cost %s: %w", f.Balance.Dec(), s.opts.OracleQueryCost.Dec(), errs.ErrInsufficientFunding)
		}

		req = pos.Request(cfg, pool.AmountOfStakers, now, s.opts.RequestTTL)
		req.QueryID = queryID
		if err := tx.CreateRequest(ctx, req); err != nil {
			return err
		}
		payload, err := json.Marshal(req.Payload(s.opts.CallbackURL))
		if err != nil {
			return err
		}
		if err := tx.EnqueueQuery(ctx, model.OracleQuery{
			QueryID:       queryID,
			Payload:       payload,
			Status:        model.QueryPending,
			MaxAttempts:   s.opts.QueryMaxAttempts,
			NextAttemptAt: now,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		f.Balance.Sub(&f.Balance, &s.opts.OracleQueryCost)
		f.OracleSpend.Add(&f.OracleSpend, &s.opts.OracleQueryCost)
		if err := tx.PutFunding(ctx, f); err != nil {
			return err
		}
		if err := s.chain.Funds.Collect(ctx, p.Address, &payment); err != nil {
			return fmt.Errorf("collect fee: %w", asTransferFailed(err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Info("harvest requested",
		zap.String("query_id", queryID),
		zap.String("user", p.Address.Hex()),
		zap.Uint64("cid", cid),
		zap.Int("tokens", len(req.TokenIDs)),
		zap.Uint64("days", req.DaysStaked),
		zap.Uint64("stakers", req.AmountOfStakers),
	)
	return queryID, nil
}

// GetRequest loads a request by query id.
func (s *HarvestServiceImpl) GetRequest(ctx context.Context, queryID string) (model.HarvestRequest, error) {
	var req model.HarvestRequest
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		req, err = tx.Request(ctx, queryID)
		return err
	})
	return req, err
}

// OnOracleResult prices the request snapshot with rarity, closes the request,
// consumes the harvested days and mints the reward. A failed mint rolls back
// and leaves the request pending for a retry.
func (s *HarvestServiceImpl) OnOracleResult(ctx context.Context, p authz.Principal, queryID string, rarity uint256.Int) (req model.HarvestRequest, err error) {
	defer func() { observe("oracle_result", err) }()
	if err = p.Require(authz.RoleOracle); err != nil {
		return model.HarvestRequest{}, err
	}
	now := ledgerNow(s.clock)

	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		if req, err = tx.Request(ctx, queryID); err != nil {
			return err
		}
		if req.Status != model.RequestPending {
			return fmt.Errorf("query %s is %s: %w", queryID, req.Status, errs.ErrUnknownRequest)
		}
		reward, err := model.Reward(&req.Multiplier, req.DaysStaked, &rarity, len(req.TokenIDs), req.AmountOfStakers)
		if err != nil {
			return err
		}
		req.Status = model.RequestFulfilled
		req.Rarity = rarity
		req.Reward = reward
		req.CompletedAt = now
		if err := tx.CompleteRequest(ctx, req); err != nil {
			return err
		}

		pos, err := tx.Position(ctx, req.Requester, req.Cid)
		if err != nil {
			return err
		}
		if _, overflow := pos.RewardAccrued.AddOverflow(&pos.RewardAccrued, &reward); overflow {
			return fmt.Errorf("accrued reward overflow: %w", errs.ErrInvalidArgument)
		}
		if !pos.StakeTimestamp.IsZero() && pos.StakeTimestamp.Equal(req.StakeTimestamp) {
			pos.StakeTimestamp = req.ConsumedUntil()
		}
		if err := tx.PutPosition(ctx, pos); err != nil {
			return err
		}

		if reward.IsZero() {
			return nil
		}
		if err := s.chain.Reward.Mint(ctx, req.Requester, &reward); err != nil {
			return fmt.Errorf("mint reward: %w", asTransferFailed(err))
		}
		return nil
	})
	if err != nil {
		return model.HarvestRequest{}, err
	}
	metrics.RequestsCompleted.WithLabelValues(string(model.RequestFulfilled)).Inc()
	s.log.Info("harvest fulfilled",
		zap.String("query_id", queryID),
		zap.String("user", req.Requester.Hex()),
		zap.String("rarity", req.Rarity.Dec()),
		zap.String("reward", req.Reward.Dec()),
	)
	return req, nil
}

// CancelRequest lets an admin abandon a stuck request.
func (s *HarvestServiceImpl) CancelRequest(ctx context.Context, p authz.Principal, queryID string) (err error) {
	defer func() { observe("cancel_request", err) }()
	if err = p.Require(authz.RoleAdmin); err != nil {
		return err
	}
	now := ledgerNow(s.clock)
	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		req, err := tx.Request(ctx, queryID)
		if err != nil {
			return err
		}
		if req.Status != model.RequestPending {
			return fmt.Errorf("query %s is %s: %w", queryID, req.Status, errs.ErrUnknownRequest)
		}
		req.Status = model.RequestCancelled
		req.CompletedAt = now
		return tx.CompleteRequest(ctx, req)
	})
	if err != nil {
		return err
	}
	metrics.RequestsCompleted.WithLabelValues(string(model.RequestCancelled)).Inc()
	s.log.Info("harvest cancelled", zap.String("query_id", queryID), zap.String("by", p.Address.Hex()))
	return nil
}

// DefaultExpireBatch bounds one ExpireStale pass when the caller gives no limit.
const DefaultExpireBatch = 100

// ExpireStale moves overdue pending requests to expired. A non-positive limit
// means DefaultExpireBatch.
func (s *HarvestServiceImpl) ExpireStale(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultExpireBatch
	}
	now := ledgerNow(s.clock)
	var expired []string
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		stale, err := tx.StaleRequests(ctx, now, limit)
		if err != nil {
			return err
		}
		expired = expired[:0]
		for _, req := range stale {
			req.Status = model.RequestExpired
			req.CompletedAt = now
			if err := tx.CompleteRequest(ctx, req); err != nil {
				return err
			}
			expired = append(expired, req.QueryID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(expired) > 0 {
		metrics.RequestsCompleted.WithLabelValues(string(model.RequestExpired)).Add(float64(len(expired)))
		s.log.Info("harvest requests expired", zap.Strings("query_ids", expired))
	}
	return len(expired), nil
}
