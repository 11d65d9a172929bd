package service

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository"
)

// FundingService manages the fee-currency balance that pays for oracle queries.
type FundingService interface {
	// Deposit tops up funding from the caller.
	Deposit(ctx context.Context, p authz.Principal, amount uint256.Int) (model.Funding, error)
	// WithdrawFunding pays amount out to the calling admin.
	WithdrawFunding(ctx context.Context, p authz.Principal, amount uint256.Int) (model.Funding, error)
	// Balance returns the funding state.
	Balance(ctx context.Context) (model.Funding, error)
}

type FundingServiceImpl struct {
	store repository.Ledger
	chain Chain
	log   *zap.Logger
}

// NewFundingService constructs FundingService.
func NewFundingService(store repository.Ledger, ch Chain, log *zap.Logger) *FundingServiceImpl {
	return &FundingServiceImpl{store: store, chain: ch, log: log}
}

// Deposit credits amount and pulls it from the caller.
func (s *FundingServiceImpl) Deposit(ctx context.Context, p authz.Principal, amount uint256.Int) (f model.Funding, err error) {
	defer func() { observe("deposit", err) }()
	if p.Anonymous() {
		return model.Funding{}, errs.ErrUnauthorized
	}
	if amount.IsZero() {
		return model.Funding{}, fmt.Errorf("zero deposit: %w", errs.ErrInvalidArgument)
	}
	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		if f, err = tx.Funding(ctx); err != nil {
			return err
		}
		if _, overflow := f.Balance.AddOverflow(&f.Balance, &amount); overflow {
			return fmt.Errorf("balance overflow: %w", errs.ErrInvalidArgument)
		}
		if err := tx.PutFunding(ctx, f); err != nil {
			return err
		}
		if err := s.chain.Funds.Collect(ctx, p.Address, &amount); err != nil {
			return fmt.Errorf("collect deposit: %w", asTransferFailed(err))
		}
		return nil
	})
	if err != nil {
		return model.Funding{}, err
	}
	s.log.Info("funding deposited", zap.String("from", p.Address.Hex()), zap.String("amount", amount.Dec()), zap.String("balance", f.Balance.Dec()))
	return f, nil
}

// WithdrawFunding debits amount, then sends it to the admin.
func (s *FundingServiceImpl) WithdrawFunding(ctx context.Context, p authz.Principal, amount uint256.Int) (f model.Funding, err error) {
	defer func() { observe("withdraw", err) }()
	if err = p.Require(authz.RoleAdmin); err != nil {
		return model.Funding{}, err
	}
	if amount.IsZero() {
		return model.Funding{}, fmt.Errorf("zero withdrawal: %w", errs.ErrInvalidArgument)
	}
	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		if f, err = tx.Funding(ctx); err != nil {
			return err
		}
		if f.Balance.Lt(&amount) {
			return fmt.Errorf("balance %s < %s: %w", f.Balance.Dec(), amount.Dec(), errs.ErrInsufficientFunding)
		}
		f.Balance.Sub(&f.Balance, &amount)
		f.Withdrawn.Add(&f.Withdrawn, &amount)
		if err := tx.PutFunding(ctx, f); err != nil {
			return err
		}
		if err := s.chain.Funds.Send(ctx, p.Address, &amount); err != nil {
			return fmt.Errorf("send withdrawal: %w", asTransferFailed(err))
		}
		return nil
	})
	if err != nil {
		return model.Funding{}, err
	}
	s.log.Info("funding withdrawn", zap.String("to", p.Address.Hex()), zap.String("amount", amount.Dec()), zap.String("balance", f.Balance.Dec()))
	return f, nil
}

// Balance reads the funding state.
func (s *FundingServiceImpl) Balance(ctx context.Context) (model.Funding, error) {
	var f model.Funding
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		f, err = tx.Funding(ctx)
		return err
	})
	return f, err
}
