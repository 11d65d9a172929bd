package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/chain"
	"github.com/and161185/nft-farm/internal/errs"
)

// Chain bundles the on-chain collaborators of the ledger.
type Chain struct {
	Collections chain.Collections
	Reward      chain.RewardToken
	Funds       chain.Funds
	Custody     common.Address // holds staked NFTs and collected fees
}

// pullTokens moves ids from owner into custody. On failure the tokens
// already moved are sent back before returning.
func (c Chain) pullTokens(ctx context.Context, col chain.Collection, owner common.Address, ids []uint256.Int, log *zap.Logger) error {
	for i := range ids {
		if err := col.TransferFrom(ctx, owner, c.Custody, &ids[i]); err != nil {
			c.releaseBestEffort(ctx, col, owner, ids[:i], log)
			return fmt.Errorf("pull token %s: %w", ids[i].Dec(), asTransferFailed(err))
		}
	}
	return nil
}

// releaseTokens moves ids from custody back to owner. On failure the tokens
// already released are pulled back into custody before returning.
func (c Chain) releaseTokens(ctx context.Context, col chain.Collection, owner common.Address, ids []uint256.Int, log *zap.Logger) error {
	for i := range ids {
		if err := col.TransferFrom(ctx, c.Custody, owner, &ids[i]); err != nil {
			for j := range ids[:i] {
				if cerr := col.TransferFrom(ctx, owner, c.Custody, &ids[j]); cerr != nil {
					log.Warn("re-pull after failed release", zap.String("token", ids[j].Dec()), zap.Error(cerr))
				}
			}
			return fmt.Errorf("release token %s: %w", ids[i].Dec(), asTransferFailed(err))
		}
	}
	return nil
}

func (c Chain) releaseBestEffort(ctx context.Context, col chain.Collection, owner common.Address, ids []uint256.Int, log *zap.Logger) {
	for i := range ids {
		if err := col.TransferFrom(ctx, c.Custody, owner, &ids[i]); err != nil {
			log.Warn("compensating release failed", zap.String("owner", owner.Hex()), zap.String("token", ids[i].Dec()), zap.Error(err))
		}
	}
}

func (c Chain) refund(ctx context.Context, to common.Address, amount *uint256.Int, log *zap.Logger) {
	if amount.IsZero() {
		return
	}
	if err := c.Funds.Send(ctx, to, amount); err != nil {
		log.Warn("refund failed", zap.String("to", to.Hex()), zap.String("amount", amount.Dec()), zap.Error(err))
	}
}

func asTransferFailed(err error) error {
	if errors.Is(err, errs.ErrTransferFailed) {
		return err
	}
	return fmt.Errorf("%v: %w", err, errs.ErrTransferFailed)
}
