package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/chain"
)

// Token is a bound ERC-20 contract used either as the mintable reward token
// or as the fee currency.
type Token struct {
	c        *Client
	contract *bind.BoundContract
}

var (
	_ chain.RewardToken = (*Token)(nil)
	_ chain.Funds       = (*Token)(nil)
)

// NewToken binds the ERC-20 contract at addr.
func NewToken(c *Client, addr common.Address) (*Token, error) {
	bc, err := c.bind(addr, erc20ABI)
	if err != nil {
		return nil, err
	}
	return &Token{c: c, contract: bc}, nil
}

// BalanceOf returns the token balance of owner.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	b, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unexpected result %T", out[0])
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("balanceOf: overflow")
	}
	return v, nil
}

// Mint implements chain.RewardToken; custody must be a minter.
func (t *Token) Mint(ctx context.Context, to common.Address, amount *uint256.Int) error {
	return t.c.transact(ctx, t.contract, "mint", to, amount.ToBig())
}

// Collect implements chain.Funds; from must have approved custody.
func (t *Token) Collect(ctx context.Context, from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return t.c.transact(ctx, t.contract, "transferFrom", from, t.c.from, amount.ToBig())
}

// Send implements chain.Funds.
func (t *Token) Send(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return t.c.transact(ctx, t.contract, "transfer", to, amount.ToBig())
}
