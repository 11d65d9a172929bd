package evm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/chain"
)

// Collections resolves ERC-721 contracts, binding each address once.
type Collections struct {
	c     *Client
	mu    sync.Mutex
	bound map[common.Address]*Collection
}

var _ chain.Collections = (*Collections)(nil)

// NewCollections returns a resolver that sends through c.
func NewCollections(c *Client) *Collections {
	return &Collections{c: c, bound: map[common.Address]*Collection{}}
}

// Collection implements chain.Collections.
func (r *Collections) Collection(addr common.Address) (chain.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if col, ok := r.bound[addr]; ok {
		return col, nil
	}
	bc, err := r.c.bind(addr, erc721ABI)
	if err != nil {
		return nil, err
	}
	col := &Collection{c: r.c, contract: bc}
	r.bound[addr] = col
	return col, nil
}

// Collection is a bound ERC-721 contract.
type Collection struct {
	c        *Client
	contract *bind.BoundContract
}

// OwnerOf implements chain.Collection.
func (col *Collection) OwnerOf(ctx context.Context, tokenID *uint256.Int) (common.Address, error) {
	var out []interface{}
	if err := col.contract.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", tokenID.ToBig()); err != nil {
		return common.Address{}, fmt.Errorf("ownerOf %s: %w", tokenID.Dec(), err)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("ownerOf: unexpected result %T", out[0])
	}
	return owner, nil
}

// IsApprovedForAll implements chain.Collection.
func (col *Collection) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	var out []interface{}
	if err := col.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isApprovedForAll", owner, operator); err != nil {
		return false, fmt.Errorf("isApprovedForAll: %w", err)
	}
	approved, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isApprovedForAll: unexpected result %T", out[0])
	}
	return approved, nil
}

// TransferFrom implements chain.Collection.
func (col *Collection) TransferFrom(ctx context.Context, from, to common.Address, tokenID *uint256.Int) error {
	return col.c.transact(ctx, col.contract, "transferFrom", from, to, tokenID.ToBig())
}
