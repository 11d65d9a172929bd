// Package devnet is an in-memory chain used by dev mode and tests. It keeps
// NFT ownership and approvals, fee-currency balances and reward balances.
package devnet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/chain"
	"github.com/and161185/nft-farm/internal/errs"
)

// ErrInsufficientBalance is returned when a payer cannot cover a transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Chain holds every devnet contract behind one lock.
type Chain struct {
	mu          sync.Mutex
	custody     common.Address
	collections map[common.Address]*Collection
	balances    map[common.Address]uint256.Int // fee currency
	rewards     map[common.Address]uint256.Int
	failMint    error
}

var (
	_ chain.Collections = (*Chain)(nil)
	_ chain.RewardToken = (*Chain)(nil)
	_ chain.Funds       = (*Chain)(nil)
)

// New returns a devnet whose ledger custody account is custody.
func New(custody common.Address) *Chain {
	return &Chain{
		custody:     custody,
		collections: map[common.Address]*Collection{},
		balances:    map[common.Address]uint256.Int{},
		rewards:     map[common.Address]uint256.Int{},
	}
}

// Custody is the address that holds staked NFTs and collected fees.
func (c *Chain) Custody() common.Address { return c.custody }

// Deploy creates (or returns) the collection at addr.
func (c *Chain) Deploy(addr common.Address) *Collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[addr]; ok {
		return col
	}
	col := &Collection{chain: c, owners: map[uint256.Int]common.Address{}, approvals: map[[2]common.Address]bool{}}
	c.collections[addr] = col
	return col
}

// Collection implements chain.Collections.
func (c *Chain) Collection(addr common.Address) (chain.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.collections[addr]
	if !ok {
		return nil, fmt.Errorf("no contract at %s: %w", addr.Hex(), errs.ErrTransferFailed)
	}
	return col, nil
}

// Fund credits amount of fee currency to addr.
func (c *Chain) Fund(addr common.Address, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.balances[addr]
	b.Add(&b, uint256.NewInt(amount))
	c.balances[addr] = b
}

// Balance returns the fee-currency balance of addr.
func (c *Chain) Balance(addr common.Address) uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[addr]
}

// RewardBalance returns the reward-token balance of addr.
func (c *Chain) RewardBalance(addr common.Address) uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rewards[addr]
}

// FailMints makes every following Mint return err; nil restores minting.
func (c *Chain) FailMints(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failMint = err
}

// Mint implements chain.RewardToken.
func (c *Chain) Mint(_ context.Context, to common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failMint != nil {
		return fmt.Errorf("mint: %v: %w", c.failMint, errs.ErrTransferFailed)
	}
	b := c.rewards[to]
	b.Add(&b, amount)
	c.rewards[to] = b
	return nil
}

// Collect implements chain.Funds.
func (c *Chain) Collect(_ context.Context, from common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.move(from, c.custody, amount)
}

// Send implements chain.Funds.
func (c *Chain) Send(_ context.Context, to common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.move(c.custody, to, amount)
}

func (c *Chain) move(from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() || from == to {
		return nil
	}
	fb := c.balances[from]
	if fb.Lt(amount) {
		return fmt.Errorf("%s: %w: %w", from.Hex(), ErrInsufficientBalance, errs.ErrTransferFailed)
	}
	tb := c.balances[to]
	fb.Sub(&fb, amount)
	tb.Add(&tb, amount)
	c.balances[from], c.balances[to] = fb, tb
	return nil
}

// Collection is a devnet ERC-721 contract.
type Collection struct {
	chain     *Chain
	owners    map[uint256.Int]common.Address
	approvals map[[2]common.Address]bool // (owner, operator)
}

// MintNFT assigns tokenID to owner.
func (col *Collection) MintNFT(owner common.Address, tokenID uint64) {
	col.chain.mu.Lock()
	defer col.chain.mu.Unlock()
	col.owners[*uint256.NewInt(tokenID)] = owner
}

// SetApprovalForAll grants or revokes operator rights over all of owner's tokens.
func (col *Collection) SetApprovalForAll(owner, operator common.Address, approved bool) {
	col.chain.mu.Lock()
	defer col.chain.mu.Unlock()
	col.approvals[[2]common.Address{owner, operator}] = approved
}

// OwnerOf implements chain.Collection.
func (col *Collection) OwnerOf(_ context.Context, tokenID *uint256.Int) (common.Address, error) {
	col.chain.mu.Lock()
	defer col.chain.mu.Unlock()
	owner, ok := col.owners[*tokenID]
	if !ok {
		return common.Address{}, fmt.Errorf("token %s: %w", tokenID.Dec(), errs.ErrNotFound)
	}
	return owner, nil
}

// IsApprovedForAll implements chain.Collection.
func (col *Collection) IsApprovedForAll(_ context.Context, owner, operator common.Address) (bool, error) {
	col.chain.mu.Lock()
	defer col.chain.mu.Unlock()
	return col.approvals[[2]common.Address{owner, operator}], nil
}

// TransferFrom implements chain.Collection. The caller is taken to be the
// custody account, which must be the owner or an approved operator.
func (col *Collection) TransferFrom(_ context.Context, from, to common.Address, tokenID *uint256.Int) error {
	col.chain.mu.Lock()
	defer col.chain.mu.Unlock()
	owner, ok := col.owners[*tokenID]
	if !ok || owner != from {
		return fmt.Errorf("token %s not owned by %s: %w", tokenID.Dec(), from.Hex(), errs.ErrTransferFailed)
	}
	if from != col.chain.custody && !col.approvals[[2]common.Address{from, col.chain.custody}] {
		return fmt.Errorf("custody not approved by %s: %w", from.Hex(), errs.ErrTransferFailed)
	}
	col.owners[*tokenID] = to
	return nil
}
