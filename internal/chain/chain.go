// Package chain declares the on-chain collaborators the ledger depends on:
// NFT collections, the reward token and the fee currency.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Collection is an ERC-721 style NFT contract.
type Collection interface {
	OwnerOf(ctx context.Context, tokenID *uint256.Int) (common.Address, error)
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	TransferFrom(ctx context.Context, from, to common.Address, tokenID *uint256.Int) error
}

// Collections resolves a collection contract by address.
type Collections interface {
	Collection(addr common.Address) (Collection, error)
}

// RewardToken is the fungible token minted to harvesters.
type RewardToken interface {
	Mint(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// Funds moves the fee currency in and out of the ledger's custody.
type Funds interface {
	// Collect pulls amount from the payer into custody.
	Collect(ctx context.Context, from common.Address, amount *uint256.Int) error
	// Send pays amount out of custody.
	Send(ctx context.Context, to common.Address, amount *uint256.Int) error
}
