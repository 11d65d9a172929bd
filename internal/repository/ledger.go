// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/model"
)

// Ledger opens atomic units of work over the staking state.
// If fn returns an error every write made through tx is discarded.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of reads and writes available inside one unit of work.
// Getters that feed a later write lock the row they return; the View
// variants serve read-only callers.
type LedgerTx interface {
	// Collection loads a config by cid; errs.ErrUnknownCollection if absent.
	Collection(ctx context.Context, cid uint64) (model.CollectionConfig, error)
	// CollectionByAddress loads a config by contract address; errs.ErrNotFound if absent.
	CollectionByAddress(ctx context.Context, addr common.Address) (model.CollectionConfig, error)
	// CreateCollection stores a new config and returns the assigned cid.
	CreateCollection(ctx context.Context, cfg model.CollectionConfig) (uint64, error)
	// UpdateCollection overwrites the mutable fields of an existing config.
	UpdateCollection(ctx context.Context, cfg model.CollectionConfig) error
	// ListCollections returns all configs ordered by cid.
	ListCollections(ctx context.Context) ([]model.CollectionConfig, error)

	// Position loads and locks a position; a zero position is returned when absent.
	Position(ctx context.Context, user common.Address, cid uint64) (model.Position, error)
	// PositionView reads a position without locking or creating it.
	PositionView(ctx context.Context, user common.Address, cid uint64) (model.Position, error)
	// PutPosition persists the scalar fields of a position. The token set is
	// changed only through AddTokens and RemoveTokens.
	PutPosition(ctx context.Context, p model.Position) error
	// AddTokens appends ids to the position; errs.ErrTransferFailed if any id is already staked.
	AddTokens(ctx context.Context, user common.Address, cid uint64, ids []uint256.Int, at time.Time) error
	// RemoveTokens drops ids from the position; errs.ErrNotOwner if any id is not held.
	RemoveTokens(ctx context.Context, user common.Address, cid uint64, ids []uint256.Int) error

	// Pool loads and locks the aggregate of a collection; zero when absent.
	Pool(ctx context.Context, cid uint64) (model.PoolAggregate, error)
	// PoolView reads the aggregate of a collection without locking or creating it.
	PoolView(ctx context.Context, cid uint64) (model.PoolAggregate, error)
	// PutPool persists the aggregate.
	PutPool(ctx context.Context, p model.PoolAggregate) error

	// Funding loads and locks the funding singleton.
	Funding(ctx context.Context) (model.Funding, error)
	// PutFunding persists the funding singleton.
	PutFunding(ctx context.Context, f model.Funding) error

	// PendingRequest returns the pending request of (user, cid), if any.
	PendingRequest(ctx context.Context, user common.Address, cid uint64) (model.HarvestRequest, bool, error)
	// CreateRequest stores a new request; errs.ErrRequestPending if one is pending for (user, cid).
	CreateRequest(ctx context.Context, r model.HarvestRequest) error
	// Request loads and locks a request by query id; errs.ErrUnknownRequest if absent.
	Request(ctx context.Context, queryID string) (model.HarvestRequest, error)
	// CompleteRequest persists status, rarity, reward and completion time.
	CompleteRequest(ctx context.Context, r model.HarvestRequest) error
	// StaleRequests locks up to limit pending requests whose ExpiresAt is not after now.
	StaleRequests(ctx context.Context, now time.Time, limit int) ([]model.HarvestRequest, error)

	// EnqueueQuery adds an oracle query to the outbox.
	EnqueueQuery(ctx context.Context, q model.OracleQuery) error
}

// Outbox is the dispatcher's view of queued oracle queries. Claims are leased
// to an owner so several dispatchers can share one table.
type Outbox interface {
	// ClaimQueries leases up to limit due pending queries to owner until leaseUntil.
	ClaimQueries(ctx context.Context, now time.Time, limit int, owner string, leaseUntil time.Time) ([]model.OracleQuery, error)
	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, queryID, owner string, attempts int, at time.Time) (bool, error)
	// MarkRetry releases the lease and schedules another attempt.
	MarkRetry(ctx context.Context, queryID, owner string, attempts int, next time.Time, lastErr string) (bool, error)
	// MarkFailed gives up on the query.
	MarkFailed(ctx context.Context, queryID, owner string, attempts int, lastErr string, at time.Time) (bool, error)
	// Query loads one outbox row; errs.ErrNotFound if absent.
	Query(ctx context.Context, queryID string) (model.OracleQuery, error)
}

// AccountRepository stores registered wallet accounts.
type AccountRepository interface {
	// Create inserts a new account; errs.ErrAlreadyExists on duplicates.
	Create(ctx context.Context, a *model.Account) error
	// GetByAddress loads an account; errs.ErrNotFound if absent.
	GetByAddress(ctx context.Context, addr common.Address) (*model.Account, error)
}
