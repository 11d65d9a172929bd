// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Ledger sentinels. Services wrap them with context; transports match them with errors.Is.
var (
	// ErrUnauthorized indicates a missing capability or failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnknownCollection indicates the cid has never been registered.
	ErrUnknownCollection = errors.New("collection doesn't exist")

	// ErrInvalidConfig indicates a collection config that cannot be stored.
	ErrInvalidConfig = errors.New("invalid collection config")

	// ErrNotStakable indicates the collection is registered but closed for staking.
	ErrNotStakable = errors.New("collection is not stakable")

	// ErrLimitExceeded indicates the per-user staking limit would be exceeded.
	ErrLimitExceeded = errors.New("staking limit exceeded")

	// ErrNotOwner indicates the token is not in the caller's position.
	ErrNotOwner = errors.New("sender doesn't own this token")

	// ErrRequestPending indicates a harvest request for (user, cid) is still in flight.
	ErrRequestPending = errors.New("harvest request already pending")

	// ErrUnknownRequest indicates the query id is unknown or no longer pending.
	ErrUnknownRequest = errors.New("unknown or completed request")

	// ErrInsufficientFunding indicates the funding balance cannot cover the operation.
	ErrInsufficientFunding = errors.New("insufficient funding")

	// ErrTransferFailed indicates a collaborator refused a token or currency movement.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrNothingStaked indicates a harvest on an empty position.
	ErrNothingStaked = errors.New("nothing staked")

	// ErrNotMature indicates the maturity period has not elapsed since the last stake.
	ErrNotMature = errors.New("stake is not mature yet")

	// ErrInsufficientFee indicates the attached payment is below the required fee.
	ErrInsufficientFee = errors.New("insufficient fee")

	// ErrInvalidArgument indicates malformed input (empty batch, duplicates, overflow).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., account registered twice).
	ErrAlreadyExists = errors.New("already exists")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
