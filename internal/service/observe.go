package service

import (
	"errors"

	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/metrics"
)

var outcomes = []struct {
	err   error
	label string
}{
	{errs.ErrUnauthorized, "unauthorized"},
	{errs.ErrUnknownCollection, "unknown_collection"},
	{errs.ErrInvalidConfig, "invalid_config"},
	{errs.ErrNotStakable, "not_stakable"},
	{errs.ErrLimitExceeded, "limit_exceeded"},
	{errs.ErrNotOwner, "not_owner"},
	{errs.ErrRequestPending, "request_pending"},
	{errs.ErrUnknownRequest, "unknown_request"},
	{errs.ErrInsufficientFunding, "insufficient_funding"},
	{errs.ErrTransferFailed, "transfer_failed"},
	{errs.ErrNothingStaked, "nothing_staked"},
	{errs.ErrNotMature, "not_mature"},
	{errs.ErrInsufficientFee, "insufficient_fee"},
	{errs.ErrInvalidArgument, "invalid_argument"},
	{errs.ErrNotFound, "not_found"},
	{errs.ErrAlreadyExists, "already_exists"},
	{errs.ErrRateLimited, "rate_limited"},
}

// outcome labels err by the first sentinel it wraps.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}

func observe(op string, err error) {
	metrics.Operations.WithLabelValues(op, outcome(err)).Inc()
}
