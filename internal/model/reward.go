package model

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/errs"
)

// SecondsPerDay is the length of a credited staking day.
const SecondsPerDay = 86400

// DaysStaked returns whole days elapsed since the last stake, clamped to maxDays.
// An empty position has staked for zero days.
func (p Position) DaysStaked(now time.Time, maxDays uint64) uint64 {
	if len(p.TokenIDs) == 0 || p.StakeTimestamp.IsZero() || !now.After(p.StakeTimestamp) {
		return 0
	}
	days := uint64(now.Unix()-p.StakeTimestamp.Unix()) / SecondsPerDay
	if days > maxDays {
		return maxDays
	}
	return days
}

// Matured reports whether at least period seconds passed since the last stake.
func (p Position) Matured(now time.Time, period uint64) bool {
	if p.StakeTimestamp.IsZero() {
		return false
	}
	elapsed := now.Unix() - p.StakeTimestamp.Unix()
	return elapsed >= 0 && uint64(elapsed) >= period
}

// Reward computes floor(multiplier * days * rarity * tokens / max(stakers, 1))
// in 256-bit arithmetic. Overflow yields errs.ErrInvalidArgument.
func Reward(multiplier *uint256.Int, days uint64, rarity *uint256.Int, tokens int, stakers uint64) (uint256.Int, error) {
	var out uint256.Int
	if tokens < 0 {
		return out, fmt.Errorf("reward: negative token count: %w", errs.ErrInvalidArgument)
	}
	if stakers == 0 {
		stakers = 1
	}
	acc := new(uint256.Int).Set(multiplier)
	for _, f := range []*uint256.Int{uint256.NewInt(days), rarity, uint256.NewInt(uint64(tokens))} {
		if _, overflow := acc.MulOverflow(acc, f); overflow {
			return out, fmt.Errorf("reward: overflow: %w", errs.ErrInvalidArgument)
		}
	}
	out.Div(acc, uint256.NewInt(stakers))
	return out, nil
}

// Request snapshots the position into a pending harvest request.
func (p Position) Request(cfg CollectionConfig, stakers uint64, now time.Time, ttl time.Duration) HarvestRequest {
	return HarvestRequest{
		Requester:         p.User,
		Cid:               p.Cid,
		CollectionAddress: cfg.CollectionAddress,
		TokenIDs:          append([]uint256.Int(nil), p.TokenIDs...),
		DaysStaked:        p.DaysStaked(now, cfg.MaxDaysForStaking),
		Multiplier:        cfg.Multiplier,
		AmountOfStakers:   stakers,
		StakeTimestamp:    p.StakeTimestamp,
		Status:            RequestPending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
	}
}

// ConsumedUntil is the stake timestamp left on the position once the request
// is fulfilled. Every whole day elapsed at CreatedAt is used up, including
// days past the cap that were not credited; the partial day is kept.
func (r HarvestRequest) ConsumedUntil() time.Time {
	elapsed := r.CreatedAt.Unix() - r.StakeTimestamp.Unix()
	if r.StakeTimestamp.IsZero() || elapsed <= 0 {
		return r.StakeTimestamp
	}
	whole := elapsed / SecondsPerDay
	if uint64(whole) < r.DaysStaked {
		whole = int64(r.DaysStaked)
	}
	return r.StakeTimestamp.Add(time.Duration(whole) * SecondsPerDay * time.Second)
}

// Payload renders the oracle query body for the request.
func (r HarvestRequest) Payload(callback string) OraclePayload {
	ids := make([]string, len(r.TokenIDs))
	for i := range r.TokenIDs {
		ids[i] = r.TokenIDs[i].Dec()
	}
	return OraclePayload{
		QueryID:           r.QueryID,
		Requester:         r.Requester.Hex(),
		CollectionAddress: r.CollectionAddress.Hex(),
		Cid:               r.Cid,
		TokenIDs:          ids,
		DaysStaked:        r.DaysStaked,
		Multiplier:        r.Multiplier.Dec(),
		AmountOfStakers:   r.AmountOfStakers,
		Callback:          callback,
	}
}
