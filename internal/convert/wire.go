// Package convert maps domain models to farmv1 wire messages and parses
// client-supplied values back.
package convert

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	farmv1 "github.com/and161185/nft-farm/api/farmv1"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
)

// --- parsing (client -> server) ---

// ParseAmount parses a base-10 256-bit value; empty means zero.
func ParseAmount(field, s string) (uint256.Int, error) {
	var v uint256.Int
	if s == "" {
		return v, nil
	}
	if err := v.SetFromDecimal(s); err != nil {
		return v, fmt.Errorf("%s %q: %w", field, s, errs.ErrInvalidArgument)
	}
	return v, nil
}

// ParseAmounts parses each element with ParseAmount.
func ParseAmounts(field string, in []string) ([]uint256.Int, error) {
	out := make([]uint256.Int, 0, len(in))
	for i, s := range in {
		v, err := ParseAmount(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseAddress parses a hex account or contract address.
func ParseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s %q: %w", field, s, errs.ErrInvalidArgument)
	}
	return common.HexToAddress(s), nil
}

// ParseSignature decodes a 0x-prefixed hex signature.
func ParseSignature(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", errs.ErrInvalidArgument)
	}
	return b, nil
}

// FromAPICollectionConfig converts a wire config; Cid and UpdatedAt are ignored.
func FromAPICollectionConfig(in farmv1.CollectionConfig) (model.CollectionConfig, error) {
	addr, err := ParseAddress("collection_address", in.CollectionAddress)
	if err != nil {
		return model.CollectionConfig{}, err
	}
	cfg := model.CollectionConfig{
		IsStakable:        in.IsStakable,
		CollectionAddress: addr,
		MaturityPeriod:    in.MaturityPeriod,
		MaxDaysForStaking: in.MaxDaysForStaking,
		StakingLimit:      in.StakingLimit,
	}
	if cfg.StakingFee, err = ParseAmount("staking_fee", in.StakingFee); err != nil {
		return cfg, err
	}
	if cfg.HarvestingFee, err = ParseAmount("harvesting_fee", in.HarvestingFee); err != nil {
		return cfg, err
	}
	cfg.Multiplier, err = ParseAmount("multiplier", in.Multiplier)
	return cfg, err
}

// --- rendering (server -> client) ---

func decs(ids []uint256.Int) []string {
	out := make([]string, len(ids))
	for i := range ids {
		out[i] = ids[i].Dec()
	}
	return out
}

// ToAPICollectionConfig converts a domain config.
func ToAPICollectionConfig(c model.CollectionConfig) farmv1.CollectionConfig {
	return farmv1.CollectionConfig{
		Cid:               c.Cid,
		IsStakable:        c.IsStakable,
		CollectionAddress: c.CollectionAddress.Hex(),
		StakingFee:        c.StakingFee.Dec(),
		HarvestingFee:     c.HarvestingFee.Dec(),
		Multiplier:        c.Multiplier.Dec(),
		MaturityPeriod:    c.MaturityPeriod,
		MaxDaysForStaking: c.MaxDaysForStaking,
		StakingLimit:      c.StakingLimit,
		UpdatedAt:         c.UpdatedAt,
	}
}

// ToAPICollections converts a slice of configs.
func ToAPICollections(cs []model.CollectionConfig) []farmv1.CollectionConfig {
	out := make([]farmv1.CollectionConfig, 0, len(cs))
	for _, c := range cs {
		out = append(out, ToAPICollectionConfig(c))
	}
	return out
}

// ToAPICollectionInfo converts a config with its pool totals.
func ToAPICollectionInfo(ci model.CollectionInfo) *farmv1.CollectionInfo {
	return &farmv1.CollectionInfo{
		Config:             ToAPICollectionConfig(ci.Config),
		AmountOfStakers:    ci.Pool.AmountOfStakers,
		AmountStakedInPool: ci.Pool.AmountStakedInPool,
	}
}

// ToAPIUserInfo converts a position view.
func ToAPIUserInfo(u model.UserInfo) *farmv1.UserInfo {
	p := u.Position
	return &farmv1.UserInfo{
		User:           p.User.Hex(),
		Cid:            p.Cid,
		TokenIDs:       decs(p.TokenIDs),
		AmountStaked:   p.AmountStaked(),
		StakeTimestamp: p.StakeTimestamp,
		RewardAccrued:  p.RewardAccrued.Dec(),
		DaysStaked:     u.DaysStaked,
	}
}

// ToAPIRequest converts a harvest request.
func ToAPIRequest(r model.HarvestRequest) *farmv1.RequestInfo {
	return &farmv1.RequestInfo{
		QueryID:           r.QueryID,
		Requester:         r.Requester.Hex(),
		Cid:               r.Cid,
		CollectionAddress: r.CollectionAddress.Hex(),
		TokenIDs:          decs(r.TokenIDs),
		DaysStaked:        r.DaysStaked,
		Multiplier:        r.Multiplier.Dec(),
		AmountOfStakers:   r.AmountOfStakers,
		Status:            string(r.Status),
		Rarity:            r.Rarity.Dec(),
		Reward:            r.Reward.Dec(),
		CreatedAt:         r.CreatedAt,
		ExpiresAt:         r.ExpiresAt,
		CompletedAt:       r.CompletedAt,
	}
}

// ToAPIFunding converts the funding state.
func ToAPIFunding(f model.Funding) *farmv1.Funding {
	return &farmv1.Funding{
		Balance:       f.Balance.Dec(),
		CollectedFees: f.CollectedFees.Dec(),
		OracleSpend:   f.OracleSpend.Dec(),
		Withdrawn:     f.Withdrawn.Dec(),
	}
}
