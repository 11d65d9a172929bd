package model

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/and161185/nft-farm/internal/errs"
)

func ids(vs ...uint64) []uint256.Int {
	out := make([]uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = *uint256.NewInt(v)
	}
	return out
}

func TestReward_Scenarios(t *testing.T) {
	cases := []struct {
		name    string
		mult    uint64
		days    uint64
		rarity  uint64
		tokens  int
		stakers uint64
		want    uint64
	}{
		{"single staker", 2, 1, 100, 1, 1, 200},
		{"two stakers", 2, 1, 100, 1, 2, 100},
		{"batch", 1, 2, 200, 3, 2, 600},
		{"zero stakers treated as one", 2, 1, 100, 1, 0, 200},
		{"floor division", 1, 1, 10, 1, 3, 3},
		{"zero days", 5, 0, 100, 2, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Reward(uint256.NewInt(tc.mult), tc.days, uint256.NewInt(tc.rarity), tc.tokens, tc.stakers)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Uint64())
		})
	}
}

func TestReward_Overflow(t *testing.T) {
	huge := new(uint256.Int).SetAllOne()
	_, err := Reward(huge, 2, uint256.NewInt(1), 1, 1)
	require.True(t, errors.Is(err, errs.ErrInvalidArgument))
}

func TestDaysStaked(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := Position{User: common.HexToAddress("0x01"), TokenIDs: ids(1), StakeTimestamp: t0}

	require.Equal(t, uint64(0), p.DaysStaked(t0.Add(23*time.Hour), 20))
	require.Equal(t, uint64(1), p.DaysStaked(t0.Add(25*time.Hour), 20))
	require.Equal(t, uint64(20), p.DaysStaked(t0.Add(30*24*time.Hour), 20), "clamped")
	require.Equal(t, uint64(0), p.DaysStaked(t0.Add(-time.Hour), 20))

	empty := Position{StakeTimestamp: t0}
	require.Equal(t, uint64(0), empty.DaysStaked(t0.Add(48*time.Hour), 20))
}

func TestMatured(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := Position{TokenIDs: ids(1), StakeTimestamp: t0}
	require.False(t, p.Matured(t0.Add(59*time.Second), 60))
	require.True(t, p.Matured(t0.Add(60*time.Second), 60))
	require.False(t, Position{}.Matured(t0, 0))
}

func TestRequestSnapshot(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := Position{User: common.HexToAddress("0x02"), Cid: 3, TokenIDs: ids(5, 7), StakeTimestamp: t0}
	cfg := CollectionConfig{Cid: 3, CollectionAddress: common.HexToAddress("0xc0"), Multiplier: *uint256.NewInt(4), MaxDaysForStaking: 10}

	r := p.Request(cfg, 2, t0.Add(50*time.Hour), time.Hour)
	p.TokenIDs[0] = *uint256.NewInt(99)

	require.Equal(t, RequestPending, r.Status)
	require.Equal(t, uint64(2), r.DaysStaked)
	require.Equal(t, uint64(2), r.AmountOfStakers)
	require.Equal(t, ids(5, 7), r.TokenIDs, "snapshot is detached from the position")
	require.Equal(t, t0.Add(51*time.Hour), r.ExpiresAt)
	require.False(t, r.Fulfilled())

	pl := r.Payload("http://cb")
	require.Equal(t, []string{"5", "7"}, pl.TokenIDs)
	require.Equal(t, "4", pl.Multiplier)
	require.Equal(t, cfg.CollectionAddress.Hex(), pl.CollectionAddress)
}

func TestConsumedUntil(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := Position{TokenIDs: ids(1), StakeTimestamp: t0}
	cfg := CollectionConfig{Multiplier: *uint256.NewInt(1), MaxDaysForStaking: 5}

	r := p.Request(cfg, 1, t0.Add(3*24*time.Hour+2*time.Hour), time.Hour)
	require.Equal(t, uint64(3), r.DaysStaked)
	require.Equal(t, t0.Add(3*24*time.Hour), r.ConsumedUntil(), "partial day kept")

	r = p.Request(cfg, 1, t0.Add(50*24*time.Hour+7*time.Hour), time.Hour)
	require.Equal(t, uint64(5), r.DaysStaked)
	require.Equal(t, t0.Add(50*24*time.Hour), r.ConsumedUntil(), "days past the cap are dropped")

	require.True(t, HarvestRequest{}.ConsumedUntil().IsZero())
}

func TestPositionHoldsAndClone(t *testing.T) {
	p := Position{TokenIDs: ids(1, 2)}
	require.True(t, p.Holds(*uint256.NewInt(2)))
	require.False(t, p.Holds(*uint256.NewInt(3)))

	c := p.Clone()
	c.TokenIDs[0] = *uint256.NewInt(9)
	require.Equal(t, uint64(1), p.TokenIDs[0].Uint64())
	require.Equal(t, uint64(2), c.AmountStaked())
}
