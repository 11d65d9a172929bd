package convert

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "0", want: 0},
		{in: "1000", want: 1000},
		{in: "-1", wantErr: true},
		{in: "0x10", wantErr: true},
		{in: "1e3", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAmount("fee", tt.in)
		if tt.wantErr {
			if !errors.Is(err, errs.ErrInvalidArgument) {
				t.Fatalf("%q: want ErrInvalidArgument, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got.Uint64() != tt.want {
			t.Fatalf("%q: got %s, %v", tt.in, got.Dec(), err)
		}
	}

	maxU256 := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	v, err := ParseAmount("fee", maxU256)
	if err != nil || v.Dec() != maxU256 {
		t.Fatalf("max uint256: %s, %v", v.Dec(), err)
	}
	if _, err := ParseAmount("fee", maxU256+"0"); err == nil {
		t.Fatalf("overflow must fail")
	}
}

func TestParseAmounts_ReportsIndex(t *testing.T) {
	t.Parallel()

	_, err := ParseAmounts("token_ids", []string{"1", "x"})
	if err == nil || !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	if got := err.Error(); got[:12] != "token_ids[1]" {
		t.Fatalf("index missing: %q", got)
	}
}

func TestParseAddressAndSignature(t *testing.T) {
	t.Parallel()

	if _, err := ParseAddress("user", "0x12"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("short address accepted: %v", err)
	}
	a, err := ParseAddress("user", "0x00000000000000000000000000000000000000Aa")
	if err != nil || a != common.HexToAddress("0xaa") {
		t.Fatalf("address: %s, %v", a.Hex(), err)
	}
	if _, err := ParseSignature("abcd"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("missing 0x accepted: %v", err)
	}
	b, err := ParseSignature("0x0102")
	if err != nil || len(b) != 2 {
		t.Fatalf("signature: %x, %v", b, err)
	}
}

func TestCollectionConfigRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := model.CollectionConfig{
		Cid:               4,
		IsStakable:        true,
		CollectionAddress: common.HexToAddress("0xbeef"),
		StakingFee:        *uint256.NewInt(5),
		HarvestingFee:     *uint256.NewInt(6),
		Multiplier:        *new(uint256.Int).Lsh(uint256.NewInt(1), 255),
		MaturityPeriod:    3600,
		MaxDaysForStaking: 20,
		StakingLimit:      10,
		UpdatedAt:         time.Unix(1_700_000_000, 0).UTC(),
	}
	wire := ToAPICollectionConfig(cfg)
	if wire.Multiplier != cfg.Multiplier.Dec() || wire.CollectionAddress != cfg.CollectionAddress.Hex() {
		t.Fatalf("wire mismatch: %+v", wire)
	}

	back, err := FromAPICollectionConfig(wire)
	if err != nil {
		t.Fatalf("FromAPICollectionConfig: %v", err)
	}
	back.Cid, back.UpdatedAt = cfg.Cid, cfg.UpdatedAt
	if back != cfg {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, cfg)
	}

	wire.StakingFee = "lots"
	if _, err := FromAPICollectionConfig(wire); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("bad fee accepted: %v", err)
	}
}

func TestToAPIViews(t *testing.T) {
	t.Parallel()

	user := common.HexToAddress("0x01")
	u := ToAPIUserInfo(model.UserInfo{
		Position: model.Position{
			User:          user,
			Cid:           2,
			TokenIDs:      []uint256.Int{*uint256.NewInt(9), *uint256.NewInt(3)},
			RewardAccrued: *uint256.NewInt(200),
		},
		DaysStaked: 1,
	})
	if u.User != user.Hex() || u.AmountStaked != 2 || u.TokenIDs[0] != "9" || u.RewardAccrued != "200" {
		t.Fatalf("user info mismatch: %+v", u)
	}

	r := ToAPIRequest(model.HarvestRequest{QueryID: "q", Status: model.RequestFulfilled, Reward: *uint256.NewInt(600)})
	if r.Status != "fulfilled" || r.Reward != "600" || r.Rarity != "0" || len(r.TokenIDs) != 0 {
		t.Fatalf("request mismatch: %+v", r)
	}

	f := ToAPIFunding(model.Funding{Balance: *uint256.NewInt(11), OracleSpend: *uint256.NewInt(1)})
	if f.Balance != "11" || f.OracleSpend != "1" || f.Withdrawn != "0" {
		t.Fatalf("funding mismatch: %+v", f)
	}
}
