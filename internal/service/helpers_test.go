package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/chain/devnet"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const day = 24 * time.Hour

var (
	custodyAddr = common.HexToAddress("0xc057")
	nftAddr     = common.HexToAddress("0x00c0ffee")
)

type fixture struct {
	ctx      context.Context
	clock    *fakeClock
	store    *memory.Store
	net      *devnet.Chain
	col      *devnet.Collection
	registry *RegistryServiceImpl
	staking  *StakingServiceImpl
	harvest  *HarvestServiceImpl
	funding  *FundingServiceImpl
	admin    authz.Principal
	oracle   authz.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0).UTC()}
	store := memory.New()
	net := devnet.New(custodyAddr)
	ch := Chain{Collections: net, Reward: net, Funds: net, Custody: custodyAddr}
	f := &fixture{
		ctx:      context.Background(),
		clock:    clock,
		store:    store,
		net:      net,
		col:      net.Deploy(nftAddr),
		registry: NewRegistryService(store, clock, 16, time.Minute, log),
		staking:  NewStakingService(store, ch, clock, 50, log),
		harvest: NewHarvestService(store, ch, clock, HarvestOptions{
			OracleQueryCost: *uint256.NewInt(1),
			RequestTTL:      day,
			CallbackURL:     "http://farm.local/oracle/callback",
		}, log),
		funding: NewFundingService(store, ch, log),
		admin:   authz.Principal{Address: common.HexToAddress("0xad"), Roles: []authz.Role{authz.RoleAdmin}},
		oracle:  authz.Principal{Address: common.HexToAddress("0x0c"), Roles: []authz.Role{authz.RoleOracle}},
	}
	f.net.Fund(f.admin.Address, 1_000)
	return f
}

// defaultConfig is the collection most tests register.
func defaultConfig() model.CollectionConfig {
	return model.CollectionConfig{
		IsStakable:        true,
		CollectionAddress: nftAddr,
		StakingFee:        *uint256.NewInt(1),
		HarvestingFee:     *uint256.NewInt(1),
		Multiplier:        *uint256.NewInt(2),
		MaturityPeriod:    0,
		MaxDaysForStaking: 20,
		StakingLimit:      20,
	}
}

func (f *fixture) register(t *testing.T, cfg model.CollectionConfig) uint64 {
	t.Helper()
	cid, _, err := f.registry.RegisterOrUpdateCollection(f.ctx, f.admin, cfg)
	require.NoError(t, err)
	return cid
}

// user mints tokens to a fresh wallet, approves custody and funds it.
func (f *fixture) user(t *testing.T, hex string, tokens ...uint64) authz.Principal {
	t.Helper()
	addr := common.HexToAddress(hex)
	for _, id := range tokens {
		f.col.MintNFT(addr, id)
	}
	f.col.SetApprovalForAll(addr, custodyAddr, true)
	f.net.Fund(addr, 1_000)
	return authz.Principal{Address: addr}
}

// fund tops up oracle funding from the admin.
func (f *fixture) fund(t *testing.T, amount uint64) {
	t.Helper()
	_, err := f.funding.Deposit(f.ctx, f.admin, *uint256.NewInt(amount))
	require.NoError(t, err)
}

func (f *fixture) ownerOf(t *testing.T, id uint64) common.Address {
	t.Helper()
	owner, err := f.col.OwnerOf(f.ctx, uint256.NewInt(id))
	require.NoError(t, err)
	return owner
}

func (f *fixture) rewardOf(addr common.Address) uint64 {
	b := f.net.RewardBalance(addr)
	return b.Uint64()
}

func u(v uint64) uint256.Int { return *uint256.NewInt(v) }

func ids(vs ...uint64) []uint256.Int {
	out := make([]uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = u(v)
	}
	return out
}

func ptr(v uint256.Int) *uint256.Int { return &v }
