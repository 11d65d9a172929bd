package grpcserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	farmv1 "github.com/and161185/nft-farm/api/farmv1"
	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/chain/devnet"
	pkgcrypto "github.com/and161185/nft-farm/internal/crypto"
	"github.com/and161185/nft-farm/internal/limiter"
	"github.com/and161185/nft-farm/internal/repository/memory"
	"github.com/and161185/nft-farm/internal/service"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const bufSize = 1 << 20

var (
	signKey     = []byte("test-secret-0123")
	custodyAddr = common.HexToAddress("0xc057")
	nftAddr     = common.HexToAddress("0x00c0ffee")
	admin       = authz.Principal{Address: common.HexToAddress("0xad"), Roles: []authz.Role{authz.RoleAdmin}}
	oracle      = authz.Principal{Address: common.HexToAddress("0x0c"), Roles: []authz.Role{authz.RoleOracle}}
)

type env struct {
	client *farmv1.FarmClient
	clock  *stepClock
	net    *devnet.Chain
	col    *devnet.Collection
}

func startBufGRPC(t *testing.T) *env {
	t.Helper()
	log := zaptest.NewLogger(t)
	clock := &stepClock{t: time.Now().UTC().Truncate(time.Second)}
	store := memory.New()
	dn := devnet.New(custodyAddr)
	ch := service.Chain{Collections: dn, Reward: dn, Funds: dn, Custody: custodyAddr}

	srv := New(Services{
		Auth: service.NewAuthService(store, signKey, time.Hour, limiter.NewMemory(64, time.Minute, 5, time.Minute),
			service.Roles{Admins: []common.Address{admin.Address}, Oracle: oracle.Address}, clock),
		Registry: service.NewRegistryService(store, clock, 16, time.Minute, log),
		Staking:  service.NewStakingService(store, ch, clock, 50, log),
		Harvest: service.NewHarvestService(store, ch, clock, service.HarvestOptions{
			OracleQueryCost: *uint256.NewInt(1),
		}, log),
		Funding: service.NewFundingService(store, ch, log),
	})

	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log), AuthUnary(signKey), MetricsUnary(), LoggingUnary(log)))
	farmv1.RegisterFarmServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })

	dn.Fund(admin.Address, 1_000)
	return &env{client: farmv1.NewFarmClient(cc), clock: clock, net: dn, col: dn.Deploy(nftAddr)}
}

func as(t *testing.T, p authz.Principal) context.Context {
	t.Helper()
	tok, _, err := authz.Issue(p, signKey, time.Hour, time.Now())
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func requireCode(t *testing.T, err error, code codes.Code) *status.Status {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status: %v", err)
	require.Equal(t, code, st.Code(), st.Message())
	return st
}

func TestServer_E2E_StakeHarvestFlow(t *testing.T) {
	e := startBufGRPC(t)
	cl := e.client
	ctx := context.Background()

	// wallet registration and login
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	user := ethcrypto.PubkeyToAddress(key.PublicKey)
	sig, err := pkgcrypto.SignText(pkgcrypto.RegistrationMessage(user), key)
	require.NoError(t, err)
	_, err = cl.Register(ctx, &farmv1.RegisterRequest{Address: user.Hex(), Password: "pw", Signature: hexutil.Encode(sig)})
	require.NoError(t, err)

	_, err = cl.Login(ctx, &farmv1.LoginRequest{Address: user.Hex(), Password: "nope"})
	requireCode(t, err, codes.Unauthenticated)
	lr, err := cl.Login(ctx, &farmv1.LoginRequest{Address: user.Hex(), Password: "pw"})
	require.NoError(t, err)
	require.NotEmpty(t, lr.AccessToken)
	require.Empty(t, lr.Roles)
	userCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+lr.AccessToken)

	e.col.MintNFT(user, 1)
	e.col.SetApprovalForAll(user, custodyAddr, true)
	e.net.Fund(user, 100)

	// admin registers the collection and funds the oracle
	cfg := farmv1.CollectionConfig{
		IsStakable: true, CollectionAddress: nftAddr.Hex(),
		StakingFee: "1", HarvestingFee: "1", Multiplier: "2",
		MaxDaysForStaking: 20, StakingLimit: 20,
	}
	_, err = cl.RegisterOrUpdateCollection(userCtx, &farmv1.RegisterCollectionRequest{Config: cfg})
	requireCode(t, err, codes.PermissionDenied)
	rc, err := cl.RegisterOrUpdateCollection(as(t, admin), &farmv1.RegisterCollectionRequest{Config: cfg})
	require.NoError(t, err)
	require.True(t, rc.Created)
	require.Equal(t, uint64(0), rc.Cid)

	fund, err := cl.Deposit(as(t, admin), &farmv1.AmountRequest{Amount: "10"})
	require.NoError(t, err)
	require.Equal(t, "10", fund.Balance)

	// staking
	_, err = cl.Stake(ctx, &farmv1.StakeRequest{Cid: 0, TokenID: "1", Payment: "1"})
	requireCode(t, err, codes.Unauthenticated)
	_, err = cl.Stake(userCtx, &farmv1.StakeRequest{Cid: 7, TokenID: "1", Payment: "1"})
	requireCode(t, err, codes.NotFound)
	_, err = cl.Stake(userCtx, &farmv1.StakeRequest{Cid: 0, TokenID: "one", Payment: "1"})
	requireCode(t, err, codes.InvalidArgument)
	_, err = cl.Stake(userCtx, &farmv1.StakeRequest{Cid: 0, TokenID: "1", Payment: "1"})
	require.NoError(t, err)

	_, err = cl.Unstake(userCtx, &farmv1.UnstakeRequest{Cid: 0, TokenID: "9"})
	st := requireCode(t, err, codes.FailedPrecondition)
	require.Equal(t, "sender doesn't own this token", st.Message())

	n, err := cl.ViewAmountOfStakers(ctx, &farmv1.CidRequest{Cid: 0})
	require.NoError(t, err)
	require.Equal(t, uint64(1), n.AmountOfStakers)

	// harvest after one day, answered by the oracle
	e.clock.Advance(24 * time.Hour)
	hr, err := cl.Harvest(userCtx, &farmv1.HarvestRequest{Cid: 0, Payment: "1"})
	require.NoError(t, err)
	require.NotEmpty(t, hr.QueryID)

	_, err = cl.Harvest(userCtx, &farmv1.HarvestRequest{Cid: 0, Payment: "1"})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = cl.OnOracleResult(userCtx, &farmv1.OracleResultRequest{QueryID: hr.QueryID, Rarity: "100"})
	requireCode(t, err, codes.PermissionDenied)
	ri, err := cl.OnOracleResult(as(t, oracle), &farmv1.OracleResultRequest{QueryID: hr.QueryID, Rarity: "100"})
	require.NoError(t, err)
	require.Equal(t, "fulfilled", ri.Status)
	require.Equal(t, "200", ri.Reward)
	require.Equal(t, []string{"1"}, ri.TokenIDs)

	_, err = cl.OnOracleResult(as(t, oracle), &farmv1.OracleResultRequest{QueryID: hr.QueryID, Rarity: "100"})
	requireCode(t, err, codes.NotFound)

	ui, err := cl.GetUser(userCtx, &farmv1.GetUserRequest{Cid: 0})
	require.NoError(t, err)
	require.Equal(t, user.Hex(), ui.User)
	require.Equal(t, "200", ui.RewardAccrued)
	require.Equal(t, uint64(1), ui.AmountStaked)
	reward := e.net.RewardBalance(user)
	require.Equal(t, uint64(200), reward.Uint64())

	info, err := cl.GetCollectionInfo(ctx, &farmv1.CidRequest{Cid: 0})
	require.NoError(t, err)
	require.Equal(t, uint64(1), info.AmountStakedInPool)
	require.Equal(t, "2", info.Config.Multiplier)

	// unstake returns the token
	_, err = cl.BatchUnstake(userCtx, &farmv1.BatchUnstakeRequest{Cid: 0, TokenIDs: []string{"1"}})
	require.NoError(t, err)
	owner, err := e.col.OwnerOf(ctx, uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, user, owner)

	bal, err := cl.FundingBalance(ctx, &farmv1.Empty{})
	require.NoError(t, err)
	require.Equal(t, "11", bal.Balance, "deposit plus both fees minus one query")
	require.Equal(t, "1", bal.OracleSpend)
}

func TestServer_RejectsBadToken(t *testing.T) {
	e := startBufGRPC(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer garbage")
	_, err := e.client.ListCollections(ctx, &farmv1.Empty{})
	requireCode(t, err, codes.Unauthenticated)

	list, err := e.client.ListCollections(context.Background(), &farmv1.Empty{})
	require.NoError(t, err)
	require.Empty(t, list.Collections)
}

func TestServer_DirectHandlers(t *testing.T) {
	t.Parallel()
	s := New(Services{})

	_, err := s.Register(context.Background(), &farmv1.RegisterRequest{})
	requireCode(t, err, codes.InvalidArgument)

	_, err = s.Register(context.Background(), &farmv1.RegisterRequest{Address: "0x01", Password: "p"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = s.OnOracleResult(context.Background(), &farmv1.OracleResultRequest{})
	requireCode(t, err, codes.InvalidArgument)

	_, err = s.GetUser(context.Background(), &farmv1.GetUserRequest{User: "bob"})
	requireCode(t, err, codes.InvalidArgument)
}
