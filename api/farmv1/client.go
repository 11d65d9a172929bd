package farmv1

import (
	"context"

	"google.golang.org/grpc"
)

// FarmClient is a typed client of farm.v1.Farm.
type FarmClient struct {
	cc grpc.ClientConnInterface
}

// NewFarmClient wraps cc; every call is sent with the JSON content-subtype.
func NewFarmClient(cc grpc.ClientConnInterface) *FarmClient { return &FarmClient{cc: cc} }

func invoke[Resp any](ctx context.Context, c *FarmClient, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FarmClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "Register", in, opts)
}

func (c *FarmClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c, "Login", in, opts)
}

func (c *FarmClient) RegisterOrUpdateCollection(ctx context.Context, in *RegisterCollectionRequest, opts ...grpc.CallOption) (*RegisterCollectionResponse, error) {
	return invoke[RegisterCollectionResponse](ctx, c, "RegisterOrUpdateCollection", in, opts)
}

func (c *FarmClient) GetConfig(ctx context.Context, in *CidRequest, opts ...grpc.CallOption) (*CollectionConfig, error) {
	return invoke[CollectionConfig](ctx, c, "GetConfig", in, opts)
}

func (c *FarmClient) ListCollections(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListCollectionsResponse, error) {
	return invoke[ListCollectionsResponse](ctx, c, "ListCollections", in, opts)
}

func (c *FarmClient) Stake(ctx context.Context, in *StakeRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "Stake", in, opts)
}

func (c *FarmClient) BatchStake(ctx context.Context, in *BatchStakeRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "BatchStake", in, opts)
}

func (c *FarmClient) Unstake(ctx context.Context, in *UnstakeRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "Unstake", in, opts)
}

func (c *FarmClient) BatchUnstake(ctx context.Context, in *BatchUnstakeRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "BatchUnstake", in, opts)
}

func (c *FarmClient) ViewAmountOfStakers(ctx context.Context, in *CidRequest, opts ...grpc.CallOption) (*AmountOfStakersResponse, error) {
	return invoke[AmountOfStakersResponse](ctx, c, "ViewAmountOfStakers", in, opts)
}

func (c *FarmClient) GetCollectionInfo(ctx context.Context, in *CidRequest, opts ...grpc.CallOption) (*CollectionInfo, error) {
	return invoke[CollectionInfo](ctx, c, "GetCollectionInfo", in, opts)
}

func (c *FarmClient) GetUser(ctx context.Context, in *GetUserRequest, opts ...grpc.CallOption) (*UserInfo, error) {
	return invoke[UserInfo](ctx, c, "GetUser", in, opts)
}

func (c *FarmClient) Harvest(ctx context.Context, in *HarvestRequest, opts ...grpc.CallOption) (*HarvestResponse, error) {
	return invoke[HarvestResponse](ctx, c, "Harvest", in, opts)
}

func (c *FarmClient) GetRequest(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*RequestInfo, error) {
	return invoke[RequestInfo](ctx, c, "GetRequest", in, opts)
}

func (c *FarmClient) OnOracleResult(ctx context.Context, in *OracleResultRequest, opts ...grpc.CallOption) (*RequestInfo, error) {
	return invoke[RequestInfo](ctx, c, "OnOracleResult", in, opts)
}

func (c *FarmClient) CancelRequest(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "CancelRequest", in, opts)
}

func (c *FarmClient) Deposit(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*Funding, error) {
	return invoke[Funding](ctx, c, "Deposit", in, opts)
}

func (c *FarmClient) WithdrawFunding(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*Funding, error) {
	return invoke[Funding](ctx, c, "WithdrawFunding", in, opts)
}

func (c *FarmClient) FundingBalance(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Funding, error) {
	return invoke[Funding](ctx, c, "FundingBalance", in, opts)
}
