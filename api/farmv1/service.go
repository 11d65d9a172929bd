package farmv1

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "farm.v1.Farm"

// FarmServer is the server API of farm.v1.Farm.
type FarmServer interface {
	Register(context.Context, *RegisterRequest) (*Empty, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)

	RegisterOrUpdateCollection(context.Context, *RegisterCollectionRequest) (*RegisterCollectionResponse, error)
	GetConfig(context.Context, *CidRequest) (*CollectionConfig, error)
	ListCollections(context.Context, *Empty) (*ListCollectionsResponse, error)

	Stake(context.Context, *StakeRequest) (*Empty, error)
	BatchStake(context.Context, *BatchStakeRequest) (*Empty, error)
	Unstake(context.Context, *UnstakeRequest) (*Empty, error)
	BatchUnstake(context.Context, *BatchUnstakeRequest) (*Empty, error)
	ViewAmountOfStakers(context.Context, *CidRequest) (*AmountOfStakersResponse, error)
	GetCollectionInfo(context.Context, *CidRequest) (*CollectionInfo, error)
	GetUser(context.Context, *GetUserRequest) (*UserInfo, error)

	Harvest(context.Context, *HarvestRequest) (*HarvestResponse, error)
	GetRequest(context.Context, *QueryRequest) (*RequestInfo, error)
	OnOracleResult(context.Context, *OracleResultRequest) (*RequestInfo, error)
	CancelRequest(context.Context, *QueryRequest) (*Empty, error)

	Deposit(context.Context, *AmountRequest) (*Funding, error)
	WithdrawFunding(context.Context, *AmountRequest) (*Funding, error)
	FundingBalance(context.Context, *Empty) (*Funding, error)
}

// FullMethod returns the path of method as seen by interceptors.
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

func unary[Req, Resp any](method string, call func(FarmServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FarmServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(FarmServer), ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes farm.v1.Farm for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FarmServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", FarmServer.Register),
		unary("Login", FarmServer.Login),
		unary("RegisterOrUpdateCollection", FarmServer.RegisterOrUpdateCollection),
		unary("GetConfig", FarmServer.GetConfig),
		unary("ListCollections", FarmServer.ListCollections),
		unary("Stake", FarmServer.Stake),
		unary("BatchStake", FarmServer.BatchStake),
		unary("Unstake", FarmServer.Unstake),
		unary("BatchUnstake", FarmServer.BatchUnstake),
		unary("ViewAmountOfStakers", FarmServer.ViewAmountOfStakers),
		unary("GetCollectionInfo", FarmServer.GetCollectionInfo),
		unary("GetUser", FarmServer.GetUser),
		unary("Harvest", FarmServer.Harvest),
		unary("GetRequest", FarmServer.GetRequest),
		unary("OnOracleResult", FarmServer.OnOracleResult),
		unary("CancelRequest", FarmServer.CancelRequest),
		unary("Deposit", FarmServer.Deposit),
		unary("WithdrawFunding", FarmServer.WithdrawFunding),
		unary("FundingBalance", FarmServer.FundingBalance),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "farm/v1/farm.json",
}

// RegisterFarmServer registers srv on s.
func RegisterFarmServer(s grpc.ServiceRegistrar, srv FarmServer) {
	s.RegisterService(&ServiceDesc, srv)
}
