// Package grpcserver exposes the farm.v1.Farm gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	farmv1 "github.com/and161185/nft-farm/api/farmv1"
	"github.com/and161185/nft-farm/internal/convert"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/service"
)

// Services bundles the domain services served over gRPC.
type Services struct {
	Auth     service.AuthService
	Registry service.RegistryService
	Staking  service.StakingService
	Harvest  service.HarvestService
	Funding  service.FundingService
}

// Server wires services into gRPC handlers.
type Server struct {
	svc Services
}

var _ farmv1.FarmServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(svc Services) *Server {
	return &Server{svc: svc}
}

// codeOf maps ledger sentinels to status codes, most specific first.
var codeOf = []struct {
	err  error
	code codes.Code
}{
	{errs.ErrUnknownCollection, codes.NotFound},
	{errs.ErrUnknownRequest, codes.NotFound},
	{errs.ErrNotFound, codes.NotFound},
	{errs.ErrInvalidConfig, codes.InvalidArgument},
	{errs.ErrInvalidArgument, codes.InvalidArgument},
	{errs.ErrNotStakable, codes.FailedPrecondition},
	{errs.ErrLimitExceeded, codes.FailedPrecondition},
	{errs.ErrNotOwner, codes.FailedPrecondition},
	{errs.ErrNothingStaked, codes.FailedPrecondition},
	{errs.ErrNotMature, codes.FailedPrecondition},
	{errs.ErrInsufficientFee, codes.FailedPrecondition},
	{errs.ErrInsufficientFunding, codes.FailedPrecondition},
	{errs.ErrRequestPending, codes.FailedPrecondition},
	{errs.ErrAlreadyExists, codes.AlreadyExists},
	{errs.ErrTransferFailed, codes.Aborted},
	{errs.ErrRateLimited, codes.ResourceExhausted},
}

// toStatus converts a service error into a gRPC status carrying the
// sentinel's reason string. Unmapped errors become Internal.
func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		if principal(ctx).Anonymous() {
			return status.Error(codes.Unauthenticated, errs.ErrUnauthorized.Error())
		}
		return status.Error(codes.PermissionDenied, errs.ErrUnauthorized.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	for _, m := range codeOf {
		if errors.Is(err, m.err) {
			return status.Error(m.code, m.err.Error())
		}
	}
	return status.Error(codes.Internal, "internal")
}

func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

// --- Auth ---

// Register creates an account for a wallet that signed the registration message.
func (s *Server) Register(ctx context.Context, req *farmv1.RegisterRequest) (*farmv1.Empty, error) {
	if req.Address == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty address/password")
	}
	addr, err := convert.ParseAddress("address", req.Address)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	sig, err := convert.ParseSignature(req.Signature)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := s.svc.Auth.Register(ctx, addr, req.Password, sig); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.Empty{}, nil
}

// Login authenticates an account and returns an access token.
func (s *Server) Login(ctx context.Context, req *farmv1.LoginRequest) (*farmv1.LoginResponse, error) {
	addr, err := convert.ParseAddress("address", req.Address)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	tok, p, err := s.svc.Auth.Login(ctx, addr, req.Password, remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		return nil, toStatus(ctx, err)
	}
	resp := &farmv1.LoginResponse{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt}
	for _, r := range p.Roles {
		resp.Roles = append(resp.Roles, string(r))
	}
	return resp, nil
}

// --- Registry ---

// RegisterOrUpdateCollection stores a collection config (admin only).
func (s *Server) RegisterOrUpdateCollection(ctx context.Context, req *farmv1.RegisterCollectionRequest) (*farmv1.RegisterCollectionResponse, error) {
	cfg, err := convert.FromAPICollectionConfig(req.Config)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	cid, created, err := s.svc.Registry.RegisterOrUpdateCollection(ctx, principal(ctx), cfg)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.RegisterCollectionResponse{Cid: cid, Created: created}, nil
}

// GetConfig returns the config of one collection.
func (s *Server) GetConfig(ctx context.Context, req *farmv1.CidRequest) (*farmv1.CollectionConfig, error) {
	cfg, err := s.svc.Registry.GetConfig(ctx, req.Cid)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	out := convert.ToAPICollectionConfig(cfg)
	return &out, nil
}

// ListCollections returns every registered collection.
func (s *Server) ListCollections(ctx context.Context, _ *farmv1.Empty) (*farmv1.ListCollectionsResponse, error) {
	cs, err := s.svc.Registry.ListCollections(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.ListCollectionsResponse{Collections: convert.ToAPICollections(cs)}, nil
}

// --- Staking ---

func (s *Server) Stake(ctx context.Context, req *farmv1.StakeRequest) (*farmv1.Empty, error) {
	id, err := convert.ParseAmount("token_id", req.TokenID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	pay, err := convert.ParseAmount("payment", req.Payment)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := s.svc.Staking.Stake(ctx, principal(ctx), req.Cid, id, pay); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.Empty{}, nil
}

func (s *Server) BatchStake(ctx context.Context, req *farmv1.BatchStakeRequest) (*farmv1.Empty, error) {
	ids, err := convert.ParseAmounts("token_ids", req.TokenIDs)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	pay, err := convert.ParseAmount("payment", req.Payment)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := s.svc.Staking.BatchStake(ctx, principal(ctx), req.Cid, ids, pay); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.Empty{}, nil
}

func (s *Server) Unstake(ctx context.Context, req *farmv1.UnstakeRequest) (*farmv1.Empty, error) {
	id, err := convert.ParseAmount("token_id", req.TokenID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := s.svc.Staking.Unstake(ctx, principal(ctx), req.Cid, id); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.Empty{}, nil
}

func (s *Server) BatchUnstake(ctx context.Context, req *farmv1.BatchUnstakeRequest) (*farmv1.Empty, error) {
	ids, err := convert.ParseAmounts("token_ids", req.TokenIDs)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := s.svc.Staking.BatchUnstake(ctx, principal(ctx), req.Cid, ids); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.Empty{}, nil
}

func (s *Server) ViewAmountOfStakers(ctx context.Context, req *farmv1.CidRequest) (*farmv1.AmountOfStakersResponse, error) {
	n, err := s.svc.Staking.ViewAmountOfStakers(ctx, req.Cid)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.AmountOfStakersResponse{AmountOfStakers: n}, nil
}

func (s *Server) GetCollectionInfo(ctx context.Context, req *farmv1.CidRequest) (*farmv1.CollectionInfo, error) {
	ci, err := s.svc.Staking.GetCollectionInfo(ctx, req.Cid)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return convert.ToAPICollectionInfo(ci), nil
}

// GetUser returns a position; an empty user field means the caller.
func (s *Server) GetUser(ctx context.Context, req *farmv1.GetUserRequest) (*farmv1.UserInfo, error) {
	user := principal(ctx).Address
	if req.User != "" {
		var err error
		if user, err = convert.ParseAddress("user", req.User); err != nil {
			return nil, toStatus(ctx, err)
		}
	}
	ui, err := s.svc.Staking.GetUser(ctx, user, req.Cid)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return convert.ToAPIUserInfo(ui), nil
}

// --- Harvest ---

func (s *Server) Harvest(ctx context.Context, req *farmv1.HarvestRequest) (*farmv1.HarvestResponse, error) {
	pay, err := convert.ParseAmount("payment", req.Payment)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	qid, err := s.svc.Harvest.Harvest(ctx, principal(ctx), req.Cid, pay)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.HarvestResponse{QueryID: qid}, nil
}

func (s *Server) GetRequest(ctx context.Context, req *farmv1.QueryRequest) (*farmv1.RequestInfo, error) {
	r, err := s.svc.Harvest.GetRequest(ctx, req.QueryID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return convert.ToAPIRequest(r), nil
}

// OnOracleResult applies an oracle answer (oracle role only).
func (s *Server) OnOracleResult(ctx context.Context, req *farmv1.OracleResultRequest) (*farmv1.RequestInfo, error) {
	if req.QueryID == "" {
		return nil, status.Error(codes.InvalidArgument, "empty query_id")
	}
	rarity, err := convert.ParseAmount("rarity", req.Rarity)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	r, err := s.svc.Harvest.OnOracleResult(ctx, principal(ctx), req.QueryID, rarity)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return convert.ToAPIRequest(r), nil
}

func (s *Server) CancelRequest(ctx context.Context, req *farmv1.QueryRequest) (*farmv1.Empty, error) {
	if err := s.svc.Harvest.CancelRequest(ctx, principal(ctx), req.QueryID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &farmv1.Empty{}, nil
}

// --- Funding ---

func (s *Server) Deposit(ctx context.Context, req *farmv1.AmountRequest) (*farmv1.Funding, error) {
	amount, err := convert.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	f, err := s.svc.Funding.Deposit(ctx, principal(ctx), amount)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return convert.ToAPIFunding(f), nil
}

func (s *Server) WithdrawFunding(ctx context.Context, req *farmv1.AmountRequest) (*farmv1.Funding, error) {
	amount, err := convert.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	f, err := s.svc.Funding.WithdrawFunding(ctx, principal(ctx), amount)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return convert.ToAPIFunding(f), nil
}

func (s *Server) FundingBalance(ctx context.Context, _ *farmv1.Empty) (*farmv1.Funding, error) {
	f, err := s.svc.Funding.Balance(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return convert.ToAPIFunding(f), nil
}
