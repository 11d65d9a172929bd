package grpcserver

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/errs"
)

func ctxAuth(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer "+token))
}

func Test_bearerTokenFromMD_OkAndErrors(t *testing.T) {
	t.Parallel()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer abc.def.ghi"))
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "abc.def.ghi" {
		t.Fatalf("ok: got=%q err=%v", got, err)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic foo"))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on non-bearer")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer   "))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on empty token")
	}

	if _, err := bearerTokenFromMD(context.Background()); err == nil {
		t.Fatalf("want error on no metadata")
	}
}

func Test_bearerTokenFromMD_MultipleHeaders_CaseInsensitive_Spaces(t *testing.T) {
	t.Parallel()
	md := metadata.New(nil)
	md.Append("authorization", "Basic foo")
	md.Append("authorization", "  bearer   tok.part.sig   ")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "tok.part.sig" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func Test_toStatus(t *testing.T) {
	t.Parallel()

	user := WithPrincipal(context.Background(), authz.Principal{Address: common.HexToAddress("0x01")})
	tests := []struct {
		name string
		ctx  context.Context
		err  error
		code codes.Code
		msg  string
	}{
		{"anonymous", context.Background(), errs.ErrUnauthorized, codes.Unauthenticated, "unauthorized"},
		{"missing role", user, fmt.Errorf("admin role required: %w", errs.ErrUnauthorized), codes.PermissionDenied, "unauthorized"},
		{"not owner", user, fmt.Errorf("token 5: %w", errs.ErrNotOwner), codes.FailedPrecondition, "sender doesn't own this token"},
		{"unknown cid", user, fmt.Errorf("cid 9: %w", errs.ErrUnknownCollection), codes.NotFound, "collection doesn't exist"},
		{"bad input", user, errs.ErrInvalidArgument, codes.InvalidArgument, "invalid argument"},
		{"pending", user, errs.ErrRequestPending, codes.FailedPrecondition, "harvest request already pending"},
		{"transfer", user, fmt.Errorf("pull: %w", errs.ErrTransferFailed), codes.Aborted, "transfer failed"},
		{"rate limited", user, errs.ErrRateLimited, codes.ResourceExhausted, "rate limited"},
		{"duplicate", user, errs.ErrAlreadyExists, codes.AlreadyExists, "already exists"},
		{"canceled", user, context.Canceled, codes.Canceled, "context canceled"},
		{"internal", user, fmt.Errorf("db down"), codes.Internal, "internal"},
	}
	for _, tt := range tests {
		st, ok := status.FromError(toStatus(tt.ctx, tt.err))
		if !ok || st.Code() != tt.code || st.Message() != tt.msg {
			t.Fatalf("%s: got %v %q, want %v %q", tt.name, st.Code(), st.Message(), tt.code, tt.msg)
		}
	}
}

type loopbackAddr struct{}

func (loopbackAddr) Network() string { return "tcp" }
func (loopbackAddr) String() string  { return "127.0.0.1:5555" }

func Test_remoteIP(t *testing.T) {
	t.Parallel()
	if got := remoteIP(context.Background()); got != "" {
		t.Fatalf("want empty, got %q", got)
	}
	pctx := peer.NewContext(context.Background(), &peer.Peer{Addr: loopbackAddr{}})
	if got := remoteIP(pctx); got != "127.0.0.1" {
		t.Fatalf("want host without port, got %q", got)
	}
}
