package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/nft-farm/internal/authz"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/farm.v1.Farm/Method"}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/farm.v1.Farm/Panic"}

	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(context.Background(), "req", info, panicH)
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/farm.v1.Farm/Ok"}

	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(context.Background(), "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/farm.v1.Farm/Sleep"}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(context.Background(), "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

func TestAuthUnary(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ic := AuthUnary(key)
	info := &grpc.UnaryServerInfo{FullMethod: "/farm.v1.Farm/Stake"}
	echo := func(ctx context.Context, req any) (any, error) {
		p, _ := PrincipalFromCtx(ctx)
		return p, nil
	}

	resp, err := ic(context.Background(), nil, info, echo)
	if err != nil || !resp.(authz.Principal).Anonymous() {
		t.Fatalf("no token must pass anonymously: %v, %v", resp, err)
	}

	want := authz.Principal{Address: common.HexToAddress("0xad"), Roles: []authz.Role{authz.RoleAdmin}}
	tok, _, err := authz.Issue(want, key, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	resp, err = ic(ctxAuth(tok), nil, info, echo)
	if err != nil {
		t.Fatalf("valid token: %v", err)
	}
	if got := resp.(authz.Principal); got.Address != want.Address || !got.Has(authz.RoleAdmin) {
		t.Fatalf("principal mismatch: %+v", got)
	}

	_, err = ic(ctxAuth("this-is-not-a-jwt"), nil, info, echo)
	if st, ok := status.FromError(err); !ok || st.Code() != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", err)
	}

	other, _, _ := authz.Issue(want, []byte("other"), time.Hour, time.Now())
	_, err = ic(ctxAuth(other), nil, info, echo)
	if st, ok := status.FromError(err); !ok || st.Code() != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated on foreign key, got %v", err)
	}
}

func TestMetricsUnary_Passthrough(t *testing.T) {
	t.Parallel()

	ic := MetricsUnary()
	info := &grpc.UnaryServerInfo{FullMethod: "/farm.v1.Farm/GetConfig"}
	wantErr := status.Error(codes.NotFound, "x")
	_, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) { return nil, wantErr })
	if status.Code(err) != codes.NotFound {
		t.Fatalf("want NotFound, got %v", err)
	}
}
