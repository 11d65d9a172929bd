package grpcserver

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/and161185/nft-farm/internal/authz"
)

func TestWithPrincipal_And_PrincipalFromCtx(t *testing.T) {
	t.Parallel()

	if p, ok := PrincipalFromCtx(context.Background()); ok || !p.Anonymous() {
		t.Fatalf("expected no principal in empty ctx")
	}

	want := authz.Principal{Address: common.HexToAddress("0x01"), Roles: []authz.Role{authz.RoleAdmin}}
	ctx := WithPrincipal(context.Background(), want)

	got, ok := PrincipalFromCtx(ctx)
	if !ok {
		t.Fatalf("expected principal in ctx")
	}
	if got.Address != want.Address || !got.Has(authz.RoleAdmin) {
		t.Fatalf("mismatch: got %+v, want %+v", got, want)
	}

	bad := context.WithValue(context.Background(), principalKey, "not-a-principal")
	if _, ok := PrincipalFromCtx(bad); ok {
		t.Fatalf("expected miss on wrong typed value")
	}
}
