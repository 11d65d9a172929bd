package grpcserver

import (
	"context"

	"github.com/and161185/nft-farm/internal/authz"
)

type ctxKey string

const principalKey ctxKey = "nf.principal"

// WithPrincipal stores the authenticated caller in context.
func WithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the caller; ok is false for anonymous calls.
func PrincipalFromCtx(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(principalKey).(authz.Principal)
	return p, ok
}

func principal(ctx context.Context) authz.Principal {
	p, _ := PrincipalFromCtx(ctx)
	return p
}
