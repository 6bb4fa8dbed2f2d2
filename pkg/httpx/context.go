package httpx

import (
	"context"

	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
)

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

// ContextWithClaims attaches verified token claims to ctx.
func ContextWithClaims(ctx context.Context, c *jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// ClaimsFromContext returns the claims stored by BearerAuth, if any.
func ClaimsFromContext(ctx context.Context) (*jwtx.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*jwtx.Claims)
	return c, ok && c != nil
}
