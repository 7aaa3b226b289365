package middlewares

import (
	"context"

	"github.com/ydethe/quizzy/internal/oidc"
)

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxIdentityKey  ctxKey = "identity"
)

func setRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, id)
}

// GetRequestID devuelve "" si WithRequestID no corrió.
func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}

// WithIdentity inyecta las claims verificadas del admin.
func WithIdentity(ctx context.Context, c *oidc.IdentityClaims) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, c)
}

// GetIdentity devuelve nil fuera de rutas con RequireAdmin.
func GetIdentity(ctx context.Context) *oidc.IdentityClaims {
	c, _ := ctx.Value(ctxIdentityKey).(*oidc.IdentityClaims)
	return c
}
