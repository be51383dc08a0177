package auth

import (
	"context"

	"github.com/labstack/echo/v4"
)

// principalKey is a private type for the principal context key.
type principalKey struct{}

// WithPrincipal stores the authenticated principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal.
// Returns nil if the request was not authenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return p
	}
	return nil
}

// GetPrincipal retrieves the principal from an Echo request. Handlers in
// other plugins use this and pass the result to their services.
func GetPrincipal(c echo.Context) *Principal {
	return PrincipalFromContext(c.Request().Context())
}
