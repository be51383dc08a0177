package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/middleware"
)

// Basic credentials on /api get the same budget as /user/signin.
const (
	basicAttemptsPerWindow = 10
	basicAttemptWindow     = time.Minute
)

// RequireAuth returns middleware that resolves the caller's identity before
// the handler runs and stores the principal in the request context. Requests
// without a valid credential get an empty 401 and never reach the handler.
func RequireAuth(resolver *Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			principal, err := resolver.Resolve(req.Context(), req)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					// Drop a stale token cookie so the client stops sending it.
					if _, cerr := req.Cookie(TokenCookieName); cerr == nil {
						clearTokenCookie(c)
					}
					return c.NoContent(http.StatusUnauthorized)
				}
				return err
			}

			c.SetRequest(req.WithContext(WithPrincipal(req.Context(), principal)))
			return next(c)
		}
	}
}

// LimitBasicAttempts rate-limits requests that carry Basic credentials, per
// client IP. Each one costs a password hash, so it mounts in front of
// RequireAuth. Token-authenticated requests are not counted.
func LimitBasicAttempts() echo.MiddlewareFunc {
	return middleware.RateLimitWithConfig(middleware.RateLimitConfig{
		Max:    basicAttemptsPerWindow,
		Window: basicAttemptWindow,
		Skipper: func(c echo.Context) bool {
			return !hasBasicCredentials(c.Request())
		},
	})
}

// hasBasicCredentials reports whether the request uses the Basic scheme.
func hasBasicCredentials(r *http.Request) bool {
	scheme, _, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	return strings.EqualFold(scheme, "Basic")
}

// setTokenCookie stores the access token in an HttpOnly cookie.
func setTokenCookie(c echo.Context, token string, secure bool, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearTokenCookie removes the token cookie.
func clearTokenCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
