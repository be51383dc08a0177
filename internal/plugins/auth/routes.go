package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/middleware"
)

// RegisterRoutes sets up the /user routes. They are public -- RequireAuth is
// exported separately for the /api group.
//
// Signin and signup are rate-limited against brute-force and credential
// stuffing: 10 attempts per IP per minute for signin, 5 for signup.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/user")
	g.POST("/signup", h.Signup, middleware.RateLimit(5, time.Minute))
	g.POST("/signin", h.Signin, middleware.RateLimit(10, time.Minute))
	g.POST("/refreshToken", h.Refresh, middleware.RateLimit(30, time.Minute))
	g.POST("/signout", h.Signout)
}
