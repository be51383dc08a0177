package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyxmakerx/findfirst/internal/database"
	"github.com/keyxmakerx/findfirst/internal/plugins/audit"
	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
	"github.com/keyxmakerx/findfirst/internal/plugins/bookmarks"
	"github.com/keyxmakerx/findfirst/internal/plugins/tags"
)

// maxBodySize bounds JSON request bodies on the API.
const maxBodySize = "1M"

// RegisterRoutes builds every plugin from the shared infrastructure and
// mounts its routes. This is the single place where routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// --- Public Routes (no auth required) ---

	// Liveness: the process is up.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Readiness: both storage collaborators answer.
	e.GET("/readyz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := database.Ready(ctx, a.DB, a.Redis); err != nil {
			slog.Warn("readiness check failed", slog.Any("error", err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// --- Plugins ---

	auditRepo := audit.NewRepository(a.DB)
	auditService := audit.NewService(auditRepo)

	userRepo := auth.NewUserRepository(a.DB)
	tokens := auth.NewTokenIssuer(a.Config.Auth.SecretKey, a.Config.Auth.AccessTokenTTL)
	authService := auth.NewAuthService(userRepo, a.Redis, tokens, a.Config.Auth.SessionTTL)
	resolver := auth.NewDefaultResolver(authService)

	tagRepo := tags.NewTagRepository(a.DB)
	tagService := tags.NewTagService(tagRepo, auditService)

	bookmarkRepo := bookmarks.NewBookmarkRepository(a.DB)
	bookmarkService := bookmarks.NewBookmarkService(bookmarkRepo, tagService, auditService)

	// Signup, signin, refresh and signout under /user.
	auth.RegisterRoutes(e, auth.NewHandler(authService, resolver, !a.Config.IsDevelopment()))

	// Everything under /api requires a resolved principal. Basic credentials
	// are rate-limited before the resolver hashes them.
	api := e.Group("/api",
		echomw.BodyLimit(maxBodySize),
		auth.LimitBasicAttempts(),
		auth.RequireAuth(resolver),
	)
	bookmarks.RegisterRoutes(api, bookmarks.NewHandler(bookmarkService))
	tags.RegisterRoutes(api, tags.NewHandler(tagService))
	audit.RegisterRoutes(api, audit.NewHandler(auditService))
}
