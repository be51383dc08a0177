package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/apperror"
)

// Handler handles HTTP requests for the /user endpoints. Handlers are thin:
// they bind the request, call the service, and write the response.
type Handler struct {
	service      AuthService
	resolver     *Resolver
	secureCookie bool
}

// NewHandler creates a new auth handler. secureCookie marks the token cookie
// Secure and should be set whenever the site is served over HTTPS.
func NewHandler(service AuthService, resolver *Resolver, secureCookie bool) *Handler {
	return &Handler{service: service, resolver: resolver, secureCookie: secureCookie}
}

// Signup creates an account (POST /user/signup).
func (h *Handler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	user, err := h.service.Signup(c.Request().Context(), SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

// Signin exchanges HTTP basic credentials for tokens (POST /user/signin).
// The access token is returned in the body and set as the "token" cookie.
func (h *Handler) Signin(c echo.Context) error {
	username, password, ok := c.Request().BasicAuth()
	if !ok || username == "" {
		c.Response().Header().Set("WWW-Authenticate", `Basic realm="findfirst"`)
		return ErrUnauthenticated
	}

	tokens, err := h.service.Signin(c.Request().Context(), username, password)
	if err != nil {
		return err
	}

	h.writeTokenCookie(c, tokens)
	return c.JSON(http.StatusOK, tokens)
}

// Refresh issues a new access token from a refresh token
// (POST /user/refreshToken?token=...).
func (h *Handler) Refresh(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return apperror.NewValidation("refresh token is required")
	}

	tokens, err := h.service.Refresh(c.Request().Context(), token)
	if err != nil {
		return err
	}

	h.writeTokenCookie(c, tokens)
	return c.JSON(http.StatusOK, tokens)
}

// Signout ends the caller's session (POST /user/signout). It always clears
// the cookie, even when the request carries no valid credential.
func (h *Handler) Signout(c echo.Context) error {
	req := c.Request()

	principal, err := h.resolver.Resolve(req.Context(), req)
	if err != nil && !apperror.Is(err, apperror.TypeUnauthorized) {
		return err
	}
	if principal != nil {
		if err := h.service.Signout(req.Context(), principal.SessionID); err != nil {
			return err
		}
	}

	clearTokenCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) writeTokenCookie(c echo.Context, tokens *Tokens) {
	maxAge := int(time.Until(tokens.ExpiresAt).Seconds())
	setTokenCookie(c, tokens.AccessToken, h.secureCookie, maxAge)
}
