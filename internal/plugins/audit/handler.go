package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
)

// Handler handles HTTP requests for the activity feed.
type Handler struct {
	service Service
}

// NewHandler creates a new audit handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Activity returns the caller's recent actions (GET /api/activity?page=N).
func (h *Handler) Activity(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))

	result, err := h.service.Activity(c.Request().Context(), auth.GetPrincipal(c), page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
