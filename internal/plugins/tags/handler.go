package tags

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
)

// Handler handles HTTP requests for tag operations. Handlers are thin:
// bind request, call service, render response. No business logic lives here.
type Handler struct {
	service TagService
}

// NewHandler creates a new tag handler backed by the given service.
func NewHandler(service TagService) *Handler {
	return &Handler{service: service}
}

// ListTags returns all of the caller's tags (GET /api/tags).
func (h *Handler) ListTags(c echo.Context) error {
	tags, err := h.service.List(c.Request().Context(), auth.GetPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tags)
}

// GetTag returns a single tag (GET /api/tag/:id).
func (h *Handler) GetTag(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	tag, err := h.service.Get(c.Request().Context(), auth.GetPrincipal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tag)
}

// CreateTag creates a new tag (POST /api/tag).
func (h *Handler) CreateTag(c echo.Context) error {
	var req CreateTagRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}

	tag, err := h.service.Create(c.Request().Context(), auth.GetPrincipal(c), req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tag)
}

// CreateTags gets or creates several tags by title (POST /api/tags).
func (h *Handler) CreateTags(c echo.Context) error {
	var req CreateTagsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}

	tags, err := h.service.CreateAll(c.Request().Context(), auth.GetPrincipal(c), req.Titles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tags)
}

// DeleteTag removes a tag (DELETE /api/tag/:id).
func (h *Handler) DeleteTag(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), auth.GetPrincipal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// parseID converts a path parameter into a positive row id.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("invalid tag ID")
	}
	return id, nil
}
