package bookmarks

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
)

// Handler handles HTTP requests for bookmark operations. Handlers are thin:
// bind request, call service, render response. No business logic lives here.
type Handler struct {
	service BookmarkService
}

// NewHandler creates a new bookmark handler.
func NewHandler(service BookmarkService) *Handler {
	return &Handler{service: service}
}

// List returns all of the caller's bookmarks (GET /api/bookmarks).
func (h *Handler) List(c echo.Context) error {
	bookmarks, err := h.service.List(c.Request().Context(), auth.GetPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bookmarks)
}

// DeleteAll removes all of the caller's bookmarks (DELETE /api/bookmarks).
func (h *Handler) DeleteAll(c echo.Context) error {
	n, err := h.service.DeleteAll(c.Request().Context(), auth.GetPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

// Search runs a tag search. The tags come from the JSON body on POST
// (/api/bookmarks/search {"tags":[...]}) or repeated query parameters on
// GET (/api/bookmarks/search?tags=a&tags=b).
func (h *Handler) Search(c echo.Context) error {
	var req SearchRequest
	if c.Request().Method == http.MethodGet {
		req.Tags = c.QueryParams()["tags"]
	} else if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}

	if err := req.Validate(); err != nil {
		return err
	}

	bookmarks, err := h.service.Search(c.Request().Context(), auth.GetPrincipal(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bookmarks)
}

// SearchByTitle runs a title keyword search
// (GET /api/bookmarks/search/title?keywords=go,postgres). Keywords may also
// be repeated or separated by spaces.
func (h *Handler) SearchByTitle(c echo.Context) error {
	keywords, err := ParseKeywords(c.QueryParams()["keywords"]...)
	if err != nil {
		return err
	}

	bookmarks, err := h.service.SearchByTitle(c.Request().Context(), auth.GetPrincipal(c), keywords)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bookmarks)
}

// Get returns one bookmark (GET /api/bookmark/:id).
func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	b, err := h.service.Get(c.Request().Context(), auth.GetPrincipal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// Create adds a bookmark (POST /api/bookmark).
func (h *Handler) Create(c echo.Context) error {
	var req CreateBookmarkRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}

	b, err := h.service.Create(c.Request().Context(), auth.GetPrincipal(c), CreateInput{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

// Update replaces a bookmark's fields (PUT /api/bookmark/:id).
func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	var req UpdateBookmarkRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}

	b, err := h.service.Update(c.Request().Context(), auth.GetPrincipal(c), id, UpdateInput{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// Delete removes a bookmark (DELETE /api/bookmark/:id).
func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), auth.GetPrincipal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddTag attaches a tag by title (POST /api/bookmark/:id/tag?tag=title).
func (h *Handler) AddTag(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}

	tag, err := h.service.AddTag(c.Request().Context(), auth.GetPrincipal(c), id, c.QueryParam("tag"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tag)
}

// RemoveTag detaches a tag (DELETE /api/bookmark/:id/tag/:tagId).
func (h *Handler) RemoveTag(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	tagID, err := parseID(c.Param("tagId"))
	if err != nil {
		return err
	}

	if err := h.service.RemoveTag(c.Request().Context(), auth.GetPrincipal(c), id, tagID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// parseID converts a path parameter into a positive row id.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("invalid ID")
	}
	return id, nil
}
