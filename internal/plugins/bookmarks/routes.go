package bookmarks

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts bookmark routes on the authenticated /api group.
func RegisterRoutes(api *echo.Group, h *Handler) {
	api.GET("/bookmarks", h.List)
	api.DELETE("/bookmarks", h.DeleteAll)
	api.GET("/bookmarks/search", h.Search)
	api.POST("/bookmarks/search", h.Search)
	api.GET("/bookmarks/search/title", h.SearchByTitle)

	api.POST("/bookmark", h.Create)
	api.GET("/bookmark/:id", h.Get)
	api.PUT("/bookmark/:id", h.Update)
	api.DELETE("/bookmark/:id", h.Delete)
	api.POST("/bookmark/:id/tag", h.AddTag)
	api.DELETE("/bookmark/:id/tag/:tagId", h.RemoveTag)
}
