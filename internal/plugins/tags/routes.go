package tags

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts tag routes on the authenticated /api group.
func RegisterRoutes(api *echo.Group, h *Handler) {
	api.GET("/tags", h.ListTags)
	api.POST("/tags", h.CreateTags)
	api.POST("/tag", h.CreateTag)
	api.GET("/tag/:id", h.GetTag)
	api.DELETE("/tag/:id", h.DeleteTag)
}
