package audit

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the activity feed on the authenticated /api group.
func RegisterRoutes(api *echo.Group, h *Handler) {
	api.GET("/activity", h.Activity)
}
