package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/observability"
)

// Metrics returns middleware that records request counts and latency per
// route template. Using the template instead of the raw path keeps label
// cardinality bounded (/api/bookmark/:id, not /api/bookmark/42).
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status/100) + "xx"

			observability.RequestsTotal.WithLabelValues(method, route, status).Inc()
			observability.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return nil
		}
	}
}
