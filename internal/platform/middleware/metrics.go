package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careconnect/clinic/internal/platform/metrics"
)

// Metrics records request counts and latency labelled by route template,
// keeping label cardinality bounded.
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
			metrics.RecordHTTPRequest(c.Request().Method, route, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
