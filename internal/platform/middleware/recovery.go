package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns a panic into an internal error. The stack goes to the
// request-scoped logger when Logger ran first, otherwise to logger. The
// client only sees the generic message written by ErrorHandler.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				stack := make([]byte, 8<<10)
				stack = stack[:runtime.Stack(stack, false)]

				l := zerolog.Ctx(c.Request().Context())
				if l.GetLevel() == zerolog.Disabled {
					l = &logger
				}
				l.Error().
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Interface("panic", r).
					Bytes("stack", stack).
					Msg("handler panicked")

				err = fmt.Errorf("recovered panic in %s %s: %v", c.Request().Method, c.Path(), r)
			}()
			return next(c)
		}
	}
}
