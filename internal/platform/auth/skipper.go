package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication: infrastructure
// endpoints and the login itself.
var publicPaths = map[string]bool{
	"/health":     true,
	"/health/db":  true,
	"/metrics":    true,
	"/auth/login": true,
}

// publicPrefixes are served without a token. Uploaded attachments are
// addressed by unguessable generated names.
var publicPrefixes = []string{"/uploads/"}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether the given path bypasses authentication.
func IsPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
