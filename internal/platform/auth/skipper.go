package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/health":                      true,
	"/health/db":                   true,
	"/api/v1/auth/login":           true,
	"/api/v1/auth/password/forgot": true,
	"/api/v1/auth/password/reset":  true,
}

// AuthSkipper matches on the route path, so it must run after routing.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
