package middleware

import (
	"github.com/labstack/echo/v4"
)

type header struct{ name, value string }

// apiHeaders suit a JSON API serving patient records: nothing is framed,
// sniffed or cached, and no resources load from responses.
var apiHeaders = []header{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Cache-Control", "no-store"},
}

var hstsHeader = header{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"}

// SecurityHeaders stamps apiHeaders on every response. HSTS is added only
// when hsts is set; development runs over plain HTTP.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	set := apiHeaders
	if hsts {
		set = append(append([]header(nil), apiHeaders...), hstsHeader)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, hd := range set {
				h.Set(hd.name, hd.value)
			}
			return next(c)
		}
	}
}
