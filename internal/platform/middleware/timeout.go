package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// ErrRequestTimeout is returned when a handler fails because the request
// deadline passed.
var ErrRequestTimeout = echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")

// RequestTimeout puts a deadline on the request context. Handlers run on the
// calling goroutine and the database calls they make observe the deadline;
// an error caused by it is reported as 504. The websocket endpoint is
// long-lived and skipped.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasSuffix(c.Request().URL.Path, "/ws") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) &&
				errors.Is(err, context.DeadlineExceeded) && !c.Response().Committed {
				return ErrRequestTimeout
			}
			return err
		}
	}
}
