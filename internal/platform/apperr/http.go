package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var statusByKind = map[Kind]int{
	KindValidation:   http.StatusUnprocessableEntity,
	KindNotFound:     http.StatusNotFound,
	KindForbidden:    http.StatusForbidden,
	KindUnauthorized: http.StatusUnauthorized,
	KindConflict:     http.StatusConflict,
	KindWarning:      http.StatusConflict,
	KindInternal:     http.StatusInternalServerError,
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return statusByKind[KindOf(err)]
}

// HTTPErrorHandler renders application errors as JSON. Internal errors are
// logged and replaced with a generic message.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := he.Message
			if s, ok := msg.(string); ok {
				msg = map[string]interface{}{"message": s}
			}
			writeJSON(c, he.Code, msg)
			return
		}

		var ae *Error
		if !errors.As(err, &ae) || ae.Kind == KindInternal {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("unhandled error")
			writeJSON(c, http.StatusInternalServerError, map[string]interface{}{
				"message": "internal server error",
			})
			return
		}

		body := map[string]interface{}{"message": ae.Message}
		switch ae.Kind {
		case KindValidation:
			body["errors"] = ae.Fields
		case KindWarning:
			body["warning"] = ae.Code
			body["requires_confirmation"] = true
		}
		writeJSON(c, statusByKind[ae.Kind], body)
	}
}

func writeJSON(c echo.Context, code int, body interface{}) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
