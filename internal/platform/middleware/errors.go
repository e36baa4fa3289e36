package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/platform/apperr"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ErrorHandler replaces echo's default HTTPErrorHandler. Domain errors are
// mapped by kind; anything unclassified becomes a 500 whose message is only
// revealed when exposeInternal is set (development).
func ErrorHandler(logger zerolog.Logger, exposeInternal bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := resolveError(err, exposeInternal)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, ErrorResponse{Error: msg, Status: status})
		}
		if werr != nil {
			logger.Warn().Err(werr).Msg("failed to write error response")
		}
	}
}

func resolveError(err error, exposeInternal bool) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		if he.Code >= http.StatusInternalServerError && !exposeInternal {
			msg = "internal server error"
		}
		return he.Code, msg
	}

	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		if exposeInternal {
			return http.StatusInternalServerError, err.Error()
		}
		return http.StatusInternalServerError, "internal server error"
	}
	return kind.HTTPStatus(), err.Error()
}
