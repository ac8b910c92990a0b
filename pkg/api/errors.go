// Package api serves the run log over HTTP.
package api

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

type ErrorResponse struct {
	Message string         `json:"message"`
	TraceID string         `json:"trace_id,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorHandler renders echo and httperror errors as JSON. Anything else is a 500.
func ErrorHandler(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		var meta map[string]any

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		}
		if httperror.IsHTTPError(err) {
			httpErr := httperror.ToHTTPError(err)
			code = httperror.GetStatusCode(err)
			message = httpErr.Error()
			meta = httpErr.Meta
		}

		if code >= http.StatusInternalServerError {
			logger.WithContext(ctx).WithError(err).Error("api is returning an error")
		}

		_ = c.JSON(code, ErrorResponse{
			Message: message,
			TraceID: tracing.GetTraceID(ctx),
			Meta:    meta,
		})
	}
}
