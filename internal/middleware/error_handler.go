package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"feeledger_app_echo/internal/services"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

var errorKinds = []struct {
	err  error
	code int
	kind string
}{
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrInactiveStructure, http.StatusConflict, "inactive_structure"},
	{services.ErrConflict, http.StatusConflict, "conflict"},
	{services.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{services.ErrInvalidReference, http.StatusUnprocessableEntity, "invalid_reference"},
	{services.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{services.ErrConcurrencyConflict, http.StatusServiceUnavailable, "concurrency_conflict"},
	{services.ErrValidation, http.StatusBadRequest, "validation"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// StatusFor maps an error returned by a handler to its HTTP status and error kind
func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, http.StatusText(he.Code)
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.code, k.kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

// CustomErrorHandler renders every error as JSON
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, kind := StatusFor(err)
	message := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
	} else if code == http.StatusInternalServerError {
		message = "Something went wrong. Please try again later."
	}

	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	resp := ErrorResponse{
		Error:     kind,
		Message:   message,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, resp)
	}
	if writeErr != nil {
		c.Logger().Error(writeErr)
	}
}

// RequestTimeout bounds each request's context. Handlers that overrun get a 504.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: timeout,
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, context.DeadlineExceeded) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out").SetInternal(err)
			}
			return err
		},
	})
}
