package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"vita-api/internal/metrics"
	"vita-api/internal/ratelimit"
	"vita-api/internal/setup"
	"vita-api/internal/shared"
	"vita-api/internal/validate"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NewErrorHandler normalizes every handler failure into the one outward
// envelope. Internal failures never leak their message, clients get the
// generic detail while the chain is logged in full.
func NewErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		logger := log
		if cc, ok := c.(*setup.Context); ok {
			logger = cc.Log
		}

		status := http.StatusInternalServerError
		env := shared.ErrorEnvelope{
			Detail: shared.ErrInternalServerError.Err.Error(),
			Type:   shared.ErrTypeInternal,
			Errors: []shared.FieldError{},
		}

		var verrs validate.Errors
		var reqErr *shared.RequestError
		var limitErr *ratelimit.LimitError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &verrs):
			status = http.StatusUnprocessableEntity
			env.Detail = "request validation failed"
			env.Type = shared.ErrTypeValidation
			env.Errors = verrs
		case errors.As(err, &limitErr):
			status = http.StatusTooManyRequests
			env.Detail = "rate limit exceeded"
			env.Type = shared.ErrTypeRateLimited
			c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(limitErr.RetryAfter.Seconds())+1))
		case errors.As(err, &reqErr):
			status = reqErr.StatusCode
			if status < http.StatusInternalServerError {
				env.Detail = reqErr.Err.Error()
				env.Type = shared.ErrTypeDomain
			}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			if status < http.StatusInternalServerError {
				env.Detail = fmt.Sprintf("%v", httpErr.Message)
				env.Type = shared.ErrTypeDomain
			}
		}

		metrics.ErrorCount.WithLabelValues(c.Path(), env.Type).Inc()
		if status >= http.StatusInternalServerError {
			logger.Errorw("Request failed", "status", status, "error", err)
		} else {
			logger.Warnw("Request rejected", "status", status, "type", env.Type, "error", err)
		}

		if jsonErr := c.JSON(status, env); jsonErr != nil {
			logger.Errorw("Failed writing error response", "error", jsonErr)
		}
	}
}
