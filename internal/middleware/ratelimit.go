package middleware

import (
	"fmt"

	"vita-api/internal/metrics"
	"vita-api/internal/ratelimit"
	"vita-api/internal/shared"

	"github.com/labstack/echo/v4"
)

// NewRateLimitMiddleware gates a route group behind one limiter class. It
// runs before user extraction, so a rejected request costs no cache read and
// no account lookup: authenticated traffic is counted per raw bearer key,
// anonymous traffic per client IP.
func NewRateLimitMiddleware(l *ratelimit.Limiter, class ratelimit.RouteClass) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := c.RealIP()
			if apiKey, err := shared.ExtractAPIKey(c); err == nil {
				identity = "key:" + apiKey
			}

			d := l.Admit(identity, class)
			if !d.Allowed {
				metrics.RateLimitRejections.WithLabelValues(string(class)).Inc()
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(d.RetryAfter.Seconds())+1))
				return &ratelimit.LimitError{Class: class, RetryAfter: d.RetryAfter}
			}
			return next(c)
		}
	}
}
