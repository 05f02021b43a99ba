package middleware

import (
	"vita-api/internal/setup"
	"vita-api/internal/shared"
	"vita-api/internal/users"

	"github.com/labstack/echo/v4"
)

// NewExtractUserMiddleware resolves the bearer key to account metadata when
// one is present. Anonymous requests pass through with User left nil.
func NewExtractUserMiddleware(svc *users.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(cc echo.Context) error {
			c := cc.(*setup.Context)
			c.User = nil

			apiKey, err := shared.ExtractAPIKey(c)
			if err != nil {
				return next(c)
			}
			user, err := svc.GetUserMetadataFromKey(c.Request().Context(), apiKey)
			if err != nil {
				return next(c)
			}
			c.User = user
			c.Log = c.Log.With("user_id", c.User.UserID)
			return next(c)
		}
	}
}

func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(cc echo.Context) error {
		c := cc.(*setup.Context)
		if c.User == nil {
			return shared.ErrUnauthorized
		}
		if c.User.Locked {
			return shared.ErrAccountLocked
		}
		return next(c)
	}
}
