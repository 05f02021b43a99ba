package routers

import (
	"encoding/json"
	"net/http"

	"vita-api/internal/profile"
	"vita-api/internal/setup"
	"vita-api/internal/shared"

	"github.com/labstack/echo/v4"
)

type ProfileRouter struct {
	profiles *profile.Service
}

func RegisterProfileRoutes(e *echo.Group, profiles *profile.Service, mws ...echo.MiddlewareFunc) {
	pr := &ProfileRouter{profiles: profiles}

	g := e.Group("/v1/profile", mws...)
	g.GET("", pr.GetProfile)
	g.PUT("", pr.UpdateProfile)
}

func (pr *ProfileRouter) GetProfile(cc echo.Context) error {
	c := cc.(*setup.Context)

	p, err := pr.profiles.Get(c.Request().Context(), c.User.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shared.ShapeVersioned(p))
}

// UpdateProfile applies a client-authored delta with the same merge rules as
// conversation-mined ones.
func (pr *ProfileRouter) UpdateProfile(cc echo.Context) error {
	c := cc.(*setup.Context)

	body, err := readRequestBody(c)
	if err != nil {
		return shared.ErrInvalidRequest
	}
	var d profile.Delta
	if err := json.Unmarshal(body, &d); err != nil {
		return shared.ErrInvalidRequest
	}
	if d.Empty() {
		return shared.ErrBadRequest
	}

	p, err := pr.profiles.ApplyDelta(c.Request().Context(), c.User.UserID, d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shared.ShapeVersioned(p))
}
