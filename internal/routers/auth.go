package routers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"vita-api/internal/database"
	"vita-api/internal/setup"
	"vita-api/internal/shared"
	"vita-api/internal/validate"

	"github.com/labstack/echo/v4"
)

type AuthRouter struct {
	writeDB *sql.DB
}

func RegisterAuthRoutes(e *echo.Group, writeDB *sql.DB, mws ...echo.MiddlewareFunc) {
	ar := &AuthRouter{writeDB: writeDB}

	g := e.Group("/v1/auth", mws...)
	g.POST("/register", ar.Register)
}

func (ar *AuthRouter) Register(cc echo.Context) error {
	c := cc.(*setup.Context)

	body, err := readRequestBody(c)
	if err != nil {
		return shared.ErrInvalidRequest
	}
	var req shared.RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return shared.ErrInvalidRequest
	}
	if err := validate.ValidateRegister(req); err != nil {
		return err
	}

	userID, err := database.CreateUser(c.Request().Context(), ar.writeDB, req.Username, req.Email)
	if err != nil {
		return err
	}

	c.Log.Infow("User registered", "user_id", userID)
	return c.JSON(http.StatusCreated, shared.Shape(map[string]any{
		"user_id":  userID,
		"username": req.Username,
	}))
}
