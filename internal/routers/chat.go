package routers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"vita-api/internal/chat"
	"vita-api/internal/database"
	"vita-api/internal/setup"
	"vita-api/internal/shared"

	"github.com/labstack/echo/v4"
)

type ChatRouter struct {
	orch   *chat.Orchestrator
	readDB *sql.DB
}

func RegisterChatRoutes(e *echo.Group, orch *chat.Orchestrator, readDB *sql.DB, mws ...echo.MiddlewareFunc) {
	cr := &ChatRouter{orch: orch, readDB: readDB}

	g := e.Group("/v1/chat", mws...)
	g.POST("/stream", cr.StreamChat)
	g.GET("/history", cr.History)
}

func (cr *ChatRouter) StreamChat(cc echo.Context) error {
	c := cc.(*setup.Context)

	body, err := readRequestBody(c)
	if err != nil {
		return shared.ErrInvalidRequest
	}
	var req shared.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return shared.ErrInvalidRequest
	}
	if err := chat.ValidateMessages(req.Messages); err != nil {
		return err
	}

	sessionID := c.Request().Header.Get("X-Session-Id")
	if sessionID == "" {
		sessionID = "user:" + strconv.FormatUint(c.User.UserID, 10)
	}

	// No overall deadline on the stream itself. The model client's transport
	// bounds a wedged upstream; a healthy long stream runs to completion.
	w := &eventWriter{c: c}
	res, err := cr.orch.Stream(c.Request().Context(), c.User.UserID, sessionID, req, func(f shared.Fragment) error {
		return w.write(shared.StreamEvent{Type: "message", Data: f})
	})
	if err != nil {
		if !w.started {
			return err
		}
		// The stream is already open, the envelope ship has sailed. Emit a
		// terminal error event instead.
		c.Log.Warnw("Stream ended abnormally", "state", string(res.State), "error", err)
		_ = w.write(shared.StreamEvent{Type: "error"})
		return nil
	}

	_ = w.write(shared.StreamEvent{Type: "done"})
	return nil
}

func (cr *ChatRouter) History(cc echo.Context) error {
	c := cc.(*setup.Context)

	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 || p > shared.MaxHistoryPage {
			return shared.ErrBadRequest
		}
		page = p
	}

	msgs, total, err := database.ListMessages(c.Request().Context(), cr.readDB, c.User.UserID, page, shared.HistoryPageSize)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []shared.StoredMessage{}
	}

	return c.JSON(http.StatusOK, shared.Shape(map[string]any{
		"messages": msgs,
		"total":    total,
		"page":     page,
		"per_page": shared.HistoryPageSize,
	}))
}
