// Package routers
package routers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vita-api/internal/setup"
	"vita-api/internal/shared"
)

func readRequestBody(c *setup.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		c.Log.Errorw("Failed to read request body", "error", err.Error())
		return nil, err
	}
	return body, nil
}

// eventWriter serializes stream events onto the response. Headers are sent
// lazily on the first event so failures before any output still get a normal
// JSON error envelope instead of a half-open SSE stream.
type eventWriter struct {
	c       *setup.Context
	started bool
}

func (w *eventWriter) write(ev shared.StreamEvent) error {
	if err := w.c.Request().Context().Err(); err != nil {
		return err
	}
	if !w.started {
		w.c.Response().Header().Set("Content-Type", "text/event-stream")
		w.c.Response().Header().Set("Cache-Control", "no-cache")
		w.c.Response().Header().Set("Connection", "keep-alive")
		w.c.Response().WriteHeader(http.StatusOK)
		w.started = true
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.c.Response(), "data: %s\n\n", payload); err != nil {
		return err
	}
	w.c.Response().Flush()
	return nil
}
