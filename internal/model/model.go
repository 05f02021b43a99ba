// Package model consumes the external chat model as a lazy, finite,
// non-restartable sequence of text fragments.
package model

import (
	"context"

	"vita-api/internal/shared"
)

type Request struct {
	Messages  []shared.ChatMessage `json:"messages"`
	Model     string               `json:"model,omitempty"`
	MaxTokens int                  `json:"max_tokens,omitempty"`
	Stream    bool                 `json:"stream"`
}

// FragmentStream yields fragments one at a time. Next returns io.EOF on
// clean completion and any other error on mid-stream failure. Close stops
// upstream consumption; the stream cannot be restarted afterwards.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

type Streamer interface {
	Stream(ctx context.Context, req Request) (FragmentStream, error)
}
