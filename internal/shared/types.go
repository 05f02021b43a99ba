package shared

import "time"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Fragment is one incremental chunk of a streamed chat response, exactly as
// it is emitted to the client.
type Fragment struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamEvent wraps anything sent over the chat SSE connection. Type is
// "message" for assistant fragments, "error" for a terminal mid-stream
// failure and "done" for clean completion.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type StoredMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserMetadata struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	UserID   uint64 `json:"user_id,omitempty"`
	Locked   bool   `json:"locked,omitempty"`
	RPM      int    `json:"rpm,omitempty"`
	APIKey   string `json:"-"`
}
