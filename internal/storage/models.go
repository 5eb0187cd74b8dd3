package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Generation is the metadata of one served generation. Prompts and
// generated content are never stored.
type Generation struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Model        string    `json:"model"`
	Mode         string    `json:"mode"` // "chat" or "completion"
	Stream       bool      `json:"stream"`
	Structured   bool      `json:"structured"`
	FinishReason string    `json:"finish_reason"`
	DurationMs   int64     `json:"duration_ms"`
	ToolCalls    int       `json:"tool_calls"`
}
