package engine

import (
	"context"
	"errors"
)

// Engine is a constrained text-generation backend. Implementations treat
// the transcript as read-only and never retain a Request after returning.
type Engine interface {
	// Respond runs one blocking generation.
	Respond(ctx context.Context, req Request) (Generation, error)

	// Stream runs a generation and calls onSnapshot with each cumulative
	// snapshot. If onSnapshot returns an error the stream is abandoned and
	// that error is returned.
	Stream(ctx context.Context, req Request, onSnapshot func(Generation) error) error
}

// Backend is an Engine whose models can be inspected and provisioned at startup.
type Backend interface {
	Engine

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string
	Total     int64
	Completed int64
}

var (
	// ErrExceededContextWindow is returned when prompt plus output do not fit
	// the model's context window.
	ErrExceededContextWindow = errors.New("exceeded context window size")

	// ErrGuardrailViolation is returned when input or output is blocked by a
	// content-safety guardrail.
	ErrGuardrailViolation = errors.New("guardrail violation")
)
