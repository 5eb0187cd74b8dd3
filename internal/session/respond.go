package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kalambet/intelapi/internal/engine"
	"github.com/kalambet/intelapi/internal/schema"
)

// Respond runs one blocking generation. Generation errors are folded into
// the returned chunk's finish reason.
func (s *Session) Respond(ctx context.Context) Chunk {
	if s.format != nil && s.format.missing {
		return failureChunk(ErrMissingResponseSchema)
	}

	gen, err := s.model.Engine.Respond(ctx, s.engineRequest())
	if err != nil {
		return failureChunk(err)
	}

	content, err := s.render(gen)
	if err != nil {
		return failureChunk(err)
	}
	if s.format != nil {
		s.checkConformance(content)
	}

	calls := wireToolCalls(gen.ToolCalls, 0, false)
	if len(calls) == 0 {
		return Chunk{Content: &content, FinishReason: FinishStop}
	}
	c := Chunk{FinishReason: FinishToolCalls, ToolCalls: calls}
	if content != "" {
		c.Content = &content
	}
	return c
}

// checkConformance logs when a structured document does not satisfy the
// response schema. The document is still returned to the client.
func (s *Session) checkConformance(doc string) {
	if err := schema.Validate(s.format.raw, []byte(doc)); err != nil {
		slog.Warn("structured output does not match response schema", "model", s.model.Name, "error", err)
	}
}

// render returns the text of gen, or for structured output the materialized
// document serialized whole.
func (s *Session) render(gen engine.Generation) (string, error) {
	if s.format == nil {
		return gen.Text, nil
	}
	content := gen.Content
	if content.IsZero() {
		content, _ = engine.ParsePartial(gen.Text)
	}
	doc, err := json.Marshal(schema.Materialize(content, s.format.node))
	if err != nil {
		return "", fmt.Errorf("encoding structured output: %w", err)
	}
	return string(doc), nil
}
