package session

import (
	"errors"
	"fmt"

	"github.com/kalambet/intelapi/internal/engine"
	"github.com/kalambet/intelapi/internal/protocol"
)

// FinishReason tells the client why a generation ended.
type FinishReason string

const (
	FinishNone          FinishReason = ""
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
	FinishToolCalls     FinishReason = "tool_calls"
)

// Wire returns r as a nullable protocol value.
func (r FinishReason) Wire() *string {
	if r == FinishNone {
		return nil
	}
	s := string(r)
	return &s
}

// Chunk is one shaped generation result: the whole response when not
// streaming, or one delta when streaming.
type Chunk struct {
	Content      *string
	FinishReason FinishReason
	ToolCalls    []protocol.ToolCall
}

// ErrMissingResponseSchema is reported at generation time when a json_schema
// response format carries no schema.
var ErrMissingResponseSchema = errors.New("json_schema response format requires a schema")

// Classify maps a generation error onto a finish reason. The message is set
// only for FinishError and is meant to be surfaced as content.
func Classify(err error) (FinishReason, string) {
	switch {
	case errors.Is(err, engine.ErrExceededContextWindow):
		return FinishLength, ""
	case errors.Is(err, engine.ErrGuardrailViolation):
		return FinishContentFilter, ""
	default:
		return FinishError, fmt.Sprintf("generation failed: %v", err)
	}
}

func failureChunk(err error) Chunk {
	reason, msg := Classify(err)
	c := Chunk{FinishReason: reason}
	if msg != "" {
		c.Content = &msg
	}
	return c
}

// wireToolCalls converts engine tool calls. Streaming deltas number calls
// from offset; non-streaming calls carry no index.
func wireToolCalls(calls []engine.ToolCall, offset int, indexed bool) []protocol.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]protocol.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = protocol.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: protocol.ToolCallFunction{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		}
		if indexed {
			idx := offset + i
			out[i].Index = &idx
		}
	}
	return out
}
