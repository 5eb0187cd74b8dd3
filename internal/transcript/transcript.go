// Package transcript assembles protocol conversation messages into the
// engine's ordered transcript.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kalambet/intelapi/internal/engine"
	"github.com/kalambet/intelapi/internal/protocol"
)

// ErrInvalidMessageRole is returned for messages with an unknown role and
// for tool messages without a tool_call_id.
var ErrInvalidMessageRole = errors.New("invalid message role")

// Build converts every message except the last into transcript entries, in
// message order. The last message is the live turn; see LivePrompt. The
// first invalid message aborts the build.
func Build(messages []protocol.Message, tools []protocol.Tool) (engine.Transcript, error) {
	if len(messages) == 0 {
		return engine.Transcript{}, nil
	}

	var definitions []engine.ToolDefinition
	if tools != nil {
		definitions = ToolDefinitions(tools)
	}

	history := messages[:len(messages)-1]
	entries := make([]engine.Entry, 0, len(history))
	for i, m := range history {
		entry, err := buildEntry(m, definitions)
		if err != nil {
			return engine.Transcript{}, fmt.Errorf("message %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return engine.Transcript{Entries: entries}, nil
}

func buildEntry(m protocol.Message, definitions []engine.ToolDefinition) (engine.Entry, error) {
	switch m.Role {
	case "user":
		return &engine.Prompt{Segments: textSegments(m.Text())}, nil
	case "assistant":
		var segs []engine.Segment
		if text := m.Text(); text != "" {
			segs = append(segs, engine.TextSegment{Content: text})
		}
		for _, tc := range m.ToolCalls {
			segs = append(segs, engine.ToolCallSegment{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if len(segs) == 0 {
			segs = textSegments("")
		}
		return &engine.Response{Segments: segs}, nil
	case "tool":
		if m.ToolCallID == nil {
			return nil, fmt.Errorf("%w: tool message without tool_call_id", ErrInvalidMessageRole)
		}
		return &engine.ToolResult{ID: *m.ToolCallID, Segments: textSegments(m.Text())}, nil
	case "system":
		return &engine.Instructions{
			Segments:        textSegments(m.Text()),
			ToolDefinitions: definitions,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMessageRole, m.Role)
	}
}

func textSegments(s string) []engine.Segment {
	return []engine.Segment{engine.TextSegment{Content: s}}
}

// LivePrompt returns the content of the last message, or "".
func LivePrompt(messages []protocol.Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Text()
}

// ToolDefinitions converts a tool catalogue into engine tool definitions.
// Parameters are re-serialized compactly; absent or unserializable
// parameters become "{}".
func ToolDefinitions(tools []protocol.Tool) []engine.ToolDefinition {
	defs := make([]engine.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		def := engine.ToolDefinition{
			Name:        t.Function.Name,
			InputSchema: inputSchema(t.Function.Parameters),
		}
		if t.Function.Description != nil {
			def.Description = *t.Function.Description
		}
		defs = append(defs, def)
	}
	return defs
}

func inputSchema(params json.RawMessage) string {
	if len(params) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, params); err != nil {
		return "{}"
	}
	return buf.String()
}
