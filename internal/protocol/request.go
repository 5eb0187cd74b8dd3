// Package protocol defines the JSON shapes of the OpenAI-compatible
// chat/completions protocol.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ChatRequest is the body of POST /api/v1/chat/completions. Pointer and nil
// slice fields distinguish absent values from zero values.
type ChatRequest struct {
	Messages       []Message       `json:"messages,omitempty"`
	Prompt         *string         `json:"prompt,omitempty"`
	Model          *string         `json:"model,omitempty"`
	Stream         *bool           `json:"stream,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	Seed           *uint64         `json:"seed,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	TopK           *int            `json:"top_k,omitempty"`
	Tools          []Tool          `json:"tools,omitempty"`
	ToolChoice     *ToolChoice     `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// IsStream reports whether the client asked for a streamed response.
func (r *ChatRequest) IsStream() bool {
	return r.Stream != nil && *r.Stream
}

// Message is one conversation message.
type Message struct {
	Role       string     `json:"role"`
	Content    *Content   `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID *string    `json:"tool_call_id,omitempty"`
	Name       *string    `json:"name,omitempty"`
}

// Text returns the message content, or "" when absent.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return string(*m.Content)
}

// HasContent reports whether the message carries content.
func (m Message) HasContent() bool {
	return m.Content != nil
}

// Content is message text. On the wire it is either a string or an array of
// content parts; text parts are concatenated and other parts ignored.
type Content string

// NewContent returns a pointer to s as Content.
func NewContent(s string) *Content {
	c := Content(s)
	return &c
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var parts []contentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("content parts: %w", err)
		}
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		*c = Content(b.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("content must be a string or an array of content parts")
	}
	*c = Content(s)
	return nil
}

// ToolCall is a function invocation. Index is set only on streaming deltas.
type ToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the called function. Arguments is a JSON string.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a function the model may call.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function. Parameters is a JSON Schema
// object.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Tool choice modes.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// ToolChoice is either a mode string or a named function.
type ToolChoice struct {
	Mode     string
	Function string
}

func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	var mode string
	if err := json.Unmarshal(data, &mode); err == nil {
		*tc = ToolChoice{Mode: mode}
		return nil
	}
	var named struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &named); err != nil {
		return errors.New("tool_choice must be a string or an object")
	}
	if named.Function.Name == "" {
		return errors.New("tool_choice object requires function.name")
	}
	*tc = ToolChoice{Function: named.Function.Name}
	return nil
}

func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	if tc.Function != "" {
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.Function},
		})
	}
	return json.Marshal(tc.Mode)
}

// Response format types.
const (
	FormatText       = "text"
	FormatJSONSchema = "json_schema"
)

// ResponseFormat selects plain text or schema-constrained JSON output.
type ResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

// JSONSchemaFormat carries a named response schema.
type JSONSchemaFormat struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Strict      *bool           `json:"strict,omitempty"`
}
