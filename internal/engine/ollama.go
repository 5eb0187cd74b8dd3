package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/intelapi/internal/ollama"
)

// OllamaEngine adapts the internal/ollama.Client to the Engine interface for
// a single model.
type OllamaEngine struct {
	client *ollama.Client
	model  string
}

// NewOllamaEngine creates an OllamaEngine that generates with model.
func NewOllamaEngine(client *ollama.Client, model string) *OllamaEngine {
	return &OllamaEngine{client: client, model: model}
}

// Model returns the Ollama model name this engine generates with.
func (e *OllamaEngine) Model() string {
	return e.model
}

func (e *OllamaEngine) Respond(ctx context.Context, req Request) (Generation, error) {
	cr, err := e.chatRequest(req)
	if err != nil {
		return Generation{}, err
	}
	resp, err := e.client.Chat(ctx, cr)
	if err != nil {
		return Generation{}, mapError(err)
	}

	var acc accumulator
	acc.add(resp.Message)
	return acc.snapshot(req.Schema != nil), nil
}

func (e *OllamaEngine) Stream(ctx context.Context, req Request, onSnapshot func(Generation) error) error {
	cr, err := e.chatRequest(req)
	if err != nil {
		return err
	}

	var acc accumulator
	err = e.client.ChatStream(ctx, cr, func(chunk ollama.ChatResponse) error {
		if !acc.add(chunk.Message) {
			return nil
		}
		return onSnapshot(acc.snapshot(req.Schema != nil))
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{
				Status:    p.Status,
				Total:     p.Total,
				Completed: p.Completed,
			})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}

// chatRequest renders the transcript, live prompt, tools, options and schema
// into an Ollama chat request.
func (e *OllamaEngine) chatRequest(req Request) (ollama.ChatRequest, error) {
	cr := ollama.ChatRequest{
		Model:   e.model,
		Options: ollamaOptions(req.Options),
	}

	tools := req.Tools
	for _, entry := range req.Transcript.Entries {
		switch en := entry.(type) {
		case *Instructions:
			cr.Messages = append(cr.Messages, ollama.Message{Role: "system", Content: Text(en.Segments)})
			if len(req.Tools) == 0 {
				tools = append(tools, en.ToolDefinitions...)
			}
		case *Prompt:
			cr.Messages = append(cr.Messages, ollama.Message{Role: "user", Content: Text(en.Segments)})
		case *Response:
			msg := ollama.Message{Role: "assistant", Content: Text(en.Segments)}
			for _, seg := range en.Segments {
				if call, ok := seg.(ToolCallSegment); ok {
					msg.ToolCalls = append(msg.ToolCalls, ollama.ToolCall{
						ID: call.ID,
						Function: ollama.ToolCallFunction{
							Name:      call.Name,
							Arguments: rawObject(call.Arguments),
						},
					})
				}
			}
			cr.Messages = append(cr.Messages, msg)
		case *ToolResult:
			cr.Messages = append(cr.Messages, ollama.Message{
				Role:     "tool",
				Content:  Text(en.Segments),
				ToolName: toolName(req.Transcript, en.ID),
			})
		default:
			return ollama.ChatRequest{}, fmt.Errorf("unsupported transcript entry %T", entry)
		}
	}
	cr.Messages = append(cr.Messages, ollama.Message{Role: "user", Content: req.Prompt})

	for _, t := range tools {
		cr.Tools = append(cr.Tools, ollama.Tool{
			Type: "function",
			Function: ollama.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  rawObject(t.InputSchema),
			},
		})
	}

	if req.Schema != nil {
		cr.Format = req.Schema.JSONSchema()
	}
	return cr, nil
}

// toolName finds the function name of the tool call with the given id.
func toolName(t Transcript, id string) string {
	for _, entry := range t.Entries {
		resp, ok := entry.(*Response)
		if !ok {
			continue
		}
		for _, seg := range resp.Segments {
			if call, ok := seg.(ToolCallSegment); ok && call.ID == id {
				return call.Name
			}
		}
	}
	return ""
}

func ollamaOptions(o Options) *ollama.Options {
	if o.Sampling == nil && o.Temperature == nil && o.MaxTokens == nil {
		return nil
	}
	out := &ollama.Options{
		Temperature: o.Temperature,
		NumPredict:  o.MaxTokens,
	}
	if s := o.Sampling; s != nil {
		switch s.Mode {
		case SamplingProbabilityThreshold:
			p := s.Threshold
			out.TopP = &p
		case SamplingTopK:
			k := s.TopK
			out.TopK = &k
		}
		if s.Seed != nil {
			seed := int64(*s.Seed)
			out.Seed = &seed
		}
	}
	return out
}

// rawObject returns s as raw JSON when it is a valid document and an empty
// object otherwise.
func rawObject(s string) json.RawMessage {
	if s != "" && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return json.RawMessage("{}")
}

// mapError translates Ollama failures into the engine error taxonomy.
func mapError(err error) error {
	var msg string
	var se *ollama.StatusError
	var ste *ollama.StreamError
	switch {
	case errors.As(err, &se):
		msg = se.Message
	case errors.As(err, &ste):
		msg = ste.Message
	default:
		return err
	}
	if isContextWindowMessage(msg) {
		return fmt.Errorf("%w: %s", ErrExceededContextWindow, msg)
	}
	return err
}

func isContextWindowMessage(msg string) bool {
	m := strings.ToLower(msg)
	if !strings.Contains(m, "context") {
		return false
	}
	return strings.Contains(m, "length") || strings.Contains(m, "window") || strings.Contains(m, "exceed")
}

// accumulator folds Ollama's incremental messages into cumulative snapshots.
type accumulator struct {
	text  strings.Builder
	calls []ToolCall
}

// add appends msg and reports whether it changed the accumulated state.
func (a *accumulator) add(msg ollama.Message) bool {
	a.text.WriteString(msg.Content)
	for _, tc := range msg.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		args := "{}"
		if len(tc.Function.Arguments) > 0 {
			args = string(tc.Function.Arguments)
		}
		a.calls = append(a.calls, ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	return msg.Content != "" || len(msg.ToolCalls) > 0
}

func (a *accumulator) snapshot(structured bool) Generation {
	g := Generation{Text: a.text.String()}
	if len(a.calls) > 0 {
		g.ToolCalls = append([]ToolCall(nil), a.calls...)
	}
	if structured {
		if c, ok := ParsePartial(g.Text); ok {
			g.Content = c
		}
	}
	return g
}
