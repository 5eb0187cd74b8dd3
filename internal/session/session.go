// Package session owns the lifecycle of one chat/completions request: model
// resolution, transcript and option assembly, engine invocation and shaping
// of the result into protocol chunks.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kalambet/intelapi/internal/engine"
	"github.com/kalambet/intelapi/internal/protocol"
	"github.com/kalambet/intelapi/internal/schema"
	"github.com/kalambet/intelapi/internal/transcript"
)

// Session is one request's generation state. It is read-only after New and
// must not be shared between requests.
type Session struct {
	model      Model
	chat       bool
	stream     bool
	prompt     string
	transcript engine.Transcript
	tools      []engine.ToolDefinition
	options    engine.Options
	format     *responseFormat
}

// responseFormat is a json_schema response format. missing is set when the
// format carried no schema body; that is reported when generating.
type responseFormat struct {
	raw     json.RawMessage
	node    schema.Node
	schema  *engine.GenerationSchema
	missing bool
}

// New validates req against the catalog and builds its session. Every
// returned error is a *RequestError.
func New(catalog *Catalog, req *protocol.ChatRequest) (*Session, error) {
	name := ModelBase
	if req.Model != nil {
		name = *req.Model
	}
	model, ok := catalog.Lookup(name)
	if !ok {
		return nil, requestError(InvalidModel, fmt.Errorf("unknown model %q", name))
	}

	s := &Session{model: model, stream: req.IsStream()}

	tools, err := selectTools(req.Tools, req.ToolChoice)
	if err != nil {
		return nil, requestError(NonConformingBody, err)
	}

	switch {
	case req.Messages != nil:
		tr, err := transcript.Build(req.Messages, tools)
		if err != nil {
			if errors.Is(err, transcript.ErrInvalidMessageRole) {
				return nil, requestError(InvalidMessageRole, err)
			}
			return nil, requestError(NonConformingBody, err)
		}
		s.chat = true
		s.transcript = tr
		s.prompt = transcript.LivePrompt(req.Messages)
	case req.Prompt != nil:
		s.prompt = *req.Prompt
	default:
		return nil, ErrNoPromptOrMessages
	}

	if len(tools) > 0 {
		s.tools = transcript.ToolDefinitions(tools)
	}
	s.options = options(req)

	if s.format, err = parseResponseFormat(req.ResponseFormat); err != nil {
		return nil, requestError(NonConformingBody, err)
	}
	return s, nil
}

// Model returns the requested model name.
func (s *Session) Model() string { return s.model.Name }

// IsChat reports whether the request used messages rather than a prompt.
func (s *Session) IsChat() bool { return s.chat }

// IsStream reports whether the client asked for a streamed response.
func (s *Session) IsStream() bool { return s.stream }

// IsStructured reports whether a json_schema response format was requested.
func (s *Session) IsStructured() bool { return s.format != nil }

// Mode returns "chat" or "completion".
func (s *Session) Mode() string {
	if s.chat {
		return "chat"
	}
	return "completion"
}

func (s *Session) engineRequest() engine.Request {
	req := engine.Request{
		Transcript: s.transcript,
		Prompt:     s.prompt,
		Tools:      s.tools,
		Options:    s.options,
	}
	if s.format != nil {
		req.Schema = s.format.schema
	}
	return req
}

// selectTools applies tool_choice to the tool catalogue.
func selectTools(tools []protocol.Tool, choice *protocol.ToolChoice) ([]protocol.Tool, error) {
	for _, t := range tools {
		if t.Function.Name == "" {
			return nil, errors.New("tool without a function name")
		}
		if len(bytes.TrimSpace(t.Function.Parameters)) == 0 {
			continue
		}
		if _, err := schema.ParseTool(t.Function.Name, t.Function.Parameters); err != nil {
			return nil, err
		}
	}

	if choice == nil {
		return tools, nil
	}
	if choice.Function != "" {
		for _, t := range tools {
			if t.Function.Name == choice.Function {
				return []protocol.Tool{t}, nil
			}
		}
		return nil, fmt.Errorf("tool_choice names unknown function %q", choice.Function)
	}
	switch choice.Mode {
	case protocol.ToolChoiceAuto, protocol.ToolChoiceRequired:
		return tools, nil
	case protocol.ToolChoiceNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tool_choice %q", choice.Mode)
	}
}

// options derives generation options. top_p takes precedence over top_k;
// temperature and max_tokens pass through unclamped.
func options(req *protocol.ChatRequest) engine.Options {
	opts := engine.Options{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	switch {
	case req.TopP != nil:
		opts.Sampling = &engine.Sampling{
			Mode:      engine.SamplingProbabilityThreshold,
			Threshold: *req.TopP,
			Seed:      req.Seed,
		}
	case req.TopK != nil:
		opts.Sampling = &engine.Sampling{
			Mode: engine.SamplingTopK,
			TopK: *req.TopK,
			Seed: req.Seed,
		}
	}
	return opts
}

func parseResponseFormat(rf *protocol.ResponseFormat) (*responseFormat, error) {
	if rf == nil {
		return nil, nil
	}
	switch rf.Type {
	case "", protocol.FormatText:
		return nil, nil
	case protocol.FormatJSONSchema:
	default:
		return nil, fmt.Errorf("unsupported response_format type %q", rf.Type)
	}

	js := rf.JSONSchema
	if js == nil || isNull(js.Schema) {
		return &responseFormat{missing: true}, nil
	}
	node, err := schema.Parse(js.Schema)
	if err != nil {
		return nil, err
	}
	compiled, err := schema.Compile(node, schema.ResponseScope(js.Name))
	if err != nil {
		return nil, err
	}
	return &responseFormat{raw: js.Schema, node: node, schema: compiled}, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
