package transcript

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kalambet/intelapi/internal/engine"
	"github.com/kalambet/intelapi/internal/protocol"
)

func msg(role, content string) protocol.Message {
	return protocol.Message{Role: role, Content: protocol.NewContent(content)}
}

func TestBuild_ExcludesLastMessage(t *testing.T) {
	tr, err := Build([]protocol.Message{
		msg("system", "sys"),
		msg("user", "hi"),
		msg("assistant", "yo"),
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tr.Len() != 2 {
		t.Fatalf("entries = %d, want 2", tr.Len())
	}
	ins, ok := tr.Entries[0].(*engine.Instructions)
	if !ok || engine.Text(ins.Segments) != "sys" {
		t.Errorf("entry 0 = %#v, want Instructions(sys)", tr.Entries[0])
	}
	p, ok := tr.Entries[1].(*engine.Prompt)
	if !ok || engine.Text(p.Segments) != "hi" {
		t.Errorf("entry 1 = %#v, want Prompt(hi)", tr.Entries[1])
	}
}

func TestBuild_ToolMessageWithoutID(t *testing.T) {
	_, err := Build([]protocol.Message{
		msg("tool", "x"),
		msg("user", "next"),
	}, nil)
	if !errors.Is(err, ErrInvalidMessageRole) {
		t.Fatalf("err = %v, want ErrInvalidMessageRole", err)
	}
}

func TestBuild_UnknownRole(t *testing.T) {
	_, err := Build([]protocol.Message{
		msg("user", "a"),
		msg("developer", "b"),
		msg("user", "c"),
	}, nil)
	if !errors.Is(err, ErrInvalidMessageRole) {
		t.Fatalf("err = %v, want ErrInvalidMessageRole", err)
	}
}

func TestBuild_UnknownRoleInLastMessageIgnored(t *testing.T) {
	tr, err := Build([]protocol.Message{msg("user", "a"), msg("developer", "b")}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tr.Len() != 1 {
		t.Errorf("entries = %d, want 1", tr.Len())
	}
}

func TestBuild_AssistantSegments(t *testing.T) {
	call := protocol.ToolCall{ID: "call_1", Type: "function", Function: protocol.ToolCallFunction{Name: "f", Arguments: `{"a":1}`}}
	id := "call_1"
	tr, err := Build([]protocol.Message{
		{Role: "assistant", ToolCalls: []protocol.ToolCall{call}},
		{Role: "assistant", Content: protocol.NewContent("text"), ToolCalls: []protocol.ToolCall{call}},
		{Role: "assistant"},
		{Role: "tool", ToolCallID: &id, Content: protocol.NewContent("42")},
		msg("user", "live"),
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	onlyCalls := tr.Entries[0].(*engine.Response).Segments
	if len(onlyCalls) != 1 {
		t.Fatalf("tool-call-only response has %d segments, want 1", len(onlyCalls))
	}
	seg, ok := onlyCalls[0].(engine.ToolCallSegment)
	if !ok || seg.ID != "call_1" || seg.Name != "f" || seg.Arguments != `{"a":1}` {
		t.Errorf("segment = %#v", onlyCalls[0])
	}

	both := tr.Entries[1].(*engine.Response).Segments
	if len(both) != 2 {
		t.Fatalf("text+call response has %d segments, want 2", len(both))
	}
	if _, ok := both[0].(engine.TextSegment); !ok {
		t.Errorf("first segment = %T, want TextSegment", both[0])
	}

	empty := tr.Entries[2].(*engine.Response).Segments
	if len(empty) != 1 || empty[0] != (engine.TextSegment{}) {
		t.Errorf("empty response segments = %#v", empty)
	}

	result := tr.Entries[3].(*engine.ToolResult)
	if result.ID != "call_1" || engine.Text(result.Segments) != "42" {
		t.Errorf("tool result = %#v", result)
	}
}

func TestBuild_SystemCarriesToolDefinitions(t *testing.T) {
	desc := "weather lookup"
	tools := []protocol.Tool{
		{Type: "function", Function: protocol.ToolFunction{Name: "get_weather", Description: &desc, Parameters: json.RawMessage(`{ "type": "object" }`)}},
		{Type: "function", Function: protocol.ToolFunction{Name: "noop"}},
	}
	tr, err := Build([]protocol.Message{msg("system", "sys"), msg("user", "hi")}, tools)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defs := tr.Entries[0].(*engine.Instructions).ToolDefinitions
	if len(defs) != 2 {
		t.Fatalf("definitions = %d, want 2", len(defs))
	}
	if defs[0].Description != "weather lookup" || defs[0].InputSchema != `{"type":"object"}` {
		t.Errorf("def 0 = %+v", defs[0])
	}
	if defs[1].Description != "" || defs[1].InputSchema != "{}" {
		t.Errorf("def 1 = %+v", defs[1])
	}
}

func TestLivePrompt(t *testing.T) {
	if got := LivePrompt(nil); got != "" {
		t.Errorf("LivePrompt(nil) = %q", got)
	}
	if got := LivePrompt([]protocol.Message{msg("user", "a"), {Role: "user"}}); got != "" {
		t.Errorf("LivePrompt(no content) = %q", got)
	}
	if got := LivePrompt([]protocol.Message{msg("user", "a"), msg("user", "b")}); got != "b" {
		t.Errorf("LivePrompt = %q, want b", got)
	}
}
