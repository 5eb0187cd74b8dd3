package schema

import (
	"encoding/json"
	"testing"

	"github.com/kalambet/intelapi/internal/engine"
)

func mustParse(t *testing.T, raw string) Node {
	t.Helper()
	node, err := Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return node
}

func TestToEngine_OptionalFollowsRequired(t *testing.T) {
	node := mustParse(t, `{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"string"}},"required":["a"]}`)
	s := ToEngine(node, ResponseScope(""))

	if s.Name != "response_schema" {
		t.Errorf("name = %q", s.Name)
	}
	if s.Properties[0].Optional {
		t.Error("required property a encoded as optional")
	}
	if !s.Properties[1].Optional {
		t.Error("property b absent from required encoded as mandatory")
	}
}

func TestToEngine_AbsentRequiredMeansAllOptional(t *testing.T) {
	node := mustParse(t, `{"type":"object","properties":{"a":{"type":"string"}}}`)
	s := ToEngine(node, "x_schema")
	if !s.Properties[0].Optional {
		t.Error("property encoded as mandatory without a required list")
	}
}

func TestToEngine_Guides(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  engine.Kind
		kinds []engine.GuideKind
	}{
		{"string no enum", `{"type":"string"}`, engine.KindString, nil},
		{"string enum", `{"type":"string","enum":["a"]}`, engine.KindString, []engine.GuideKind{engine.GuideAnyOf}},
		{"integer min", `{"type":"integer","minimum":1}`, engine.KindInteger, []engine.GuideKind{engine.GuideMinimum}},
		{"integer both", `{"type":"integer","minimum":1,"maximum":5}`, engine.KindInteger, []engine.GuideKind{engine.GuideMinimum, engine.GuideMaximum}},
		{"number max", `{"type":"number","maximum":2.5}`, engine.KindNumber, []engine.GuideKind{engine.GuideMaximum}},
		{"boolean", `{"type":"boolean"}`, engine.KindBoolean, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ToEngine(mustParse(t, tt.raw), "x_schema")
			if s.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", s.Kind, tt.kind)
			}
			if len(s.Guides) != len(tt.kinds) {
				t.Fatalf("guides = %+v, want kinds %v", s.Guides, tt.kinds)
			}
			for i, k := range tt.kinds {
				if s.Guides[i].Kind != k {
					t.Errorf("guide %d kind = %v, want %v", i, s.Guides[i].Kind, k)
				}
			}
		})
	}
}

func TestToEngine_NestedScopes(t *testing.T) {
	node := mustParse(t, `{"type":"object","properties":{
		"owner":{"type":"object","description":"who","properties":{"name":{"type":"string"}}},
		"lines":{"type":"array","items":{"type":"object","properties":{"sku":{"type":"string"}}}}
	}}`)
	s, err := Compile(node, ToolScope("order"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if s.Name != "order_parameters_schema" {
		t.Errorf("root name = %q", s.Name)
	}
	owner := s.Properties[0]
	if owner.Schema.Name != "order_parameters_property_owner_schema" {
		t.Errorf("owner name = %q", owner.Schema.Name)
	}
	if owner.Description != "who" {
		t.Errorf("owner description = %q", owner.Description)
	}
	items := s.Properties[1].Schema.Items
	if items.Name != "order_parameters_property_lines_items_schema" {
		t.Errorf("items name = %q", items.Name)
	}
}

func TestChildScope(t *testing.T) {
	if got := childScope("x_schema", "property_k"); got != "x_property_k_schema" {
		t.Errorf("childScope = %q", got)
	}
	if got := childScope("x_schema", "items"); got != "x_items_schema" {
		t.Errorf("childScope = %q", got)
	}
}

func TestParseTool(t *testing.T) {
	s, err := ParseTool("get_weather", json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`))
	if err != nil {
		t.Fatalf("ParseTool: %v", err)
	}
	if s.Name != "get_weather_parameters_schema" {
		t.Errorf("name = %q", s.Name)
	}

	if _, err := ParseTool("f", json.RawMessage(`{"type":"string"}`)); err == nil {
		t.Error("expected error for non-object parameters")
	}
}
