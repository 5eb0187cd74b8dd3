package engine

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewGenerationSchema_RejectsDuplicateNames(t *testing.T) {
	child := &GenerationSchema{Kind: KindObject, Name: "dup", Properties: []Property{
		{Name: "x", Schema: &GenerationSchema{Kind: KindString}},
	}}
	root := &GenerationSchema{Kind: KindObject, Name: "dup", Properties: []Property{
		{Name: "child", Schema: child},
	}}
	_, err := NewGenerationSchema(root)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
}

func TestNewGenerationSchema_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		schema *GenerationSchema
	}{
		{"nil", nil},
		{"unnamed object", &GenerationSchema{Kind: KindObject}},
		{"array without items", &GenerationSchema{Kind: KindArray}},
		{"duplicate property", &GenerationSchema{Kind: KindObject, Name: "o", Properties: []Property{
			{Name: "a", Schema: &GenerationSchema{Kind: KindString}},
			{Name: "a", Schema: &GenerationSchema{Kind: KindString}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGenerationSchema(tt.schema); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGenerationSchema_JSONSchema(t *testing.T) {
	root := &GenerationSchema{
		Kind:        KindObject,
		Name:        "weather_schema",
		Description: "a report",
		Properties: []Property{
			{Name: "unit", Schema: &GenerationSchema{Kind: KindString, Guides: []Guide{AnyOf("c", "f")}}},
			{Name: "temp", Schema: &GenerationSchema{Kind: KindInteger, Guides: []Guide{Minimum(-50), Maximum(60)}}},
			{Name: "tags", Optional: true, Schema: &GenerationSchema{Kind: KindArray, Items: &GenerationSchema{Kind: KindString}}},
		},
	}
	if _, err := NewGenerationSchema(root); err != nil {
		t.Fatalf("NewGenerationSchema: %v", err)
	}

	got, err := json.Marshal(root.JSONSchema())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"object","title":"weather_schema","description":"a report",` +
		`"properties":{"unit":{"type":"string","enum":["c","f"]},` +
		`"temp":{"type":"integer","minimum":-50,"maximum":60},` +
		`"tags":{"type":"array","items":{"type":"string"}}},` +
		`"required":["unit","temp"],"additionalProperties":false}`
	if string(got) != want {
		t.Errorf("JSONSchema =\n%s\nwant\n%s", got, want)
	}
}
