package engine

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the primitive type of a GenerationSchema node.
type Kind int

const (
	KindString Kind = iota + 1
	KindInteger
	KindNumber
	KindBoolean
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// GuideKind identifies a generation guide.
type GuideKind int

const (
	GuideMinimum GuideKind = iota + 1
	GuideMaximum
	GuideAnyOf
)

// Guide constrains the values a schema node may take.
type Guide struct {
	Kind   GuideKind
	Value  float64  // GuideMinimum, GuideMaximum
	Values []string // GuideAnyOf
}

// Minimum returns a lower-bound guide.
func Minimum(v float64) Guide { return Guide{Kind: GuideMinimum, Value: v} }

// Maximum returns an upper-bound guide.
func Maximum(v float64) Guide { return Guide{Kind: GuideMaximum, Value: v} }

// AnyOf returns an allowed-values guide.
func AnyOf(values ...string) Guide { return Guide{Kind: GuideAnyOf, Values: values} }

// GenerationSchema is the engine's constrained-generation schema. Object
// nodes must carry a Name that is unique within the whole tree.
type GenerationSchema struct {
	Kind        Kind
	Name        string
	Description string
	Guides      []Guide
	Items       *GenerationSchema
	Properties  []Property
}

// Property is one field of an object schema.
type Property struct {
	Name        string
	Description string
	Schema      *GenerationSchema
	Optional    bool
}

// SchemaError reports a schema the engine cannot accept.
type SchemaError struct {
	Name   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Name == "" {
		return "generation schema: " + e.Reason
	}
	return fmt.Sprintf("generation schema %q: %s", e.Name, e.Reason)
}

// NewGenerationSchema validates root and returns it. Every object node must
// be named and names must not repeat.
func NewGenerationSchema(root *GenerationSchema) (*GenerationSchema, error) {
	if root == nil {
		return nil, &SchemaError{Reason: "missing root"}
	}
	seen := make(map[string]bool)
	if err := validateNode(root, seen); err != nil {
		return nil, err
	}
	return root, nil
}

func validateNode(s *GenerationSchema, seen map[string]bool) error {
	switch s.Kind {
	case KindObject:
		if s.Name == "" {
			return &SchemaError{Reason: "object schema without a name"}
		}
		if seen[s.Name] {
			return &SchemaError{Name: s.Name, Reason: "duplicate schema name"}
		}
		seen[s.Name] = true
		props := make(map[string]bool, len(s.Properties))
		for _, p := range s.Properties {
			if props[p.Name] {
				return &SchemaError{Name: s.Name, Reason: fmt.Sprintf("duplicate property %q", p.Name)}
			}
			props[p.Name] = true
			if p.Schema == nil {
				return &SchemaError{Name: s.Name, Reason: fmt.Sprintf("property %q has no schema", p.Name)}
			}
			if err := validateNode(p.Schema, seen); err != nil {
				return err
			}
		}
	case KindArray:
		if s.Items == nil {
			return &SchemaError{Name: s.Name, Reason: "array schema without items"}
		}
		return validateNode(s.Items, seen)
	case KindString, KindInteger, KindNumber, KindBoolean:
	default:
		return &SchemaError{Name: s.Name, Reason: "unknown kind " + s.Kind.String()}
	}
	return nil
}

// JSONSchema renders s as a JSON Schema document. Object properties keep
// their declared order.
func (s *GenerationSchema) JSONSchema() *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	out.Set("type", s.Kind.String())
	if s.Name != "" && s.Kind == KindObject {
		out.Set("title", s.Name)
	}
	if s.Description != "" {
		out.Set("description", s.Description)
	}
	for _, g := range s.Guides {
		switch g.Kind {
		case GuideMinimum:
			out.Set("minimum", guideNumber(s.Kind, g.Value))
		case GuideMaximum:
			out.Set("maximum", guideNumber(s.Kind, g.Value))
		case GuideAnyOf:
			out.Set("enum", g.Values)
		}
	}
	switch s.Kind {
	case KindArray:
		out.Set("items", s.Items.JSONSchema())
	case KindObject:
		props := orderedmap.New[string, any]()
		required := []string{}
		for _, p := range s.Properties {
			child := p.Schema.JSONSchema()
			if p.Description != "" {
				child.Set("description", p.Description)
			}
			props.Set(p.Name, child)
			if !p.Optional {
				required = append(required, p.Name)
			}
		}
		out.Set("properties", props)
		out.Set("required", required)
		out.Set("additionalProperties", false)
	}
	return out
}

func guideNumber(k Kind, v float64) any {
	if k == KindInteger {
		return int64(v)
	}
	return v
}
