package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/intelapi/internal/engine"
)

const scopeSuffix = "_schema"

// ResponseScope names the root of a response-format schema. An empty name
// defaults to "response".
func ResponseScope(name string) string {
	if name == "" {
		name = "response"
	}
	return name + scopeSuffix
}

// ToolScope names the root of a tool's parameter schema.
func ToolScope(function string) string {
	return function + "_parameters" + scopeSuffix
}

// childScope derives the scope of a nested schema from its parent scope,
// e.g. ("order_schema", "property_items") gives "order_property_items_schema".
func childScope(parent, marker string) string {
	return strings.TrimSuffix(parent, scopeSuffix) + "_" + marker + scopeSuffix
}

// ToEngine converts node into an engine generation schema rooted at scope.
// Object schemas are named after their scope; nested scopes are derived
// deterministically so every object name in the tree is distinct.
func ToEngine(node Node, scope string) *engine.GenerationSchema {
	switch n := node.(type) {
	case *String:
		s := &engine.GenerationSchema{Kind: engine.KindString, Description: n.Desc}
		if n.Enum != nil {
			s.Guides = append(s.Guides, engine.AnyOf(n.Enum...))
		}
		return s
	case *Integer:
		s := &engine.GenerationSchema{Kind: engine.KindInteger, Description: n.Desc}
		if n.Minimum != nil {
			s.Guides = append(s.Guides, engine.Minimum(float64(*n.Minimum)))
		}
		if n.Maximum != nil {
			s.Guides = append(s.Guides, engine.Maximum(float64(*n.Maximum)))
		}
		return s
	case *Number:
		s := &engine.GenerationSchema{Kind: engine.KindNumber, Description: n.Desc}
		if n.Minimum != nil {
			s.Guides = append(s.Guides, engine.Minimum(*n.Minimum))
		}
		if n.Maximum != nil {
			s.Guides = append(s.Guides, engine.Maximum(*n.Maximum))
		}
		return s
	case *Boolean:
		return &engine.GenerationSchema{Kind: engine.KindBoolean, Description: n.Desc}
	case *Array:
		return &engine.GenerationSchema{
			Kind:        engine.KindArray,
			Description: n.Desc,
			Items:       ToEngine(n.Items, childScope(scope, "items")),
		}
	case *Object:
		s := &engine.GenerationSchema{Kind: engine.KindObject, Name: scope, Description: n.Desc}
		for _, p := range n.Properties {
			s.Properties = append(s.Properties, engine.Property{
				Name:        p.Name,
				Description: p.Node.Description(),
				Schema:      ToEngine(p.Node, childScope(scope, "property_"+p.Name)),
				Optional:    !n.IsRequired(p.Name),
			})
		}
		return s
	default:
		panic(fmt.Sprintf("schema: unknown node %T", node))
	}
}

// Compile converts node and validates the result against the engine's rules.
func Compile(node Node, scope string) (*engine.GenerationSchema, error) {
	s, err := engine.NewGenerationSchema(ToEngine(node, scope))
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", scope, err)
	}
	return s, nil
}

// ParseTool parses and compiles a tool's parameter schema. Tool parameters
// must be an object schema.
func ParseTool(function string, parameters json.RawMessage) (*engine.GenerationSchema, error) {
	node, err := Parse(parameters)
	if err != nil {
		return nil, fmt.Errorf("tool %s parameters: %w", function, err)
	}
	if _, ok := node.(*Object); !ok {
		return nil, fmt.Errorf("tool %s parameters: %w", function, &SchemaError{Reason: "expected an object schema"})
	}
	return Compile(node, ToolScope(function))
}
