package schema

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/kalambet/intelapi/internal/engine"
)

// extraction is one typed attempt to pull a JSON value out of generated
// content. ok is false when the content does not have that shape.
type extraction func(c engine.GeneratedContent, node Node) (v any, ok bool)

// propertyExtractions are tried in order for each object property; the first
// success wins. It is filled in init because extractObject recurses into
// Materialize.
var propertyExtractions []extraction

func init() {
	propertyExtractions = []extraction{
		extractString,
		extractInt,
		extractFloat,
		extractBool,
		extractObject,
		extractObjectArray,
		extractStrings,
		extractInts,
		extractFloats,
		extractBools,
		extractArray,
	}
}

// primitiveArrayExtractions are tried before element-wise recursion for
// array nodes.
var primitiveArrayExtractions = []extraction{
	extractStrings,
	extractInts,
	extractFloats,
	extractBools,
}

// Materialize walks generated content guided by node and returns a value that
// encodes to JSON. Objects become insertion-ordered maps following the
// declared property order. Properties that cannot be extracted are omitted and
// unreadable scalars fall back to their zero value.
func Materialize(c engine.GeneratedContent, node Node) any {
	switch n := node.(type) {
	case *Object:
		out := orderedmap.New[string, any]()
		for _, p := range n.Properties {
			pc, ok := c.Property(p.Name)
			if !ok {
				continue
			}
			if v, ok := firstOf(propertyExtractions, pc, p.Node); ok {
				out.Set(p.Name, v)
			}
		}
		return out
	case *Array:
		if v, ok := firstOf(primitiveArrayExtractions, c, n); ok {
			return v
		}
		elems, ok := c.Elements()
		if !ok {
			return []any{}
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = Materialize(e, n.Items)
		}
		return out
	case *String:
		s, _ := c.AsString()
		return s
	case *Integer:
		i, _ := c.AsInt()
		return i
	case *Number:
		f, _ := c.AsFloat()
		return f
	case *Boolean:
		b, _ := c.AsBool()
		return b
	default:
		return nil
	}
}

func firstOf(attempts []extraction, c engine.GeneratedContent, node Node) (any, bool) {
	for _, attempt := range attempts {
		if v, ok := attempt(c, node); ok {
			return v, true
		}
	}
	return nil, false
}

func extractString(c engine.GeneratedContent, _ Node) (any, bool) { return c.AsString() }
func extractInt(c engine.GeneratedContent, _ Node) (any, bool)    { return c.AsInt() }
func extractFloat(c engine.GeneratedContent, _ Node) (any, bool)  { return c.AsFloat() }
func extractBool(c engine.GeneratedContent, _ Node) (any, bool)   { return c.AsBool() }

func extractStrings(c engine.GeneratedContent, _ Node) (any, bool) { return c.Strings() }
func extractInts(c engine.GeneratedContent, _ Node) (any, bool)    { return c.Ints() }
func extractFloats(c engine.GeneratedContent, _ Node) (any, bool)  { return c.Floats() }
func extractBools(c engine.GeneratedContent, _ Node) (any, bool)   { return c.Bools() }

func extractObject(c engine.GeneratedContent, node Node) (any, bool) {
	obj, ok := node.(*Object)
	if !ok || !c.IsObject() {
		return nil, false
	}
	return Materialize(c, obj), true
}

func extractObjectArray(c engine.GeneratedContent, node Node) (any, bool) {
	arr, ok := node.(*Array)
	if !ok {
		return nil, false
	}
	items, ok := arr.Items.(*Object)
	if !ok {
		return nil, false
	}
	elems, ok := c.Elements()
	if !ok {
		return nil, false
	}
	out := make([]any, 0, len(elems))
	for _, e := range elems {
		if !e.IsObject() {
			return nil, false
		}
		out = append(out, Materialize(e, items))
	}
	return out, true
}

// extractArray covers arrays the typed attempts miss, such as nested arrays.
func extractArray(c engine.GeneratedContent, node Node) (any, bool) {
	arr, ok := node.(*Array)
	if !ok {
		return nil, false
	}
	if _, ok := c.Elements(); !ok {
		return nil, false
	}
	return Materialize(c, arr), true
}
