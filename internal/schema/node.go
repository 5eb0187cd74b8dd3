// Package schema converts JSON-Schema-like parameter and response-format
// descriptions into engine generation schemas, and materializes structured
// engine output back into JSON values guided by the original description.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// maxDepth bounds nesting of parsed schemas.
const maxDepth = 64

// Node is a parsed schema tree: *String, *Integer, *Number, *Boolean, *Array
// or *Object.
type Node interface {
	node()
	// Description returns the node's description, or "".
	Description() string
}

// String is a string schema, optionally restricted to Enum.
type String struct {
	Desc string
	Enum []string
}

// Integer is an integer schema with optional inclusive bounds.
type Integer struct {
	Desc    string
	Minimum *int64
	Maximum *int64
}

// Number is a floating point schema with optional inclusive bounds.
type Number struct {
	Desc    string
	Minimum *float64
	Maximum *float64
}

// Boolean is a boolean schema.
type Boolean struct {
	Desc string
}

// Array is an array schema whose elements follow Items.
type Array struct {
	Desc  string
	Items Node
}

// Object is an object schema. Properties keep declaration order.
type Object struct {
	Desc       string
	Properties []Property
	// Required is nil when the input carried no "required" list.
	Required []string
}

// Property is one named member of an Object.
type Property struct {
	Name string
	Node Node
}

func (*String) node()  {}
func (*Integer) node() {}
func (*Number) node()  {}
func (*Boolean) node() {}
func (*Array) node()   {}
func (*Object) node()  {}

func (n *String) Description() string  { return n.Desc }
func (n *Integer) Description() string { return n.Desc }
func (n *Number) Description() string  { return n.Desc }
func (n *Boolean) Description() string { return n.Desc }
func (n *Array) Description() string   { return n.Desc }
func (n *Object) Description() string  { return n.Desc }

// IsRequired reports whether name appears in the object's required list.
func (n *Object) IsRequired(name string) bool {
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

// SchemaError reports a malformed or unsupported schema. Path locates the
// offending node, e.g. "properties.items.items".
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "invalid schema: " + e.Reason
	}
	return fmt.Sprintf("invalid schema at %s: %s", e.Path, e.Reason)
}

type rawNode struct {
	Type        string                                          `json:"type"`
	Description string                                          `json:"description"`
	Enum        []string                                        `json:"enum"`
	Minimum     *json.Number                                    `json:"minimum"`
	Maximum     *json.Number                                    `json:"maximum"`
	Items       json.RawMessage                                 `json:"items"`
	Properties  *orderedmap.OrderedMap[string, json.RawMessage] `json:"properties"`
	Required    []string                                        `json:"required"`
}

// Parse decodes a JSON-Schema-like document.
func Parse(raw json.RawMessage) (Node, error) {
	return parse(raw, "", 0)
}

func parse(raw json.RawMessage, path string, depth int) (Node, error) {
	if depth > maxDepth {
		return nil, &SchemaError{Path: path, Reason: "schema nested too deeply"}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &SchemaError{Path: path, Reason: "missing schema"}
	}

	var rn rawNode
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rn); err != nil {
		return nil, &SchemaError{Path: path, Reason: err.Error()}
	}

	switch rn.Type {
	case "string":
		return &String{Desc: rn.Description, Enum: rn.Enum}, nil
	case "integer":
		n := &Integer{Desc: rn.Description}
		var err error
		if n.Minimum, err = intBound(rn.Minimum); err != nil {
			return nil, &SchemaError{Path: path, Reason: "minimum: " + err.Error()}
		}
		if n.Maximum, err = intBound(rn.Maximum); err != nil {
			return nil, &SchemaError{Path: path, Reason: "maximum: " + err.Error()}
		}
		return n, nil
	case "number":
		n := &Number{Desc: rn.Description}
		var err error
		if n.Minimum, err = floatBound(rn.Minimum); err != nil {
			return nil, &SchemaError{Path: path, Reason: "minimum: " + err.Error()}
		}
		if n.Maximum, err = floatBound(rn.Maximum); err != nil {
			return nil, &SchemaError{Path: path, Reason: "maximum: " + err.Error()}
		}
		return n, nil
	case "boolean":
		return &Boolean{Desc: rn.Description}, nil
	case "array":
		if len(rn.Items) == 0 {
			return nil, &SchemaError{Path: path, Reason: "array schema without items"}
		}
		items, err := parse(rn.Items, join(path, "items"), depth+1)
		if err != nil {
			return nil, err
		}
		return &Array{Desc: rn.Description, Items: items}, nil
	case "object":
		if rn.Properties == nil {
			return nil, &SchemaError{Path: path, Reason: "object schema without properties"}
		}
		obj := &Object{Desc: rn.Description, Required: rn.Required}
		for pair := rn.Properties.Oldest(); pair != nil; pair = pair.Next() {
			child, err := parse(pair.Value, join(path, "properties."+pair.Key), depth+1)
			if err != nil {
				return nil, err
			}
			obj.Properties = append(obj.Properties, Property{Name: pair.Key, Node: child})
		}
		return obj, nil
	case "":
		return nil, &SchemaError{Path: path, Reason: "missing type"}
	default:
		return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("unsupported type %q", rn.Type)}
	}
}

func intBound(n *json.Number) (*int64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s is not an integer", n.String())
	}
	return &v, nil
}

func floatBound(n *json.Number) (*float64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%s is not a number", n.String())
	}
	return &v, nil
}

func join(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}
