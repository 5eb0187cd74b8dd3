package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// GeneratedContent is structured model output. It wraps a decoded JSON value
// and exposes typed accessors that report whether the value has that shape.
// The zero value holds nothing and every accessor fails on it.
type GeneratedContent struct {
	value any
	valid bool
}

// ParseContent decodes a complete JSON document.
func ParseContent(data []byte) (GeneratedContent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return GeneratedContent{}, fmt.Errorf("decoding generated content: %w", err)
	}
	return GeneratedContent{value: v, valid: true}, nil
}

// NewContent wraps an already decoded JSON value. Numbers may be json.Number,
// float64 or any Go integer type.
func NewContent(v any) GeneratedContent {
	return GeneratedContent{value: v, valid: true}
}

// IsZero reports whether c holds no value.
func (c GeneratedContent) IsZero() bool {
	return !c.valid
}

// Value returns the underlying decoded JSON value.
func (c GeneratedContent) Value() any {
	return c.value
}

// IsObject reports whether c is a JSON object.
func (c GeneratedContent) IsObject() bool {
	_, ok := c.value.(map[string]any)
	return c.valid && ok
}

// Property returns the named member of an object.
func (c GeneratedContent) Property(name string) (GeneratedContent, bool) {
	m, ok := c.value.(map[string]any)
	if !c.valid || !ok {
		return GeneratedContent{}, false
	}
	v, ok := m[name]
	if !ok {
		return GeneratedContent{}, false
	}
	return GeneratedContent{value: v, valid: true}, true
}

// AsString returns c as a string.
func (c GeneratedContent) AsString() (string, bool) {
	s, ok := c.value.(string)
	return s, c.valid && ok
}

// AsInt returns c as an integer. Numbers with a fractional part do not qualify.
func (c GeneratedContent) AsInt() (int64, bool) {
	if !c.valid {
		return 0, false
	}
	switch n := c.value.(type) {
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// AsFloat returns c as a floating point number.
func (c GeneratedContent) AsFloat() (float64, bool) {
	if !c.valid {
		return 0, false
	}
	switch n := c.value.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// AsBool returns c as a boolean.
func (c GeneratedContent) AsBool() (bool, bool) {
	b, ok := c.value.(bool)
	return b, c.valid && ok
}

// Elements returns the members of an array.
func (c GeneratedContent) Elements() ([]GeneratedContent, bool) {
	arr, ok := c.value.([]any)
	if !c.valid || !ok {
		return nil, false
	}
	out := make([]GeneratedContent, len(arr))
	for i, v := range arr {
		out[i] = GeneratedContent{value: v, valid: true}
	}
	return out, true
}

// Strings returns c as an array of strings.
func (c GeneratedContent) Strings() ([]string, bool) {
	return arrayOf(c, GeneratedContent.AsString)
}

// Ints returns c as an array of integers.
func (c GeneratedContent) Ints() ([]int64, bool) {
	return arrayOf(c, GeneratedContent.AsInt)
}

// Floats returns c as an array of numbers.
func (c GeneratedContent) Floats() ([]float64, bool) {
	return arrayOf(c, GeneratedContent.AsFloat)
}

// Bools returns c as an array of booleans.
func (c GeneratedContent) Bools() ([]bool, bool) {
	return arrayOf(c, GeneratedContent.AsBool)
}

func arrayOf[T any](c GeneratedContent, get func(GeneratedContent) (T, bool)) ([]T, bool) {
	elems, ok := c.Elements()
	if !ok {
		return nil, false
	}
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		v, ok := get(e)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
