package engine

import (
	"encoding/json"
	"testing"
)

func TestGeneratedContent_Accessors(t *testing.T) {
	c, err := ParseContent([]byte(`{"s":"x","i":42,"f":1.5,"b":true,"ss":["a","b"],"is":[1,2],"mixed":[1,"a"],"o":{"k":"v"}}`))
	if err != nil {
		t.Fatalf("ParseContent: %v", err)
	}
	if !c.IsObject() {
		t.Fatal("IsObject() = false")
	}

	prop := func(name string) GeneratedContent {
		t.Helper()
		p, ok := c.Property(name)
		if !ok {
			t.Fatalf("missing property %q", name)
		}
		return p
	}

	if s, ok := prop("s").AsString(); !ok || s != "x" {
		t.Errorf("s = %q, %v", s, ok)
	}
	if i, ok := prop("i").AsInt(); !ok || i != 42 {
		t.Errorf("i = %d, %v", i, ok)
	}
	if _, ok := prop("f").AsInt(); ok {
		t.Error("1.5 accepted as integer")
	}
	if f, ok := prop("f").AsFloat(); !ok || f != 1.5 {
		t.Errorf("f = %v, %v", f, ok)
	}
	if f, ok := prop("i").AsFloat(); !ok || f != 42 {
		t.Errorf("i as float = %v, %v", f, ok)
	}
	if b, ok := prop("b").AsBool(); !ok || !b {
		t.Errorf("b = %v, %v", b, ok)
	}
	if ss, ok := prop("ss").Strings(); !ok || len(ss) != 2 || ss[1] != "b" {
		t.Errorf("ss = %v, %v", ss, ok)
	}
	if is, ok := prop("is").Ints(); !ok || len(is) != 2 || is[0] != 1 {
		t.Errorf("is = %v, %v", is, ok)
	}
	if _, ok := prop("mixed").Strings(); ok {
		t.Error("mixed array accepted as strings")
	}
	if _, ok := prop("s").AsInt(); ok {
		t.Error("string accepted as integer")
	}
	if !prop("o").IsObject() {
		t.Error("o is not an object")
	}
	if _, ok := c.Property("missing"); ok {
		t.Error("missing property reported present")
	}
}

func TestGeneratedContent_Zero(t *testing.T) {
	var c GeneratedContent
	if !c.IsZero() {
		t.Error("IsZero() = false for zero value")
	}
	if _, ok := c.AsString(); ok {
		t.Error("zero value yielded a string")
	}
	if _, ok := c.Property("x"); ok {
		t.Error("zero value yielded a property")
	}
}

func TestNewContent_GoValues(t *testing.T) {
	c := NewContent(map[string]any{"n": 3, "f": float64(2), "num": json.Number("9")})
	n, _ := c.Property("n")
	if i, ok := n.AsInt(); !ok || i != 3 {
		t.Errorf("n = %d, %v", i, ok)
	}
	f, _ := c.Property("f")
	if i, ok := f.AsInt(); !ok || i != 2 {
		t.Errorf("integral float = %d, %v", i, ok)
	}
	num, _ := c.Property("num")
	if i, ok := num.AsInt(); !ok || i != 9 {
		t.Errorf("json.Number = %d, %v", i, ok)
	}
}
