package vm

import (
	"math"
	"testing"
)

func TestValueAsDouble(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want float64
	}{
		{"number", NewNumber(3.5), 3.5},
		{"negative", NewNumber(-2), -2},
		{"numeric string", NewString("42.25"), 42.25},
		{"padded numeric string", NewString(" 7 "), 7},
		{"text", NewString("pad"), 0},
		{"empty string", NewString(""), 0},
		{"undefined", Value{}, 0},
	}

	for _, tc := range tests {
		if got := tc.v.AsDouble(); got != tc.want {
			t.Errorf("%s: AsDouble() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValueAsString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NewNumber(1), "1"},
		{NewNumber(25.4), "25.4"},
		{NewString("abc"), "abc"},
		{Value{}, ""},
	}

	for _, tc := range tests {
		if got := tc.v.AsString(); got != tc.want {
			t.Errorf("AsString(%v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestValueEqualTo(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{NewNumber(1), NewNumber(1), true},
		{NewNumber(1), NewNumber(2), false},
		{NewString("a"), NewString("a"), true},
		{NewString("a"), NewString("b"), false},
		{NewNumber(1), NewString("1"), false},
		{NewString("1"), NewNumber(1), false},
		{Value{}, Value{}, false},
		{NewNumber(math.NaN()), NewNumber(math.NaN()), false},
	}

	for _, tc := range tests {
		if got := tc.a.EqualTo(tc.b); got != tc.want {
			t.Errorf("%v.EqualTo(%v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestValueSet(t *testing.T) {
	var v Value
	if v.Type() != TypeUndefined {
		t.Fatalf("zero Value type = %v, want undefined", v.Type())
	}

	v.SetNumber(2)
	if v.Type() != TypeNumeric || v.AsDouble() != 2 {
		t.Errorf("after SetNumber: %v", v)
	}

	v.SetString("x")
	if v.Type() != TypeString || v.AsString() != "x" {
		t.Errorf("after SetString: %v", v)
	}

	v.Set(NewNumber(9))
	if v.Type() != TypeNumeric || v.AsDouble() != 9 {
		t.Errorf("after Set: %v", v)
	}
}

func TestBool(t *testing.T) {
	if Bool(true).AsDouble() != 1 {
		t.Error("Bool(true) should be 1.0")
	}
	if Bool(false).AsDouble() != 0 {
		t.Error("Bool(false) should be 0.0")
	}
}

func TestValueString(t *testing.T) {
	if got := NewString("a b").String(); got != `"a b"` {
		t.Errorf("String() = %s, want quoted", got)
	}
	if got := NewNumber(0.5).String(); got != "0.5" {
		t.Errorf("String() = %s, want 0.5", got)
	}
}
