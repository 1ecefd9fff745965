package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: numeric / text tagged union
// ---------------------------------------------------------------------------

// Type identifies which payload a Value carries.
type Type int

const (
	TypeUndefined  Type = iota // no payload; coerces to 0 and never compares equal
	TypeNumeric                // float64 payload
	TypeString                 // text payload
	TypeParseError             // reserved for host references that resolved but cannot be read
)

var typeNames = map[Type]string{
	TypeUndefined:  "undefined",
	TypeNumeric:    "numeric",
	TypeString:     "string",
	TypeParseError: "parse-error",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Value is either a double-precision number or a text string.
// The zero Value is undefined.
type Value struct {
	typ Type
	num float64
	str string
}

// NewNumber returns a numeric Value.
func NewNumber(f float64) Value {
	return Value{typ: TypeNumeric, num: f}
}

// NewString returns a text Value.
func NewString(s string) Value {
	return Value{typ: TypeString, str: s}
}

// Bool returns 1.0 for true and 0.0 for false.
func Bool(b bool) Value {
	if b {
		return NewNumber(1)
	}
	return NewNumber(0)
}

// Type returns the payload kind.
func (v Value) Type() Type {
	return v.typ
}

// Set overwrites v with a copy of other.
func (v *Value) Set(other Value) {
	*v = other
}

// SetNumber makes v numeric.
func (v *Value) SetNumber(f float64) {
	*v = NewNumber(f)
}

// SetString makes v textual.
func (v *Value) SetString(s string) {
	*v = NewString(s)
}

// AsDouble coerces the value to a number. Text that does not parse as a
// decimal number coerces to 0.
func (v Value) AsDouble() float64 {
	switch v.typ {
	case TypeNumeric:
		return v.num
	case TypeString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0
		}
		return f
	case TypeUndefined, TypeParseError:
		return 0
	}
	return 0
}

// AsString renders the value as text.
func (v Value) AsString() string {
	switch v.typ {
	case TypeNumeric:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case TypeString:
		return v.str
	case TypeUndefined, TypeParseError:
		return ""
	}
	return ""
}

// EqualTo compares payloads of matching kind. Values of different kinds,
// and undefined values, are never equal.
func (v Value) EqualTo(other Value) bool {
	switch v.typ {
	case TypeNumeric:
		return other.typ == TypeNumeric && v.num == other.num
	case TypeString:
		return other.typ == TypeString && v.str == other.str
	case TypeUndefined, TypeParseError:
		return false
	}
	return false
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.typ {
	case TypeNumeric:
		return v.AsString()
	case TypeString:
		return strconv.Quote(v.str)
	case TypeUndefined:
		return "<undefined>"
	case TypeParseError:
		return "<parse error>"
	}
	return "<invalid>"
}
