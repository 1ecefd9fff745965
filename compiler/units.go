package compiler

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Unit is a numeric suffix such as "mm" or "mil". A literal carrying the
// unit is converted to the default unit by Convert when set, otherwise by
// multiplying with Factor.
type Unit struct {
	Name    string
	Factor  float64
	Convert func(float64) float64
}

// Units is the ordered unit table shared by the lexer (name matching) and
// codegen (conversion). Unit tokens carry an index into the table.
type Units []Unit

// DefaultUnits returns a millimetre-based table.
func DefaultUnits() Units {
	return Units{
		{Name: "mm", Factor: 1},
		{Name: "cm", Factor: 10},
		{Name: "mil", Factor: 0.0254},
		{Name: "in", Factor: 25.4},
		{Name: "inch", Factor: 25.4},
	}
}

// Names returns the unit names in table order.
func (u Units) Names() []string {
	names := make([]string, len(u))
	for i, unit := range u {
		names[i] = unit.Name
	}
	return names
}

// Match finds the longest unit name at s[pos:] that is followed by a
// non-alphanumeric character or the end of s. It returns the unit index
// and the matched length, or -1 and 0.
func (u Units) Match(s string, pos int) (int, int) {
	best, bestLen := -1, 0
	rest := s[pos:]
	for i, unit := range u {
		n := len(unit.Name)
		if n == 0 || n <= bestLen || len(rest) < n || rest[:n] != unit.Name {
			continue
		}
		if n < len(rest) {
			r, _ := utf8.DecodeRuneInString(rest[n:])
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		best, bestLen = i, n
	}
	return best, bestLen
}

// Convert parses numeric text and converts it with the unit at idx. An
// out-of-range index leaves the parsed number unconverted.
func (u Units) Convert(text string, idx int) float64 {
	v := parseNumber(text)
	if idx < 0 || idx >= len(u) {
		return v
	}
	unit := u[idx]
	if unit.Convert != nil {
		return unit.Convert(v)
	}
	return v * unit.Factor
}

// parseNumber parses canonical decimal text; unparseable text yields 0.
func parseNumber(text string) float64 {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return v
}
