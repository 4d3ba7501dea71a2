// Package atom converts between host atoms and the engine's wire atoms.
package atom

import (
	"strconv"
	"strings"
)

// Kind is the tag of an Atom.
type Kind uint8

const (
	KindFloat Kind = iota + 1
	KindSymbol
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindSymbol:
		return "symbol"
	default:
		return "invalid"
	}
}

// Atom is a message element: a 64-bit float or a symbol. The zero Atom is
// invalid and cannot be encoded.
type Atom struct {
	kind Kind
	f    float64
	s    string
}

// Float returns a float atom.
func Float(v float64) Atom {
	return Atom{kind: KindFloat, f: v}
}

// Symbol returns a symbol atom.
func Symbol(s string) Atom {
	return Atom{kind: KindSymbol, s: s}
}

// Kind returns the atom's tag.
func (a Atom) Kind() Kind { return a.kind }

// IsFloat reports whether a is a float atom.
func (a Atom) IsFloat() bool { return a.kind == KindFloat }

// IsSymbol reports whether a is a symbol atom.
func (a Atom) IsSymbol() bool { return a.kind == KindSymbol }

// AsFloat returns the float value.
func (a Atom) AsFloat() (float64, bool) {
	return a.f, a.kind == KindFloat
}

// AsSymbol returns the symbol value.
func (a Atom) AsSymbol() (string, bool) {
	return a.s, a.kind == KindSymbol
}

// Equal reports whether a and b have the same kind and value.
func (a Atom) Equal(b Atom) bool {
	return a == b
}

// String formats the atom the way the engine prints it.
func (a Atom) String() string {
	switch a.kind {
	case KindFloat:
		return strconv.FormatFloat(a.f, 'g', -1, 64)
	case KindSymbol:
		return a.s
	default:
		return "<invalid>"
	}
}

// Floats builds a list of float atoms.
func Floats(vs ...float64) []Atom {
	out := make([]Atom, len(vs))
	for i, v := range vs {
		out[i] = Float(v)
	}
	return out
}

// Join formats a list space-separated.
func Join(list []Atom) string {
	parts := make([]string, len(list))
	for i, a := range list {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

// Parse converts whitespace-separated words into atoms: decimal numbers
// such as 1, -0.5, .25 or 3e-2 become floats, everything else (inf, nan,
// hex literals, digit separators) becomes a symbol.
func Parse(s string) []Atom {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	out := make([]Atom, len(fields))
	for i, f := range fields {
		out[i] = Symbol(f)
		if !isDecimal(f) {
			continue
		}
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			out[i] = Float(v)
		}
	}
	return out
}

// isDecimal reports whether w is [+-]digits[.digits][e[+-]digits] with at
// least one mantissa digit.
func isDecimal(w string) bool {
	i := 0
	if i < len(w) && (w[i] == '+' || w[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(w) && isDigit(w[i]); i++ {
		digits++
	}
	if i < len(w) && w[i] == '.' {
		for i++; i < len(w) && isDigit(w[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(w) && (w[i] == 'e' || w[i] == 'E') {
		i++
		if i < len(w) && (w[i] == '+' || w[i] == '-') {
			i++
		}
		start := i
		for ; i < len(w) && isDigit(w[i]); i++ {
		}
		if i == start {
			return false
		}
	}
	return i == len(w)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
