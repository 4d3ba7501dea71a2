package atom

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/pderr"
)

// Interner is the part of the engine the codec needs. Symbols are interned
// against the instance current on the calling thread.
type Interner interface {
	ThisInstance() native.Instance
	Gensym(name string) (native.Symbol, error)
	SymbolName(sym native.Symbol) []byte
}

// Codec encodes and decodes atoms against an engine's symbol tables.
type Codec struct {
	symbols Interner
}

// NewCodec creates a codec backed by the given engine.
func NewCodec(symbols Interner) *Codec {
	return &Codec{symbols: symbols}
}

// Encode converts a host atom into a wire atom. Symbols require a current
// instance and must be valid UTF-8 without NUL bytes.
func (c *Codec) Encode(a Atom) (native.Atom, error) {
	switch a.kind {
	case KindFloat:
		return native.Atom{Type: native.AtomFloat, Float: a.f}, nil
	case KindSymbol:
		sym, err := c.Intern(a.s)
		if err != nil {
			return native.Atom{}, err
		}
		return native.Atom{Type: native.AtomSymbol, Sym: sym}, nil
	default:
		return native.Atom{}, pderr.InvalidInput("atom.Encode", "atom has no kind")
	}
}

// Intern returns the engine symbol for name.
func (c *Codec) Intern(name string) (native.Symbol, error) {
	const op = "atom.Encode"
	if strings.IndexByte(name, 0) >= 0 {
		return 0, pderr.StringEncoding(op, []byte(name), "embedded NUL byte")
	}
	if !utf8.ValidString(name) {
		return 0, pderr.StringEncoding(op, []byte(name), "invalid UTF-8")
	}
	if c.symbols.ThisInstance() == 0 {
		return 0, pderr.InstanceMissing(op)
	}
	sym, err := c.symbols.Gensym(name)
	if err != nil {
		if errors.Is(err, native.ErrNoInstance) {
			return 0, pderr.InstanceMissing(op)
		}
		return 0, pderr.Wrap(op, pderr.KindEngine, err, "gensym failed")
	}
	return sym, nil
}

// Decode converts a wire atom into a host atom. It reports false for null
// or non-UTF-8 symbols and for atom types the host cannot represent.
func (c *Codec) Decode(n native.Atom) (Atom, bool) {
	switch n.Type {
	case native.AtomFloat:
		return Float(n.Float), true
	case native.AtomSymbol:
		if n.Sym == 0 {
			return Atom{}, false
		}
		name := c.symbols.SymbolName(n.Sym)
		if name == nil || !utf8.Valid(name) {
			return Atom{}, false
		}
		return Symbol(string(name)), true
	default:
		return Atom{}, false
	}
}

// EncodeList encodes every atom or none: the first failure aborts the list.
func (c *Codec) EncodeList(list []Atom) ([]native.Atom, error) {
	out := make([]native.Atom, len(list))
	for i, a := range list {
		n, err := c.Encode(a)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// DecodeList decodes a wire list, omitting elements that fail to decode.
func (c *Codec) DecodeList(list []native.Atom) []Atom {
	out := make([]Atom, 0, len(list))
	for _, n := range list {
		if a, ok := c.Decode(n); ok {
			out = append(out, a)
		}
	}
	return out
}
