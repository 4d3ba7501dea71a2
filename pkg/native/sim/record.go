package sim

import (
	"encoding/binary"
	"math"

	"github.com/justyntemme/gopd/pkg/native"
)

// Queued event records. Layout after the 4-byte length prefix:
//
//	kind u8
//	control kinds: recv str, then print/symbol: text str; float: f64;
//	               list: atoms; message: text str, atoms
//	MIDI kinds:    channel i32, number i32, value i32
//
// str is u32 length + bytes; atoms is u32 count + (type u8, payload u64)*.
const recordHeader = 4

type encoder struct {
	buf []byte
}

func (e *encoder) begin(kind native.HookKind) {
	e.buf = append(e.buf[:0], 0, 0, 0, 0, byte(kind))
}

func (e *encoder) str(s string) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) f64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}

func (e *encoder) i32(v int) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(int32(v)))
}

func (e *encoder) atoms(list []native.Atom) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(list)))
	for _, a := range list {
		e.buf = append(e.buf, byte(a.Type))
		switch a.Type {
		case native.AtomFloat:
			e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(a.Float))
		default:
			e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(a.Sym))
		}
	}
}

func (e *encoder) finish() []byte {
	binary.LittleEndian.PutUint32(e.buf[:recordHeader], uint32(len(e.buf)-recordHeader))
	return e.buf
}

type decoder struct {
	b   []byte
	off int
	bad bool
}

func (d *decoder) take(n int) []byte {
	if d.bad || d.off+n > len(d.b) {
		d.bad = true
		return nil
	}
	p := d.b[d.off : d.off+n]
	d.off += n
	return p
}

func (d *decoder) u32() uint32 {
	p := d.take(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

func (d *decoder) u64() uint64 {
	p := d.take(8)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(p)
}

func (d *decoder) str() []byte {
	n := int(d.u32())
	p := d.take(n)
	if p == nil && !d.bad {
		return []byte{}
	}
	return p
}

func (d *decoder) atoms(dst []native.Atom) []native.Atom {
	n := int(d.u32())
	dst = dst[:0]
	for i := 0; i < n && !d.bad; i++ {
		t := d.take(1)
		if t == nil {
			break
		}
		v := d.u64()
		a := native.Atom{Type: native.AtomType(t[0])}
		if a.Type == native.AtomFloat {
			a.Float = math.Float64frombits(v)
		} else {
			a.Sym = native.Symbol(v)
		}
		dst = append(dst, a)
	}
	return dst
}

// decodeFrame parses a record body into f. Slices in f alias body.
func decodeFrame(body []byte, f *native.Frame) (native.HookKind, bool) {
	d := decoder{b: body}
	k := d.take(1)
	if k == nil {
		return 0, false
	}
	kind := native.HookKind(k[0])
	atoms := f.Atoms
	*f = native.Frame{}

	switch kind {
	case native.HookPrint:
		f.Text = d.str()
	case native.HookBang:
		f.Recv = d.str()
	case native.HookFloat, native.HookDouble:
		f.Recv = d.str()
		f.Float = math.Float64frombits(d.u64())
	case native.HookSymbol:
		f.Recv = d.str()
		f.Text = d.str()
	case native.HookList:
		f.Recv = d.str()
		f.Atoms = d.atoms(atoms)
	case native.HookMessage:
		f.Recv = d.str()
		f.Text = d.str()
		f.Atoms = d.atoms(atoms)
	case native.HookNoteOn, native.HookControlChange, native.HookProgramChange,
		native.HookPitchBend, native.HookAftertouch, native.HookPolyAftertouch,
		native.HookMIDIByte:
		f.Channel = int(int32(d.u32()))
		f.Number = int(int32(d.u32()))
		f.Value = int(int32(d.u32()))
	default:
		return kind, false
	}
	if f.Atoms == nil {
		f.Atoms = atoms[:0]
	}
	return kind, !d.bad
}
