//go:build cgo && libpd

package libpd

/*
#include <stdint.h>
#include <stdlib.h>
#include "z_libpd.h"

static void atom_set_float(t_atom *a, double f) { SETFLOAT(a, (t_float)f); }
static void atom_set_symbol(t_atom *a, uintptr_t s) { SETSYMBOL(a, (t_symbol *)s); }
*/
import "C"

import (
	"strings"
	"unsafe"

	"github.com/justyntemme/gopd/pkg/native"
)

// SendBang sends a bang to recv.
func (e *Engine) SendBang(recv string) error {
	return e.send(recv, func(r *C.char) C.int { return C.libpd_bang(r) })
}

// SendFloat sends a float to recv at double precision.
func (e *Engine) SendFloat(recv string, f float64) error {
	return e.send(recv, func(r *C.char) C.int { return C.libpd_double(r, C.double(f)) })
}

// SendSymbol sends a symbol to recv.
func (e *Engine) SendSymbol(recv, sym string) error {
	if strings.IndexByte(sym, 0) >= 0 {
		return native.ErrBadArgument
	}
	cs := C.CString(sym)
	defer C.free(unsafe.Pointer(cs))
	return e.send(recv, func(r *C.char) C.int { return C.libpd_symbol(r, cs) })
}

// SendList sends a list to recv.
func (e *Engine) SendList(recv string, argv []native.Atom) error {
	atoms := toC(argv)
	return e.send(recv, func(r *C.char) C.int {
		return C.libpd_list(r, C.int(len(atoms)), firstAtom(atoms))
	})
}

// SendMessage sends a typed message to recv.
func (e *Engine) SendMessage(recv, msg string, argv []native.Atom) error {
	if strings.IndexByte(msg, 0) >= 0 {
		return native.ErrBadArgument
	}
	cm := C.CString(msg)
	defer C.free(unsafe.Pointer(cm))
	atoms := toC(argv)
	return e.send(recv, func(r *C.char) C.int {
		return C.libpd_message(r, cm, C.int(len(atoms)), firstAtom(atoms))
	})
}

// send checks recv and the current instance, then runs call with recv as a
// C string. libpd returns non-zero when nothing is bound to recv.
func (e *Engine) send(recv string, call func(*C.char) C.int) error {
	if strings.IndexByte(recv, 0) >= 0 {
		return native.ErrBadArgument
	}
	if _, err := e.current(); err != nil {
		return err
	}
	cr := C.CString(recv)
	defer C.free(unsafe.Pointer(cr))
	if call(cr) != 0 {
		return native.ErrNoReceiver
	}
	return nil
}

func toC(argv []native.Atom) []C.t_atom {
	if len(argv) == 0 {
		return nil
	}
	atoms := make([]C.t_atom, len(argv))
	for i, a := range argv {
		switch a.Type {
		case native.AtomSymbol:
			C.atom_set_symbol(&atoms[i], C.uintptr_t(a.Sym))
		default:
			C.atom_set_float(&atoms[i], C.double(a.Float))
		}
	}
	return atoms
}

func firstAtom(atoms []C.t_atom) *C.t_atom {
	if len(atoms) == 0 {
		return nil
	}
	return &atoms[0]
}

// NoteOn sends a note on. Channels include the port (port*16+ch).
func (e *Engine) NoteOn(channel, pitch, velocity int) error {
	return e.midi(func() C.int { return C.libpd_noteon(C.int(channel), C.int(pitch), C.int(velocity)) })
}

// ControlChange sends a control change.
func (e *Engine) ControlChange(channel, controller, value int) error {
	return e.midi(func() C.int { return C.libpd_controlchange(C.int(channel), C.int(controller), C.int(value)) })
}

// ProgramChange sends a program change.
func (e *Engine) ProgramChange(channel, value int) error {
	return e.midi(func() C.int { return C.libpd_programchange(C.int(channel), C.int(value)) })
}

// PitchBend sends a pitch bend in -8192..8191.
func (e *Engine) PitchBend(channel, value int) error {
	return e.midi(func() C.int { return C.libpd_pitchbend(C.int(channel), C.int(value)) })
}

// Aftertouch sends channel pressure.
func (e *Engine) Aftertouch(channel, value int) error {
	return e.midi(func() C.int { return C.libpd_aftertouch(C.int(channel), C.int(value)) })
}

// PolyAftertouch sends key pressure.
func (e *Engine) PolyAftertouch(channel, pitch, value int) error {
	return e.midi(func() C.int { return C.libpd_polyaftertouch(C.int(channel), C.int(pitch), C.int(value)) })
}

// MIDIByte sends a raw MIDI byte on port.
func (e *Engine) MIDIByte(port, b int) error {
	return e.midi(func() C.int { return C.libpd_midibyte(C.int(port), C.int(b)) })
}

// SysEx sends one system exclusive byte on port.
func (e *Engine) SysEx(port, b int) error {
	return e.midi(func() C.int { return C.libpd_sysex(C.int(port), C.int(b)) })
}

// SysRealtime sends a system realtime byte on port.
func (e *Engine) SysRealtime(port, b int) error {
	return e.midi(func() C.int { return C.libpd_sysrealtime(C.int(port), C.int(b)) })
}

func (e *Engine) midi(call func() C.int) error {
	if _, err := e.current(); err != nil {
		return err
	}
	if call() != 0 {
		return native.ErrBadArgument
	}
	return nil
}
