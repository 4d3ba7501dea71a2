//go:build cgo && libpd

package libpd

/*
#include <stdint.h>
#include <string.h>
#include "z_libpd.h"
*/
import "C"

import (
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/debug"
	"github.com/justyntemme/gopd/pkg/native"
)

// libpd stores one C function per hook for the whole process. Each slot
// here backs one of the exported trampolines below.
var hooks [native.NumHookKinds]atomic.Pointer[native.Hook]

func dispatch(kind native.HookKind, f *native.Frame) {
	p := hooks[kind].Load()
	if p == nil {
		return
	}
	defer recoverPanic(kind)
	(*p)(f)
}

// recoverPanic keeps a panicking hook from unwinding into C.
func recoverPanic(kind native.HookKind) {
	if r := recover(); r != nil {
		debug.Named("libpd").Error("hook panicked", zap.Stringer("kind", kind), zap.Any("panic", r))
	}
}

// goBytes copies a C string. NULL becomes nil, "" becomes an empty slice.
func goBytes(s *C.char) []byte {
	if s == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(s), C.int(C.strlen(s)))
}

func goAtoms(argc C.int, argv *C.t_atom) []native.Atom {
	if argc <= 0 || argv == nil {
		return nil
	}
	src := unsafe.Slice(argv, int(argc))
	atoms := make([]native.Atom, len(src))
	for i := range src {
		a := &src[i]
		switch {
		case C.libpd_is_float(a) != 0:
			atoms[i] = native.Atom{Type: native.AtomFloat, Float: float64(C.libpd_get_float(a))}
		case C.libpd_is_symbol(a) != 0:
			sym := C.gensym(C.libpd_get_symbol(a))
			atoms[i] = native.Atom{Type: native.AtomSymbol, Sym: native.Symbol(uintptr(unsafe.Pointer(sym)))}
		}
	}
	return atoms
}

//export goPdPrint
func goPdPrint(s *C.char) {
	dispatch(native.HookPrint, &native.Frame{Text: goBytes(s)})
}

//export goPdBang
func goPdBang(recv *C.char) {
	dispatch(native.HookBang, &native.Frame{Recv: goBytes(recv)})
}

//export goPdFloat
func goPdFloat(recv *C.char, x C.float) {
	dispatch(native.HookFloat, &native.Frame{Recv: goBytes(recv), Float: float64(x)})
}

//export goPdDouble
func goPdDouble(recv *C.char, x C.double) {
	dispatch(native.HookDouble, &native.Frame{Recv: goBytes(recv), Float: float64(x)})
}

//export goPdSymbol
func goPdSymbol(recv, sym *C.char) {
	dispatch(native.HookSymbol, &native.Frame{Recv: goBytes(recv), Text: goBytes(sym)})
}

//export goPdList
func goPdList(recv *C.char, argc C.int, argv *C.t_atom) {
	dispatch(native.HookList, &native.Frame{Recv: goBytes(recv), Atoms: goAtoms(argc, argv)})
}

//export goPdMessage
func goPdMessage(recv, msg *C.char, argc C.int, argv *C.t_atom) {
	dispatch(native.HookMessage, &native.Frame{Recv: goBytes(recv), Text: goBytes(msg), Atoms: goAtoms(argc, argv)})
}

//export goPdNoteOn
func goPdNoteOn(channel, pitch, velocity C.int) {
	dispatch(native.HookNoteOn, &native.Frame{Channel: int(channel), Number: int(pitch), Value: int(velocity)})
}

//export goPdControlChange
func goPdControlChange(channel, controller, value C.int) {
	dispatch(native.HookControlChange, &native.Frame{Channel: int(channel), Number: int(controller), Value: int(value)})
}

//export goPdProgramChange
func goPdProgramChange(channel, program C.int) {
	dispatch(native.HookProgramChange, &native.Frame{Channel: int(channel), Value: int(program)})
}

//export goPdPitchBend
func goPdPitchBend(channel, value C.int) {
	dispatch(native.HookPitchBend, &native.Frame{Channel: int(channel), Value: int(value)})
}

//export goPdAftertouch
func goPdAftertouch(channel, value C.int) {
	dispatch(native.HookAftertouch, &native.Frame{Channel: int(channel), Value: int(value)})
}

//export goPdPolyAftertouch
func goPdPolyAftertouch(channel, pitch, value C.int) {
	dispatch(native.HookPolyAftertouch, &native.Frame{Channel: int(channel), Number: int(pitch), Value: int(value)})
}

//export goPdMIDIByte
func goPdMIDIByte(port, b C.int) {
	// The port travels in Channel.
	dispatch(native.HookMIDIByte, &native.Frame{Channel: int(port), Value: int(b)})
}
