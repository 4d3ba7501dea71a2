package hook

import (
	"errors"

	"github.com/justyntemme/gopd/pkg/native"
)

func (r *Registry) OnPrint(fn PrintFunc) error   { return r.Register(native.HookPrint, fn) }
func (r *Registry) OnBang(fn BangFunc) error     { return r.Register(native.HookBang, fn) }
func (r *Registry) OnFloat(fn FloatFunc) error   { return r.Register(native.HookFloat, fn) }
func (r *Registry) OnDouble(fn DoubleFunc) error { return r.Register(native.HookDouble, fn) }
func (r *Registry) OnSymbol(fn SymbolFunc) error { return r.Register(native.HookSymbol, fn) }
func (r *Registry) OnList(fn ListFunc) error     { return r.Register(native.HookList, fn) }

func (r *Registry) OnMessage(fn MessageFunc) error {
	return r.Register(native.HookMessage, fn)
}

func (r *Registry) OnNoteOn(fn NoteOnFunc) error {
	return r.Register(native.HookNoteOn, fn)
}

func (r *Registry) OnControlChange(fn ControlChangeFunc) error {
	return r.Register(native.HookControlChange, fn)
}

func (r *Registry) OnProgramChange(fn ProgramChangeFunc) error {
	return r.Register(native.HookProgramChange, fn)
}

func (r *Registry) OnPitchBend(fn PitchBendFunc) error {
	return r.Register(native.HookPitchBend, fn)
}

func (r *Registry) OnAftertouch(fn AftertouchFunc) error {
	return r.Register(native.HookAftertouch, fn)
}

func (r *Registry) OnPolyAftertouch(fn PolyAftertouchFunc) error {
	return r.Register(native.HookPolyAftertouch, fn)
}

func (r *Registry) OnMIDIByte(fn MIDIByteFunc) error {
	return r.Register(native.HookMIDIByte, fn)
}

// OnMIDI registers fn for every MIDI kind.
func (r *Registry) OnMIDI(fn MIDIFunc) error {
	var errs []error
	for k := native.HookNoteOn; k < native.NumHookKinds; k++ {
		errs = append(errs, r.Register(k, fn))
	}
	return errors.Join(errs...)
}
