package hook

import (
	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
)

// Listener types, one per hook kind. Channels are 0-based and include the
// port (port*16 + channel).
type (
	PrintFunc          func(text string)
	BangFunc           func(recv string)
	FloatFunc          func(recv string, f float32)
	DoubleFunc         func(recv string, f float64)
	SymbolFunc         func(recv, sym string)
	ListFunc           func(recv string, args []atom.Atom)
	MessageFunc        func(recv, msg string, args []atom.Atom)
	NoteOnFunc         func(channel, pitch, velocity int)
	ControlChangeFunc  func(channel, controller, value int)
	ProgramChangeFunc  func(channel, program int)
	PitchBendFunc      func(channel, value int)
	AftertouchFunc     func(channel, value int)
	PolyAftertouchFunc func(channel, pitch, value int)
	MIDIByteFunc       func(port, b int)
)

// normalize converts plain func literals to the named listener type of kind.
func normalize(kind native.HookKind, l any) (any, bool) {
	switch kind {
	case native.HookPrint:
		switch f := l.(type) {
		case PrintFunc:
			return f, true
		case func(string):
			return PrintFunc(f), true
		}
	case native.HookBang:
		switch f := l.(type) {
		case BangFunc:
			return f, true
		case func(string):
			return BangFunc(f), true
		}
	case native.HookFloat:
		switch f := l.(type) {
		case FloatFunc:
			return f, true
		case func(string, float32):
			return FloatFunc(f), true
		}
	case native.HookDouble:
		switch f := l.(type) {
		case DoubleFunc:
			return f, true
		case func(string, float64):
			return DoubleFunc(f), true
		}
	case native.HookSymbol:
		switch f := l.(type) {
		case SymbolFunc:
			return f, true
		case func(string, string):
			return SymbolFunc(f), true
		}
	case native.HookList:
		switch f := l.(type) {
		case ListFunc:
			return f, true
		case func(string, []atom.Atom):
			return ListFunc(f), true
		}
	case native.HookMessage:
		switch f := l.(type) {
		case MessageFunc:
			return f, true
		case func(string, string, []atom.Atom):
			return MessageFunc(f), true
		}
	case native.HookNoteOn:
		switch f := l.(type) {
		case NoteOnFunc:
			return f, true
		case func(int, int, int):
			return NoteOnFunc(f), true
		}
	case native.HookControlChange:
		switch f := l.(type) {
		case ControlChangeFunc:
			return f, true
		case func(int, int, int):
			return ControlChangeFunc(f), true
		}
	case native.HookProgramChange:
		switch f := l.(type) {
		case ProgramChangeFunc:
			return f, true
		case func(int, int):
			return ProgramChangeFunc(f), true
		}
	case native.HookPitchBend:
		switch f := l.(type) {
		case PitchBendFunc:
			return f, true
		case func(int, int):
			return PitchBendFunc(f), true
		}
	case native.HookAftertouch:
		switch f := l.(type) {
		case AftertouchFunc:
			return f, true
		case func(int, int):
			return AftertouchFunc(f), true
		}
	case native.HookPolyAftertouch:
		switch f := l.(type) {
		case PolyAftertouchFunc:
			return f, true
		case func(int, int, int):
			return PolyAftertouchFunc(f), true
		}
	case native.HookMIDIByte:
		switch f := l.(type) {
		case MIDIByteFunc:
			return f, true
		case func(int, int):
			return MIDIByteFunc(f), true
		}
	}
	return nil, false
}

// midiEvent converts a MIDI frame into a typed event.
func midiEvent(kind native.HookKind, f *native.Frame) midi.Event {
	base := midi.BaseEvent{EventChannel: f.Channel}
	switch kind {
	case native.HookNoteOn:
		return midi.NoteOnEvent{BaseEvent: base, Pitch: f.Number, Velocity: f.Value}
	case native.HookControlChange:
		return midi.ControlChangeEvent{BaseEvent: base, Controller: f.Number, Value: f.Value}
	case native.HookProgramChange:
		return midi.ProgramChangeEvent{BaseEvent: base, Program: f.Value}
	case native.HookPitchBend:
		return midi.PitchBendEvent{BaseEvent: base, Value: f.Value}
	case native.HookAftertouch:
		return midi.AftertouchEvent{BaseEvent: base, Value: f.Value}
	case native.HookPolyAftertouch:
		return midi.PolyAftertouchEvent{BaseEvent: base, Pitch: f.Number, Value: f.Value}
	case native.HookMIDIByte:
		return midi.ByteEvent{PortNumber: f.Channel, Byte: f.Value}
	}
	return nil
}
