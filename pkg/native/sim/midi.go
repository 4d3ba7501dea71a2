package sim

import (
	"fmt"

	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
)

// NoteOn sends a note-on into the current instance.
func (e *Engine) NoteOn(channel, pitch, velocity int) error {
	return e.midiIn(midi.NoteOnEvent{BaseEvent: midi.BaseEvent{EventChannel: channel}, Pitch: pitch, Velocity: velocity})
}

// ControlChange sends a control change into the current instance.
func (e *Engine) ControlChange(channel, controller, value int) error {
	return e.midiIn(midi.ControlChangeEvent{BaseEvent: midi.BaseEvent{EventChannel: channel}, Controller: controller, Value: value})
}

// ProgramChange sends a program change into the current instance.
func (e *Engine) ProgramChange(channel, value int) error {
	return e.midiIn(midi.ProgramChangeEvent{BaseEvent: midi.BaseEvent{EventChannel: channel}, Program: value})
}

// PitchBend sends a pitch bend in [-8192, 8191] into the current instance.
func (e *Engine) PitchBend(channel, value int) error {
	return e.midiIn(midi.PitchBendEvent{BaseEvent: midi.BaseEvent{EventChannel: channel}, Value: value})
}

// Aftertouch sends channel aftertouch into the current instance.
func (e *Engine) Aftertouch(channel, value int) error {
	return e.midiIn(midi.AftertouchEvent{BaseEvent: midi.BaseEvent{EventChannel: channel}, Value: value})
}

// PolyAftertouch sends polyphonic aftertouch into the current instance.
func (e *Engine) PolyAftertouch(channel, pitch, value int) error {
	return e.midiIn(midi.PolyAftertouchEvent{BaseEvent: midi.BaseEvent{EventChannel: channel}, Pitch: pitch, Value: value})
}

// MIDIByte sends a raw byte into the current instance.
func (e *Engine) MIDIByte(port, b int) error {
	return e.midiIn(midi.ByteEvent{PortNumber: port, Byte: b})
}

// SysEx sends a system exclusive byte into the current instance.
func (e *Engine) SysEx(port, b int) error {
	return e.midiIn(midi.SysExEvent{PortNumber: port, Byte: b})
}

// SysRealtime sends a realtime byte into the current instance.
func (e *Engine) SysRealtime(port, b int) error {
	return e.midiIn(midi.RealtimeEvent{PortNumber: port, Byte: b})
}

func (e *Engine) midiIn(ev midi.Event) error {
	if err := midi.Validate(ev); err != nil {
		return fmt.Errorf("%w: %v", native.ErrBadArgument, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return native.ErrNoInstance
	}
	for _, p := range inst.sortedPatches() {
		if p.program.MIDI != nil {
			p.program.MIDI(e.context(inst, p), ev)
		}
	}
	return nil
}
