package sim

import (
	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/native"
)

// Context is a patch's view of its instance while one of its callbacks runs.
// It is only valid for the duration of that callback.
type Context struct {
	e    *Engine
	inst *instance
	p    *patch
}

func (e *Engine) context(inst *instance, p *patch) *Context {
	return &Context{e: e, inst: inst, p: p}
}

// DollarZero returns the patch's $0 value.
func (c *Context) DollarZero() int { return c.p.dollarZero }

// Expand replaces "$0" in name with the patch's $0 value.
func (c *Context) Expand(name string) string { return expand(name, c.p.dollarZero) }

// Ticks returns the number of ticks the instance has processed.
func (c *Context) Ticks() uint64 { return c.inst.ticks }

// BlockSize returns the frames per tick.
func (c *Context) BlockSize() int { return c.inst.blockSize }

// SampleRate returns the rate passed to InitAudio, or 0.
func (c *Context) SampleRate() int { return c.inst.sampleRate }

// Channels returns the audio channel counts passed to InitAudio.
func (c *Context) Channels() (in, out int) { return c.inst.inChans, c.inst.outChans }

// Send delivers a message to name, like [s name]. It reports whether
// anything received it.
func (c *Context) Send(name string, m Message) bool {
	return c.e.dispatchLocked(c.inst, c.Expand(name), m)
}

// Bang sends a bang to name.
func (c *Context) Bang(name string) bool {
	return c.Send(name, Message{Selector: "bang"})
}

// Float sends a float to name.
func (c *Context) Float(name string, v float64) bool {
	return c.Send(name, Message{Selector: "float", Args: []atom.Atom{atom.Float(v)}})
}

// Symbol sends a symbol to name.
func (c *Context) Symbol(name, s string) bool {
	return c.Send(name, Message{Selector: "symbol", Args: []atom.Atom{atom.Symbol(s)}})
}

// List sends a list to name.
func (c *Context) List(name string, args ...atom.Atom) bool {
	return c.Send(name, Message{Selector: "list", Args: args})
}

// Print writes a line to the console, like [print].
func (c *Context) Print(text string) {
	enc := &c.inst.enc
	enc.begin(native.HookPrint)
	enc.str(text + "\n")
	c.e.enqueue(c.inst, false)
}

// NoteOut sends a note-on to the host. Channels are 0-based and include the port.
func (c *Context) NoteOut(channel, pitch, velocity int) {
	c.midiOut(native.HookNoteOn, channel, pitch, velocity)
}

// ControlOut sends a control change to the host.
func (c *Context) ControlOut(channel, controller, value int) {
	c.midiOut(native.HookControlChange, channel, controller, value)
}

// ProgramOut sends a program change to the host.
func (c *Context) ProgramOut(channel, program int) {
	c.midiOut(native.HookProgramChange, channel, 0, program)
}

// BendOut sends a pitch bend to the host. value is in [-8192, 8191].
func (c *Context) BendOut(channel, value int) {
	c.midiOut(native.HookPitchBend, channel, 0, value)
}

// TouchOut sends channel aftertouch to the host.
func (c *Context) TouchOut(channel, value int) {
	c.midiOut(native.HookAftertouch, channel, 0, value)
}

// PolyTouchOut sends polyphonic aftertouch to the host.
func (c *Context) PolyTouchOut(channel, pitch, value int) {
	c.midiOut(native.HookPolyAftertouch, channel, pitch, value)
}

// MIDIByteOut sends a raw MIDI byte to the host.
func (c *Context) MIDIByteOut(port, b int) {
	c.midiOut(native.HookMIDIByte, port, 0, b)
}

func (c *Context) midiOut(kind native.HookKind, channel, number, value int) {
	enc := &c.inst.enc
	enc.begin(kind)
	enc.i32(channel)
	enc.i32(number)
	enc.i32(value)
	c.e.enqueue(c.inst, true)
}

// Array returns the storage of a table in the instance, or nil. Writes
// through the returned slice are visible to the host.
func (c *Context) Array(name string) []float32 {
	return c.inst.arrays[c.Expand(name)]
}
