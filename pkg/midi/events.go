package midi

import (
	"fmt"
	"math"
)

// EventType identifies the kind of a MIDI event exchanged with the engine.
type EventType uint8

const (
	EventTypeNoteOn EventType = iota
	EventTypeControlChange
	EventTypeProgramChange
	EventTypePitchBend
	EventTypeAftertouch
	EventTypePolyAftertouch
	EventTypeByte
	EventTypeSysEx
	EventTypeRealtime
)

// Event is a MIDI event. Channels are 0-based and carry the port in the
// upper bits (port*16 + channel), the numbering the engine uses.
type Event interface {
	Type() EventType
	Channel() int
	Port() int
	String() string
}

// BaseEvent holds the engine channel number shared by all channel events.
type BaseEvent struct {
	EventChannel int
}

// Channel returns the channel within its port, 0-15.
func (e BaseEvent) Channel() int {
	return e.EventChannel & 0x0f
}

// Port returns the port number.
func (e BaseEvent) Port() int {
	return e.EventChannel >> 4
}

type NoteOnEvent struct {
	BaseEvent
	Pitch    int
	Velocity int
}

func (e NoteOnEvent) Type() EventType { return EventTypeNoteOn }

func (e NoteOnEvent) String() string {
	return fmt.Sprintf("NoteOn{ch:%d, pitch:%d, vel:%d}", e.EventChannel, e.Pitch, e.Velocity)
}

// IsNoteOff reports whether this note-on has zero velocity.
func (e NoteOnEvent) IsNoteOff() bool {
	return e.Velocity == 0
}

type ControlChangeEvent struct {
	BaseEvent
	Controller int
	Value      int
}

func (e ControlChangeEvent) Type() EventType { return EventTypeControlChange }

func (e ControlChangeEvent) String() string {
	return fmt.Sprintf("CC{ch:%d, ctrl:%d, val:%d}", e.EventChannel, e.Controller, e.Value)
}

const (
	CCModWheel    = 1
	CCVolume      = 7
	CCPan         = 10
	CCExpression  = 11
	CCSustain     = 64
	CCAllSoundOff = 120
	CCResetAll    = 121
	CCAllNotesOff = 123
)

type ProgramChangeEvent struct {
	BaseEvent
	Program int
}

func (e ProgramChangeEvent) Type() EventType { return EventTypeProgramChange }

func (e ProgramChangeEvent) String() string {
	return fmt.Sprintf("ProgramChange{ch:%d, prog:%d}", e.EventChannel, e.Program)
}

// PitchBendEvent carries a bend in -8192..8191, 0 is center.
type PitchBendEvent struct {
	BaseEvent
	Value int
}

func (e PitchBendEvent) Type() EventType { return EventTypePitchBend }

func (e PitchBendEvent) String() string {
	return fmt.Sprintf("PitchBend{ch:%d, val:%d}", e.EventChannel, e.Value)
}

// NormalizedValue maps the bend to -1..1.
func (e PitchBendEvent) NormalizedValue() float64 {
	return float64(e.Value) / 8192.0
}

type AftertouchEvent struct {
	BaseEvent
	Value int
}

func (e AftertouchEvent) Type() EventType { return EventTypeAftertouch }

func (e AftertouchEvent) String() string {
	return fmt.Sprintf("Aftertouch{ch:%d, val:%d}", e.EventChannel, e.Value)
}

type PolyAftertouchEvent struct {
	BaseEvent
	Pitch int
	Value int
}

func (e PolyAftertouchEvent) Type() EventType { return EventTypePolyAftertouch }

func (e PolyAftertouchEvent) String() string {
	return fmt.Sprintf("PolyAftertouch{ch:%d, pitch:%d, val:%d}", e.EventChannel, e.Pitch, e.Value)
}

// ByteEvent is a raw MIDI byte on a port.
type ByteEvent struct {
	PortNumber int
	Byte       int
}

func (e ByteEvent) Type() EventType { return EventTypeByte }
func (e ByteEvent) Channel() int    { return 0 }
func (e ByteEvent) Port() int       { return e.PortNumber }

func (e ByteEvent) String() string {
	return fmt.Sprintf("Byte{port:%d, byte:0x%02x}", e.PortNumber, e.Byte)
}

// SysExEvent is one byte of a system exclusive message on a port.
type SysExEvent struct {
	PortNumber int
	Byte       int
}

func (e SysExEvent) Type() EventType { return EventTypeSysEx }
func (e SysExEvent) Channel() int    { return 0 }
func (e SysExEvent) Port() int       { return e.PortNumber }

func (e SysExEvent) String() string {
	return fmt.Sprintf("SysEx{port:%d, byte:0x%02x}", e.PortNumber, e.Byte)
}

// RealtimeEvent is a system realtime byte (clock, start, stop...) on a port.
type RealtimeEvent struct {
	PortNumber int
	Byte       int
}

func (e RealtimeEvent) Type() EventType { return EventTypeRealtime }
func (e RealtimeEvent) Channel() int    { return 0 }
func (e RealtimeEvent) Port() int       { return e.PortNumber }

func (e RealtimeEvent) String() string {
	return fmt.Sprintf("Realtime{port:%d, byte:0x%02x}", e.PortNumber, e.Byte)
}

// Validation limits for values sent to the engine.
const (
	MaxChannel   = 16*16 - 1
	MaxValue     = 127
	MinPitchBend = -8192
	MaxPitchBend = 8191
	MaxByte      = 255
)

// Validate checks that the event's fields are within MIDI range.
func Validate(e Event) error {
	check := func(name string, v, lo, hi int) error {
		if v < lo || v > hi {
			return fmt.Errorf("midi: %s %d out of range [%d, %d]", name, v, lo, hi)
		}
		return nil
	}
	var errs []error
	switch ev := e.(type) {
	case NoteOnEvent:
		errs = append(errs, check("channel", ev.EventChannel, 0, MaxChannel),
			check("pitch", ev.Pitch, 0, MaxValue), check("velocity", ev.Velocity, 0, MaxValue))
	case ControlChangeEvent:
		errs = append(errs, check("channel", ev.EventChannel, 0, MaxChannel),
			check("controller", ev.Controller, 0, MaxValue), check("value", ev.Value, 0, MaxValue))
	case ProgramChangeEvent:
		errs = append(errs, check("channel", ev.EventChannel, 0, MaxChannel),
			check("program", ev.Program, 0, MaxValue))
	case PitchBendEvent:
		errs = append(errs, check("channel", ev.EventChannel, 0, MaxChannel),
			check("bend", ev.Value, MinPitchBend, MaxPitchBend))
	case AftertouchEvent:
		errs = append(errs, check("channel", ev.EventChannel, 0, MaxChannel),
			check("value", ev.Value, 0, MaxValue))
	case PolyAftertouchEvent:
		errs = append(errs, check("channel", ev.EventChannel, 0, MaxChannel),
			check("pitch", ev.Pitch, 0, MaxValue), check("value", ev.Value, 0, MaxValue))
	case ByteEvent:
		errs = append(errs, check("port", ev.PortNumber, 0, 0x0fff), check("byte", ev.Byte, 0, MaxByte))
	case SysExEvent:
		errs = append(errs, check("port", ev.PortNumber, 0, 0x0fff), check("byte", ev.Byte, 0, MaxByte))
	case RealtimeEvent:
		errs = append(errs, check("port", ev.PortNumber, 0, 0x0fff), check("byte", ev.Byte, 0, MaxByte))
	default:
		return fmt.Errorf("midi: unsupported event %T", e)
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// NoteToFrequency converts a MIDI note to Hz; tuningA4 of 0 means 440.
func NoteToFrequency(note int, tuningA4 float64) float64 {
	if tuningA4 == 0 {
		tuningA4 = 440.0
	}
	return tuningA4 * math.Pow(2, (float64(note)-69.0)/12.0)
}

// NoteNumberToName returns names like "C4" for 60.
func NoteNumberToName(note int) string {
	noteNames := [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	if note < 0 {
		note = 0
	}
	return fmt.Sprintf("%s%d", noteNames[note%12], note/12-1)
}
