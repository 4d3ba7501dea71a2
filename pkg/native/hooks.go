package native

// HookKind names one of the engine's hook slots.
type HookKind uint8

const (
	HookPrint HookKind = iota
	HookBang
	HookFloat
	HookDouble
	HookSymbol
	HookList
	HookMessage
	HookNoteOn
	HookControlChange
	HookProgramChange
	HookPitchBend
	HookAftertouch
	HookPolyAftertouch
	HookMIDIByte

	NumHookKinds
)

var hookNames = [NumHookKinds]string{
	HookPrint:          "print",
	HookBang:           "bang",
	HookFloat:          "float",
	HookDouble:         "double",
	HookSymbol:         "symbol",
	HookList:           "list",
	HookMessage:        "message",
	HookNoteOn:         "noteon",
	HookControlChange:  "controlchange",
	HookProgramChange:  "programchange",
	HookPitchBend:      "pitchbend",
	HookAftertouch:     "aftertouch",
	HookPolyAftertouch: "polyaftertouch",
	HookMIDIByte:       "midibyte",
}

// String returns the lower-case name of the hook kind.
func (k HookKind) String() string {
	if k < NumHookKinds {
		return hookNames[k]
	}
	return "unknown"
}

// IsMIDI reports whether events of this kind travel on the MIDI queue.
func (k HookKind) IsMIDI() bool {
	return k >= HookNoteOn && k < NumHookKinds
}

// Valid reports whether k names a hook slot.
func (k HookKind) Valid() bool {
	return k < NumHookKinds
}

// ParseHookKind returns the kind with the given name.
func ParseHookKind(name string) (HookKind, bool) {
	for k, n := range hookNames {
		if n == name {
			return HookKind(k), true
		}
	}
	return 0, false
}
