// Package native describes the C entry points of the embedded patch engine.
//
// Engine is implemented by pkg/native/libpd (cgo, the real engine) and by
// pkg/native/sim (an in-process engine with the same observable contract).
// Every call is scoped to the instance that is current on the calling OS
// thread; callers that switch instances must hold runtime.LockOSThread for
// the whole set-current-then-call sequence.
package native

import "errors"

// Opaque native identifiers. The zero value is the null pointer.
type (
	Instance uintptr
	Symbol   uintptr
	Patch    uintptr
	Binding  uintptr
)

// Errors reported by engines. Higher layers wrap them in pderr kinds.
var (
	ErrNoInstance         = errors.New("no current instance")
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNoReceiver         = errors.New("no such receiver")
	ErrNoArray            = errors.New("no such array")
	ErrOutOfRange         = errors.New("index out of range")
	ErrNotInitialized     = errors.New("queued messaging not initialized")
	ErrBadArgument        = errors.New("bad argument")
)

// AtomType is the tag of a wire atom.
type AtomType uint8

const (
	// AtomNone marks atom types the host cannot represent (pointers, dollars...).
	AtomNone AtomType = iota
	AtomFloat
	AtomSymbol
)

// Atom is the engine's tagged wire value. Sym is an interned symbol of the
// instance that produced it.
type Atom struct {
	Type  AtomType
	Float float64
	Sym   Symbol
}

// Frame carries the raw arguments an engine passes to a hook. String fields
// hold the bytes of a C string without its terminator; nil means the C
// pointer was NULL. Which fields are set depends on the hook kind.
type Frame struct {
	Recv  []byte // source receiver name
	Text  []byte // print text, symbol value or message selector
	Float float64
	Atoms []Atom

	// MIDI arguments. Channel is 0-based and includes the port (port*16+ch).
	Channel int
	Number  int // pitch or controller
	Value   int
}

// Hook is the fixed-signature function an engine stores in a hook slot.
type Hook func(f *Frame)

// FreeFunc releases instance data when it is replaced or its instance is freed.
type FreeFunc func(data uintptr)

// Engine is the set of native entry points the binding layer consumes.
type Engine interface {
	// Instances
	Init() (Instance, error)
	MainInstance() Instance
	NewInstance() Instance
	FreeInstance(inst Instance)
	SetInstance(inst Instance)
	ThisInstance() Instance
	NumInstances() int
	InstanceNumber(inst Instance) int
	SetInstanceData(data uintptr, free FreeFunc) error
	InstanceData() uintptr

	// Queued messaging, scoped to the current instance.
	QueuedInit() error
	QueuedRelease()
	ReceiveMessages()
	ReceiveMIDIMessages()

	// Hook slots are process-wide. A nil hook clears the slot.
	SetHook(kind HookKind, h Hook)

	// Symbols
	Gensym(name string) (Symbol, error)
	SymbolName(sym Symbol) []byte

	// Patches and endpoints
	OpenPatch(name, dir string) (Patch, error)
	ClosePatch(p Patch)
	DollarZero(p Patch) int
	Bind(name string) (Binding, error)
	Unbind(b Binding)
	Exists(name string) bool

	// Messages
	SendBang(recv string) error
	SendFloat(recv string, f float64) error
	SendSymbol(recv, sym string) error
	SendList(recv string, argv []Atom) error
	SendMessage(recv, msg string, argv []Atom) error

	// MIDI input to the engine. Channels are 0-based and include the port.
	NoteOn(channel, pitch, velocity int) error
	ControlChange(channel, controller, value int) error
	ProgramChange(channel, value int) error
	PitchBend(channel, value int) error
	Aftertouch(channel, value int) error
	PolyAftertouch(channel, pitch, value int) error
	MIDIByte(port, b int) error
	SysEx(port, b int) error
	SysRealtime(port, b int) error

	// Audio
	InitAudio(inChannels, outChannels, sampleRate int) error
	BlockSize() int
	ProcessFloat(ticks int, in, out []float32) error
	ProcessDouble(ticks int, in, out []float64) error
	ProcessShort(ticks int, in, out []int16) error
	ProcessRaw(in, out []float32) error

	// Arrays
	ArraySize(name string) (int, error)
	ResizeArray(name string, size int) error
	ReadArray(dst []float32, name string, offset int) error
	WriteArray(name string, offset int, src []float32) error

	// Environment
	AddToSearchPath(dir string)
	ClearSearchPath()
	SetVerbose(verbose bool)
	Verbose() bool
}
