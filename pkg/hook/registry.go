// Package hook adapts host closures to the engine's fixed-signature hook
// slots.
//
// The engine stores one bare function per event kind for the whole process.
// A Registry owns that table: each registration builds an adapter of the
// single native.Hook signature that decodes the raw frame and forwards to
// the listener, and installs it in the engine slot. Registering again for a
// kind replaces the slot; the previous adapter is no longer referenced.
package hook

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/debug"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/pderr"
)

// MIDIFunc receives any MIDI event as a typed value.
type MIDIFunc func(ev midi.Event)

// DecodeErrorFunc is called when a frame cannot be decoded for its listener.
type DecodeErrorFunc func(kind native.HookKind, err error)

type slot struct {
	listener any
	adapter  native.Hook
}

// Registry is the process-wide table of installed hooks. Create one per
// engine.
type Registry struct {
	eng      native.Engine
	codec    *atom.Codec
	log      *zap.Logger
	onDecode DecodeErrorFunc

	mu          sync.Mutex
	slots       [native.NumHookKinds]*slot
	generations [native.NumHookKinds]uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithDecodeErrorHandler routes frames that fail to decode to fn instead of
// the log.
func WithDecodeErrorHandler(fn DecodeErrorFunc) Option {
	return func(r *Registry) { r.onDecode = fn }
}

// NewRegistry creates a registry that installs hooks into eng.
func NewRegistry(eng native.Engine, opts ...Option) *Registry {
	r := &Registry{
		eng:   eng,
		codec: atom.NewCodec(eng),
		log:   debug.Named("hook"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.onDecode == nil {
		r.onDecode = func(kind native.HookKind, err error) {
			r.log.Warn("dropping undecodable event", zap.Stringer("kind", kind), zap.Error(err))
		}
	}
	return r
}

// Register installs listener for kind, replacing any previous listener.
// The listener must be the func type of that kind (PrintFunc for
// HookPrint, and so on) or the equivalent unnamed func type. MIDI kinds
// also accept a MIDIFunc.
//
// Float and double hooks share the engine's float delivery: registering
// one clears the other.
func (r *Registry) Register(kind native.HookKind, listener any) error {
	const op = "hook.Register"
	if !kind.Valid() {
		return pderr.InvalidInput(op, "unknown hook kind %d", kind)
	}
	if listener == nil {
		return pderr.InvalidInput(op, "nil listener for %s", kind)
	}

	var adapter native.Hook
	if fn, ok := asMIDIFunc(listener); ok && kind.IsMIDI() {
		if fn == nil {
			return pderr.InvalidInput(op, "nil listener for %s", kind)
		}
		listener = fn
		adapter = r.midiAdapter(kind, fn)
	} else {
		l, ok := normalize(kind, listener)
		if !ok {
			return pderr.InvalidInput(op, "%s hook cannot take a %T", kind, listener)
		}
		if isNilFunc(l) {
			return pderr.InvalidInput(op, "nil listener for %s", kind)
		}
		listener = l
		adapter = r.adapt(kind, l)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if other, ok := exclusive(kind); ok && r.slots[other] != nil {
		r.log.Warn("hook displaced", zap.Stringer("kind", other), zap.Stringer("by", kind))
		r.slots[other] = nil
		r.generations[other]++
		r.eng.SetHook(other, nil)
	}
	r.slots[kind] = &slot{listener: listener, adapter: adapter}
	r.generations[kind]++
	r.eng.SetHook(kind, adapter)
	r.log.Debug("hook registered", zap.Stringer("kind", kind), zap.Uint64("generation", r.generations[kind]))
	return nil
}

// Unregister clears the slot for kind.
func (r *Registry) Unregister(kind native.HookKind) {
	if !kind.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots[kind] == nil {
		return
	}
	r.slots[kind] = nil
	r.generations[kind]++
	r.eng.SetHook(kind, nil)
}

// Registered reports whether a listener is installed for kind.
func (r *Registry) Registered(kind native.HookKind) bool {
	if !kind.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[kind] != nil
}

// Generation counts how many times the slot for kind has changed.
func (r *Registry) Generation(kind native.HookKind) uint64 {
	if !kind.Valid() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[kind]
}

// Reset clears every slot.
func (r *Registry) Reset() {
	for k := native.HookKind(0); k < native.NumHookKinds; k++ {
		r.Unregister(k)
	}
}

func exclusive(kind native.HookKind) (native.HookKind, bool) {
	switch kind {
	case native.HookFloat:
		return native.HookDouble, true
	case native.HookDouble:
		return native.HookFloat, true
	}
	return 0, false
}

func asMIDIFunc(l any) (MIDIFunc, bool) {
	switch f := l.(type) {
	case MIDIFunc:
		return f, true
	case func(midi.Event):
		return MIDIFunc(f), true
	}
	return nil, false
}

// adapt builds the trampoline body for a normalized listener.
func (r *Registry) adapt(kind native.HookKind, l any) native.Hook {
	return func(f *native.Frame) {
		defer r.recoverPanic(kind)

		switch fn := l.(type) {
		case PrintFunc:
			text, err := r.text(f.Text)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			fn(text)
		case BangFunc:
			recv, err := r.text(f.Recv)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			fn(recv)
		case FloatFunc:
			recv, err := r.text(f.Recv)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			fn(recv, float32(f.Float))
		case DoubleFunc:
			recv, err := r.text(f.Recv)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			fn(recv, f.Float)
		case SymbolFunc:
			recv, err := r.text(f.Recv)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			sym, err := r.text(f.Text)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			fn(recv, sym)
		case ListFunc:
			recv, err := r.text(f.Recv)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			fn(recv, r.codec.DecodeList(f.Atoms))
		case MessageFunc:
			recv, err := r.text(f.Recv)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			msg, err := r.text(f.Text)
			if err != nil {
				r.onDecode(kind, err)
				return
			}
			fn(recv, msg, r.codec.DecodeList(f.Atoms))
		case NoteOnFunc:
			fn(f.Channel, f.Number, f.Value)
		case ControlChangeFunc:
			fn(f.Channel, f.Number, f.Value)
		case ProgramChangeFunc:
			fn(f.Channel, f.Value)
		case PitchBendFunc:
			fn(f.Channel, f.Value)
		case AftertouchFunc:
			fn(f.Channel, f.Value)
		case PolyAftertouchFunc:
			fn(f.Channel, f.Number, f.Value)
		case MIDIByteFunc:
			fn(f.Channel, f.Value)
		}
	}
}

func (r *Registry) midiAdapter(kind native.HookKind, fn MIDIFunc) native.Hook {
	return func(f *native.Frame) {
		defer r.recoverPanic(kind)
		fn(midiEvent(kind, f))
	}
}

// text decodes a C string from a frame. nil is the NULL pointer.
func (r *Registry) text(b []byte) (string, error) {
	const op = "hook.decode"
	if b == nil {
		return "", pderr.New(op, pderr.KindStringEncoding, "null string")
	}
	if !utf8.Valid(b) {
		return "", pderr.StringEncoding(op, b, "invalid UTF-8")
	}
	return string(b), nil
}

// recoverPanic keeps listener panics from unwinding into the engine.
func (r *Registry) recoverPanic(kind native.HookKind) {
	if v := recover(); v != nil {
		r.log.Error("hook listener panicked",
			zap.Stringer("kind", kind),
			zap.String("panic", fmt.Sprint(v)),
			zap.Stack("stack"))
	}
}

func isNilFunc(l any) bool {
	switch f := l.(type) {
	case PrintFunc:
		return f == nil
	case BangFunc:
		return f == nil
	case FloatFunc:
		return f == nil
	case DoubleFunc:
		return f == nil
	case SymbolFunc:
		return f == nil
	case ListFunc:
		return f == nil
	case MessageFunc:
		return f == nil
	case NoteOnFunc:
		return f == nil
	case ControlChangeFunc:
		return f == nil
	case ProgramChangeFunc:
		return f == nil
	case PitchBendFunc:
		return f == nil
	case AftertouchFunc:
		return f == nil
	case PolyAftertouchFunc:
		return f == nil
	case MIDIByteFunc:
		return f == nil
	}
	return false
}
