package hook

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/native/sim"
	"github.com/justyntemme/gopd/pkg/pderr"
)

func newEngine(t *testing.T) *sim.Engine {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)

	eng := sim.New()
	_, err := eng.Init()
	require.NoError(t, err)
	require.NoError(t, eng.QueuedInit())
	_, err = eng.Bind("out")
	require.NoError(t, err)
	return eng
}

func TestRegisterDeliversDecodedValues(t *testing.T) {
	eng := newEngine(t)
	r := NewRegistry(eng)

	var got []string
	require.NoError(t, r.OnBang(func(recv string) { got = append(got, "bang "+recv) }))
	require.NoError(t, r.OnFloat(func(recv string, f float32) {
		got = append(got, "float "+recv+" "+atom.Float(float64(f)).String())
	}))
	require.NoError(t, r.OnSymbol(func(recv, sym string) { got = append(got, "symbol "+recv+" "+sym) }))
	require.NoError(t, r.OnList(func(recv string, args []atom.Atom) { got = append(got, "list "+atom.Join(args)) }))
	require.NoError(t, r.OnMessage(func(recv, msg string, args []atom.Atom) {
		got = append(got, msg+" "+atom.Join(args))
	}))

	codec := atom.NewCodec(eng)
	list, err := codec.EncodeList(atom.Parse("1 two 3"))
	require.NoError(t, err)

	require.NoError(t, eng.SendBang("out"))
	require.NoError(t, eng.SendFloat("out", 0.5))
	require.NoError(t, eng.SendSymbol("out", "hi"))
	require.NoError(t, eng.SendList("out", list))
	require.NoError(t, eng.SendMessage("out", "set", list[:1]))
	eng.ReceiveMessages()

	assert.Equal(t, []string{
		"bang out",
		"float out 0.5",
		"symbol out hi",
		"list 1 two 3",
		"set 1",
	}, got)
}

func TestRegisterAcceptsUnnamedFuncs(t *testing.T) {
	r := NewRegistry(newEngine(t))
	assert.NoError(t, r.Register(native.HookPrint, func(string) {}))
	assert.NoError(t, r.Register(native.HookNoteOn, func(int, int, int) {}))
	assert.True(t, r.Registered(native.HookPrint))
}

func TestRegisterRejectsMismatchedListener(t *testing.T) {
	r := NewRegistry(newEngine(t))

	err := r.Register(native.HookFloat, func(string, float64) {})
	assert.ErrorIs(t, err, pderr.ErrInvalidInput)

	err = r.Register(native.HookKind(200), func(string) {})
	assert.ErrorIs(t, err, pderr.ErrInvalidInput)

	err = r.Register(native.HookBang, nil)
	assert.ErrorIs(t, err, pderr.ErrInvalidInput)

	err = r.OnPrint(nil)
	assert.ErrorIs(t, err, pderr.ErrInvalidInput)

	err = r.Register(native.HookBang, MIDIFunc(func(midi.Event) {}))
	assert.ErrorIs(t, err, pderr.ErrInvalidInput)
	assert.False(t, r.Registered(native.HookBang))
}

func TestReRegisterReplacesListener(t *testing.T) {
	eng := newEngine(t)
	r := NewRegistry(eng)

	var first, second int
	require.NoError(t, r.OnFloat(func(string, float32) { first++ }))
	require.NoError(t, eng.SendFloat("out", 1))
	eng.ReceiveMessages()

	require.NoError(t, r.OnFloat(func(string, float32) { second++ }))
	for i := 0; i < 3; i++ {
		require.NoError(t, eng.SendFloat("out", 1))
	}
	eng.ReceiveMessages()

	assert.Equal(t, 1, first)
	assert.Equal(t, 3, second)
	assert.Equal(t, uint64(2), r.Generation(native.HookFloat))
}

func TestFloatAndDoubleAreExclusive(t *testing.T) {
	eng := newEngine(t)
	core, logs := observer.New(zap.WarnLevel)
	r := NewRegistry(eng, WithLogger(zap.New(core)))

	var floats, doubles int
	require.NoError(t, r.OnFloat(func(string, float32) { floats++ }))
	require.NoError(t, r.OnDouble(func(string, float64) { doubles++ }))
	assert.False(t, r.Registered(native.HookFloat))
	assert.True(t, r.Registered(native.HookDouble))
	assert.Equal(t, 1, logs.FilterMessage("hook displaced").Len())

	require.NoError(t, eng.SendFloat("out", 1))
	eng.ReceiveMessages()
	assert.Equal(t, 0, floats)
	assert.Equal(t, 1, doubles)

	require.NoError(t, r.OnFloat(func(string, float32) { floats++ }))
	require.NoError(t, eng.SendFloat("out", 1))
	eng.ReceiveMessages()
	assert.Equal(t, 1, floats)
	assert.Equal(t, 1, doubles)
}

func TestDecodeFailuresSkipListener(t *testing.T) {
	eng := newEngine(t)
	var failed []native.HookKind
	r := NewRegistry(eng, WithDecodeErrorHandler(func(kind native.HookKind, err error) {
		assert.ErrorIs(t, err, pderr.ErrStringEncoding)
		failed = append(failed, kind)
	}))

	called := false
	require.NoError(t, r.OnSymbol(func(string, string) { called = true }))
	require.NoError(t, eng.SendSymbol("out", "\xff\xfe"))
	eng.ReceiveMessages()

	assert.False(t, called)
	assert.Equal(t, []native.HookKind{native.HookSymbol}, failed)
}

func TestListenerPanicIsRecovered(t *testing.T) {
	eng := newEngine(t)
	core, logs := observer.New(zap.ErrorLevel)
	r := NewRegistry(eng, WithLogger(zap.New(core)))

	calls := 0
	require.NoError(t, r.OnBang(func(string) {
		calls++
		panic("boom")
	}))
	require.NoError(t, eng.SendBang("out"))
	require.NoError(t, eng.SendBang("out"))

	assert.NotPanics(t, eng.ReceiveMessages)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, logs.FilterMessage("hook listener panicked").Len())
}

func TestOnMIDIDeliversTypedEvents(t *testing.T) {
	eng := newEngine(t)
	eng.Define("arp.pd", sim.Program{
		MIDI: func(c *sim.Context, ev midi.Event) {
			c.NoteOut(ev.Channel(), 60, 90)
			c.ControlOut(1, midi.CCVolume, 100)
			c.ProgramOut(2, 5)
			c.BendOut(3, -100)
			c.TouchOut(4, 10)
			c.PolyTouchOut(5, 61, 20)
			c.MIDIByteOut(1, 0xf8)
		},
	})
	_, err := eng.OpenPatch("arp.pd", "")
	require.NoError(t, err)

	r := NewRegistry(eng)
	var got []midi.Event
	require.NoError(t, r.OnMIDI(func(ev midi.Event) { got = append(got, ev) }))
	for k := native.HookNoteOn; k < native.NumHookKinds; k++ {
		assert.True(t, r.Registered(k), k.String())
	}

	require.NoError(t, eng.NoteOn(0, 64, 1))
	eng.ReceiveMIDIMessages()

	require.Len(t, got, 7)
	assert.Equal(t, midi.NoteOnEvent{BaseEvent: midi.BaseEvent{EventChannel: 0}, Pitch: 60, Velocity: 90}, got[0])
	assert.Equal(t, midi.ControlChangeEvent{BaseEvent: midi.BaseEvent{EventChannel: 1}, Controller: midi.CCVolume, Value: 100}, got[1])
	assert.Equal(t, midi.ProgramChangeEvent{BaseEvent: midi.BaseEvent{EventChannel: 2}, Program: 5}, got[2])
	assert.Equal(t, midi.PitchBendEvent{BaseEvent: midi.BaseEvent{EventChannel: 3}, Value: -100}, got[3])
	assert.Equal(t, midi.AftertouchEvent{BaseEvent: midi.BaseEvent{EventChannel: 4}, Value: 10}, got[4])
	assert.Equal(t, midi.PolyAftertouchEvent{BaseEvent: midi.BaseEvent{EventChannel: 5}, Pitch: 61, Value: 20}, got[5])
	assert.Equal(t, midi.ByteEvent{PortNumber: 1, Byte: 0xf8}, got[6])
}

func TestTypedMIDIListeners(t *testing.T) {
	eng := newEngine(t)
	eng.Define("cc.pd", sim.Program{
		MIDI: func(c *sim.Context, ev midi.Event) {
			c.ControlOut(0, 1, 2)
			c.ProgramOut(0, 3)
		},
	})
	_, err := eng.OpenPatch("cc.pd", "")
	require.NoError(t, err)

	r := NewRegistry(eng)
	var cc, pgm []int
	require.NoError(t, r.OnControlChange(func(ch, ctl, v int) { cc = append(cc, ch, ctl, v) }))
	require.NoError(t, r.OnProgramChange(func(ch, p int) { pgm = append(pgm, ch, p) }))

	require.NoError(t, eng.MIDIByte(0, 0xfa))
	eng.ReceiveMIDIMessages()
	assert.Equal(t, []int{0, 1, 2}, cc)
	assert.Equal(t, []int{0, 3}, pgm)
}

func TestUnregisterAndReset(t *testing.T) {
	eng := newEngine(t)
	r := NewRegistry(eng)

	calls := 0
	require.NoError(t, r.OnBang(func(string) { calls++ }))
	r.Unregister(native.HookBang)
	r.Unregister(native.HookBang)
	assert.False(t, r.Registered(native.HookBang))
	assert.Equal(t, uint64(2), r.Generation(native.HookBang))

	require.NoError(t, eng.SendBang("out"))
	eng.ReceiveMessages()
	assert.Zero(t, calls)

	require.NoError(t, r.OnPrint(func(string) {}))
	r.Reset()
	assert.False(t, r.Registered(native.HookPrint))
}
