package pd

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/native/sim"
	"github.com/justyntemme/gopd/pkg/pderr"
)

// loopback answers "in" on "out" and doubles its input signal.
var loopback = sim.Program{
	Receivers: map[string]sim.Receiver{
		"in": func(c *sim.Context, m sim.Message) { c.Send("out", m) },
		"$0-store": func(c *sim.Context, m sim.Message) {
			v, _ := m.Float()
			c.Array("$0-table")[0] = float32(v)
		},
	},
	Arrays: map[string]int{"$0-table": 8},
	DSP: func(c *sim.Context, in, out []float32) {
		for i := range out {
			out[i] += 2 * in[i%len(in)]
		}
	},
	MIDI: func(c *sim.Context, ev midi.Event) {
		if n, ok := ev.(midi.NoteOnEvent); ok {
			c.NoteOut(n.EventChannel, n.Pitch, n.Velocity/2)
		}
	},
}

func newSession(t *testing.T) (*Session, *sim.Engine) {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)

	eng := sim.New(sim.WithBlockSize(4))
	eng.Define("loopback.pd", loopback)
	s, err := New(eng)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, eng
}

func TestSendBindLoopback(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Open("loopback.pd", "")
	require.NoError(t, err)
	_, err = s.Bind("out")
	require.NoError(t, err)

	var got []string
	require.NoError(t, s.Hooks().OnBang(func(recv string) { got = append(got, "bang") }))
	require.NoError(t, s.Hooks().OnDouble(func(recv string, f float64) { got = append(got, atom.Float(f).String()) }))
	require.NoError(t, s.Hooks().OnSymbol(func(recv, sym string) { got = append(got, sym) }))
	require.NoError(t, s.Hooks().OnList(func(recv string, args []atom.Atom) { got = append(got, atom.Join(args)) }))
	require.NoError(t, s.Hooks().OnMessage(func(recv, msg string, args []atom.Atom) {
		got = append(got, msg+" "+atom.Join(args))
	}))

	require.NoError(t, s.SendBang("in"))
	require.NoError(t, s.SendFloat("in", 1e308))
	require.NoError(t, s.SendSymbol("in", "sym"))
	require.NoError(t, s.SendList("in", atom.Float(1), atom.Symbol("a")))
	require.NoError(t, s.SendMessage("in", "set", atom.Float(2)))
	s.Drain()

	assert.Equal(t, []string{"bang", "1e+308", "sym", "1 a", "set 2"}, got)
}

func TestSendErrors(t *testing.T) {
	s, eng := newSession(t)

	assert.ErrorIs(t, s.SendBang("nobody"), pderr.ErrNotFound)
	assert.ErrorIs(t, s.SendBang("a\x00b"), pderr.ErrStringEncoding)
	assert.ErrorIs(t, s.SendList("pd", atom.Symbol("x\x00y")), pderr.ErrStringEncoding)
	assert.ErrorIs(t, s.SendMIDI(midi.NoteOnEvent{Pitch: 300}), pderr.ErrInvalidInput)
	assert.ErrorIs(t, s.SendMIDI(nil), pderr.ErrInvalidInput)

	eng.SetInstance(0)
	assert.ErrorIs(t, s.SendFloat("pd", 1), pderr.ErrInstanceMissing)
	assert.ErrorIs(t, s.SendList("pd", atom.Symbol("x")), pderr.ErrInstanceMissing)
	require.NoError(t, s.Main().SetAsCurrent())
}

func TestBindRejectsBadNames(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Bind("bad\xff")
	assert.ErrorIs(t, err, pderr.ErrStringEncoding)
	_, err = s.Bind("")
	assert.ErrorIs(t, err, pderr.ErrSubscription)
}

func TestArrays(t *testing.T) {
	s, _ := newSession(t)
	p, err := s.Open("loopback.pd", "")
	require.NoError(t, err)

	require.NoError(t, s.SendFloat("1000-store", 0.25))
	n, err := s.ArraySize("1000-table")
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	require.NoError(t, s.WriteArray("1000-table", 1, []float32{1, 2}))
	dst := make([]float32, 3)
	require.NoError(t, s.ReadArray(dst, "1000-table", 0))
	assert.Equal(t, []float32{0.25, 1, 2}, dst)

	require.NoError(t, s.ResizeArray("1000-table", 2))
	assert.ErrorIs(t, s.ReadArray(dst, "1000-table", 0), pderr.ErrInvalidInput)

	require.NoError(t, p.Close())
	_, err = s.ArraySize("1000-table")
	assert.ErrorIs(t, err, pderr.ErrNotFound)
}

func TestAudio(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Open("loopback.pd", "")
	require.NoError(t, err)
	require.NoError(t, s.Main().InitAudio(1, 1, 44100))

	assert.Equal(t, 4, s.BlockSize())
	assert.Equal(t, 2, s.Ticks(10))

	in := []float32{1, 1, 1, 1}
	out := make([]float32, 4)
	require.NoError(t, s.ComputeAudio(true))
	require.NoError(t, s.ProcessFloat(1, in, out))
	assert.Equal(t, []float32{2, 2, 2, 2}, out)

	require.NoError(t, s.ComputeAudio(false))
	require.NoError(t, s.ProcessFloat(1, in, out))
	assert.Equal(t, []float32{0, 0, 0, 0}, out)

	assert.ErrorIs(t, s.ProcessFloat(2, in, out), pderr.ErrInvalidInput)
}

func TestMIDI(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Open("loopback.pd", "")
	require.NoError(t, err)

	var got []midi.Event
	require.NoError(t, s.Hooks().OnMIDI(func(ev midi.Event) { got = append(got, ev) }))
	require.NoError(t, s.SendMIDI(midi.NoteOnEvent{BaseEvent: midi.BaseEvent{EventChannel: 2}, Pitch: 64, Velocity: 100}))
	require.NoError(t, s.SendMIDI(midi.ControlChangeEvent{Controller: midi.CCSustain, Value: 127}))
	require.NoError(t, s.SendSysEx(0, []byte{0xf0, 0x7d, 0xf7}))
	require.NoError(t, s.SendSysRealtime(0, 0xf8))
	s.DrainMIDIMessages()

	require.Len(t, got, 1)
	assert.Equal(t, midi.NoteOnEvent{BaseEvent: midi.BaseEvent{EventChannel: 2}, Pitch: 64, Velocity: 50}, got[0])
}

func TestInstancesAreIsolated(t *testing.T) {
	s, eng := newSession(t)
	_, err := s.Bind("out")
	require.NoError(t, err)

	second, err := s.NewInstance()
	require.NoError(t, err)
	assert.Len(t, s.Instances(), 2)

	var recvs []string
	require.NoError(t, s.Hooks().OnDouble(func(recv string, f float64) { recvs = append(recvs, recv) }))

	err = second.Do(func() error {
		assert.False(t, s.Exists("out"))
		_, err := s.Bind("level")
		require.NoError(t, err)
		require.NoError(t, s.SendFloat("level", 1))
		assert.ErrorIs(t, s.SendFloat("out", 1), pderr.ErrNotFound)
		s.Drain()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"level"}, recvs)
	assert.Equal(t, eng.MainInstance(), eng.ThisInstance())
}

func TestCloseIsIdempotent(t *testing.T) {
	s, eng := newSession(t)
	_, err := s.Open("loopback.pd", "")
	require.NoError(t, err)
	r, err := s.Bind("out")
	require.NoError(t, err)
	_, err = s.NewInstance()
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.False(t, r.IsBound())
	assert.Equal(t, 1, eng.NumInstances())
	assert.Equal(t, eng.MainInstance(), eng.ThisInstance())
	require.NoError(t, s.Close())
}

// releaseLog records the current instance at each patch close and unbind.
type releaseLog struct {
	*sim.Engine
	closed, unbound []native.Instance
}

func (e *releaseLog) ClosePatch(id native.Patch) {
	e.closed = append(e.closed, e.ThisInstance())
	e.Engine.ClosePatch(id)
}

func (e *releaseLog) Unbind(b native.Binding) {
	e.unbound = append(e.unbound, e.ThisInstance())
	e.Engine.Unbind(b)
}

func TestCloseReleasesHandlesInOwningInstance(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	eng := &releaseLog{Engine: sim.New()}
	eng.Define("loopback.pd", loopback)
	s, err := New(eng)
	require.NoError(t, err)

	second, err := s.NewInstance()
	require.NoError(t, err)
	require.NoError(t, second.Do(func() error {
		if _, err := s.Open("loopback.pd", ""); err != nil {
			return err
		}
		_, err := s.Bind("out")
		return err
	}))
	_, err = s.Bind("out")
	require.NoError(t, err)
	require.True(t, s.Main().IsCurrent())

	require.NoError(t, s.Close())
	assert.Equal(t, []native.Instance{second.Ptr()}, eng.closed)
	assert.Equal(t, []native.Instance{second.Ptr(), s.Main().Ptr()}, eng.unbound)
}

func TestListenerMayDrain(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Open("loopback.pd", "")
	require.NoError(t, err)
	_, err = s.Bind("out")
	require.NoError(t, err)

	var got []string
	require.NoError(t, s.Hooks().OnBang(func(recv string) {
		got = append(got, recv)
		s.Drain()
	}))
	require.NoError(t, s.SendBang("in"))
	require.NoError(t, s.SendBang("in"))

	s.Drain()
	assert.Equal(t, []string{"out", "out"}, got)
}

func TestSysExAndRealtimeReachThePatch(t *testing.T) {
	s, eng := newSession(t)
	var got []midi.Event
	eng.Define("monitor.pd", sim.Program{
		MIDI: func(_ *sim.Context, ev midi.Event) { got = append(got, ev) },
	})
	_, err := s.Open("monitor.pd", "")
	require.NoError(t, err)

	require.NoError(t, s.SendMIDI(midi.ByteEvent{PortNumber: 0, Byte: 0xf0}))
	require.NoError(t, s.SendSysEx(0, []byte{0xf0}))
	require.NoError(t, s.SendSysRealtime(0, 0xf0))
	require.NoError(t, s.SendMIDI(midi.SysExEvent{PortNumber: 1, Byte: 0xf7}))
	require.NoError(t, s.SendMIDI(midi.RealtimeEvent{PortNumber: 1, Byte: 0xf8}))

	assert.Equal(t, []midi.Event{
		midi.ByteEvent{PortNumber: 0, Byte: 0xf0},
		midi.SysExEvent{PortNumber: 0, Byte: 0xf0},
		midi.RealtimeEvent{PortNumber: 0, Byte: 0xf0},
		midi.SysExEvent{PortNumber: 1, Byte: 0xf7},
		midi.RealtimeEvent{PortNumber: 1, Byte: 0xf8},
	}, got)
}
