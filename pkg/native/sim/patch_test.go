package sim

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
)

// echo forwards everything sent to "in" to "out".
var echo = Program{
	Receivers: map[string]Receiver{
		"in": func(c *Context, m Message) { c.Send("out", m) },
	},
}

type recorded struct {
	kind  native.HookKind
	recv  string
	text  string
	value float64
	atoms int
}

func record(e *Engine, into *[]recorded, kinds ...native.HookKind) {
	for _, k := range kinds {
		k := k
		e.SetHook(k, func(f *native.Frame) {
			*into = append(*into, recorded{
				kind:  k,
				recv:  string(f.Recv),
				text:  string(f.Text),
				value: f.Float,
				atoms: len(f.Atoms),
			})
		})
	}
}

func TestOpenDefinedPatch(t *testing.T) {
	e := newTestEngine(t)
	e.Define("echo.pd", echo)

	p, err := e.OpenPatch("echo.pd", "/anywhere")
	require.NoError(t, err)
	assert.NotZero(t, p)
	assert.Equal(t, 1000, e.DollarZero(p))

	q, err := e.OpenPatch("echo.pd", "")
	require.NoError(t, err)
	assert.Equal(t, 1001, e.DollarZero(q))
	assert.True(t, e.Exists("in"))

	e.ClosePatch(p)
	e.ClosePatch(q)
	assert.False(t, e.Exists("in"))
	assert.Zero(t, e.DollarZero(p))
}

func TestOpenPatchFromFile(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.pd"), []byte("#N canvas;\n"), 0o644))

	_, err := e.OpenPatch("blank.pd", dir)
	require.NoError(t, err)

	e.AddToSearchPath(dir)
	_, err = e.OpenPatch("blank.pd", "")
	require.NoError(t, err)

	_, err = e.OpenPatch("nope.pd", dir)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSendWithoutReceiver(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.SendBang("nobody"), native.ErrNoReceiver)
	assert.NoError(t, e.SendFloat("pd", 1))
}

func TestBindAndDrainInOrder(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.QueuedInit())
	e.Define("echo.pd", echo)
	_, err := e.OpenPatch("echo.pd", "")
	require.NoError(t, err)

	b, err := e.Bind("out")
	require.NoError(t, err)

	var got []recorded
	record(e, &got, native.HookBang, native.HookFloat, native.HookSymbol, native.HookList, native.HookMessage)

	sym, err := e.Gensym("x")
	require.NoError(t, err)
	require.NoError(t, e.SendBang("in"))
	require.NoError(t, e.SendFloat("in", 2.5))
	require.NoError(t, e.SendSymbol("in", "hello"))
	require.NoError(t, e.SendList("in", []native.Atom{{Type: native.AtomFloat, Float: 1}, {Type: native.AtomSymbol, Sym: sym}}))
	require.NoError(t, e.SendMessage("in", "set", []native.Atom{{Type: native.AtomFloat, Float: 3}}))
	assert.Empty(t, got, "hooks only run on drain")

	e.ReceiveMessages()
	require.Len(t, got, 5)
	assert.Equal(t, recorded{kind: native.HookBang, recv: "out"}, got[0])
	assert.Equal(t, recorded{kind: native.HookFloat, recv: "out", value: 2.5}, got[1])
	assert.Equal(t, recorded{kind: native.HookSymbol, recv: "out", text: "hello"}, got[2])
	assert.Equal(t, recorded{kind: native.HookList, recv: "out", atoms: 2}, got[3])
	assert.Equal(t, recorded{kind: native.HookMessage, recv: "out", text: "set", atoms: 1}, got[4])

	e.Unbind(b)
	assert.ErrorIs(t, e.SendBang("out"), native.ErrNoReceiver)
}

func TestDoubleHookPreferredForFloats(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.QueuedInit())
	_, err := e.Bind("out")
	require.NoError(t, err)

	var floats, doubles int
	e.SetHook(native.HookFloat, func(*native.Frame) { floats++ })
	e.SetHook(native.HookDouble, func(*native.Frame) { doubles++ })

	require.NoError(t, e.SendFloat("out", 1))
	e.ReceiveMessages()
	assert.Equal(t, 0, floats)
	assert.Equal(t, 1, doubles)

	e.SetHook(native.HookDouble, nil)
	require.NoError(t, e.SendFloat("out", 1))
	e.ReceiveMessages()
	assert.Equal(t, 1, floats)
}

func TestFullQueueDropsEvents(t *testing.T) {
	e := newTestEngine(t, WithQueueCapacity(64, 64))
	require.NoError(t, e.QueuedInit())
	_, err := e.Bind("out")
	require.NoError(t, err)

	var got []recorded
	record(e, &got, native.HookFloat)

	// Each float record takes 4+1+4+3+8 = 20 bytes, so three fit.
	for i := 0; i < 5; i++ {
		require.NoError(t, e.SendFloat("out", float64(i)))
	}
	assert.Equal(t, uint64(2), e.Dropped())

	e.ReceiveMessages()
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, float64(i), r.value)
	}
}

func TestEventsWithoutQueueAreDropped(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Bind("out")
	require.NoError(t, err)
	require.NoError(t, e.SendBang("out"))
	assert.Equal(t, uint64(1), e.Dropped())
}

func TestDollarZeroReceivers(t *testing.T) {
	e := newTestEngine(t)
	e.Define("local.pd", Program{
		Receivers: map[string]Receiver{
			"$0-set": func(c *Context, m Message) {
				v, _ := m.Float()
				c.Array("$0-table")[0] = float32(v)
			},
		},
		Arrays: map[string]int{"$0-table": 4},
	})
	p, err := e.OpenPatch("local.pd", "")
	require.NoError(t, err)

	require.NoError(t, e.SendFloat("1000-set", 0.5))
	dst := make([]float32, 1)
	require.NoError(t, e.ReadArray(dst, "1000-table", 0))
	assert.Equal(t, float32(0.5), dst[0])

	e.ClosePatch(p)
	_, err = e.ArraySize("1000-table")
	assert.ErrorIs(t, err, native.ErrNoArray)
}

func TestRecursionIsBounded(t *testing.T) {
	e := newTestEngine(t)
	e.Define("loop.pd", Program{
		Receivers: map[string]Receiver{
			"loop": func(c *Context, m Message) { c.Send("loop", m) },
		},
	})
	_, err := e.OpenPatch("loop.pd", "")
	require.NoError(t, err)
	assert.NoError(t, e.SendBang("loop"))
}

func TestLoadAndPrint(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.QueuedInit())
	e.Define("hello.pd", Program{
		Load: func(c *Context) { c.Print("hello") },
	})

	var got []recorded
	record(e, &got, native.HookPrint)
	_, err := e.OpenPatch("hello.pd", "")
	require.NoError(t, err)
	e.ReceiveMessages()
	require.Len(t, got, 1)
	assert.Equal(t, "hello\n", got[0].text)
}

func TestMIDIRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.QueuedInit())
	e.Define("thru.pd", Program{
		MIDI: func(c *Context, ev midi.Event) {
			if n, ok := ev.(midi.NoteOnEvent); ok {
				c.NoteOut(n.EventChannel, n.Pitch+12, n.Velocity)
			}
		},
	})
	_, err := e.OpenPatch("thru.pd", "")
	require.NoError(t, err)

	var frames []native.Frame
	e.SetHook(native.HookNoteOn, func(f *native.Frame) { frames = append(frames, *f) })

	require.NoError(t, e.NoteOn(17, 60, 100))
	e.ReceiveMessages()
	assert.Empty(t, frames, "MIDI goes to its own queue")

	e.ReceiveMIDIMessages()
	require.Len(t, frames, 1)
	assert.Equal(t, 17, frames[0].Channel)
	assert.Equal(t, 72, frames[0].Number)
	assert.Equal(t, 100, frames[0].Value)

	assert.ErrorIs(t, e.NoteOn(0, 128, 0), native.ErrBadArgument)
	assert.ErrorIs(t, e.PitchBend(0, 9000), native.ErrBadArgument)
}

func TestProcessRunsDSPWhenOn(t *testing.T) {
	e := newTestEngine(t, WithBlockSize(4))
	e.Define("gain.pd", Program{
		DSP: func(c *Context, in, out []float32) {
			for i := range out {
				out[i] += in[i] * 2
			}
		},
	})
	_, err := e.OpenPatch("gain.pd", "")
	require.NoError(t, err)
	require.NoError(t, e.InitAudio(1, 1, 48000))

	in := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	out := make([]float32, 8)
	require.NoError(t, e.ProcessFloat(2, in, out))
	assert.Equal(t, make([]float32, 8), out, "DSP is off")

	require.NoError(t, e.SendMessage("pd", "dsp", []native.Atom{{Type: native.AtomFloat, Float: 1}}))
	require.NoError(t, e.ProcessFloat(2, in, out))
	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12, 14, 16}, out)

	shortOut := make([]int16, 4)
	require.NoError(t, e.ProcessShort(1, []int16{100, 200, 300, 400}, shortOut))
	assert.InDelta(t, 200, shortOut[0], 1)

	doubleOut := make([]float64, 4)
	require.NoError(t, e.ProcessDouble(1, []float64{0.25, 0, 0, 0}, doubleOut))
	assert.Equal(t, 0.5, doubleOut[0])

	assert.ErrorIs(t, e.ProcessFloat(3, in, out), native.ErrBadArgument)
}

func TestProcessRawIsPlanar(t *testing.T) {
	e := newTestEngine(t, WithBlockSize(2))
	e.Define("swap.pd", Program{
		DSP: func(c *Context, in, out []float32) {
			for i := 0; i < len(out); i += 2 {
				out[i], out[i+1] = in[i+1], in[i]
			}
		},
	})
	_, err := e.OpenPatch("swap.pd", "")
	require.NoError(t, err)
	require.NoError(t, e.InitAudio(2, 2, 44100))
	require.NoError(t, e.SendMessage("pd", "dsp", []native.Atom{{Type: native.AtomFloat, Float: 1}}))

	out := make([]float32, 4)
	require.NoError(t, e.ProcessRaw([]float32{1, 2, 10, 20}, out))
	assert.Equal(t, []float32{10, 20, 1, 2}, out)
}

func TestArrays(t *testing.T) {
	e := newTestEngine(t)
	e.Define("table.pd", Program{Arrays: map[string]int{"t": 3}})
	_, err := e.OpenPatch("table.pd", "")
	require.NoError(t, err)

	require.NoError(t, e.WriteArray("t", 1, []float32{1, 2}))
	assert.ErrorIs(t, e.WriteArray("t", 2, []float32{1, 2}), native.ErrOutOfRange)

	require.NoError(t, e.ResizeArray("t", 5))
	n, err := e.ArraySize("t")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	dst := make([]float32, 5)
	require.NoError(t, e.ReadArray(dst, "t", 0))
	assert.Equal(t, []float32{0, 1, 2, 0, 0}, dst)
	assert.ErrorIs(t, e.ReadArray(dst, "t", 1), native.ErrOutOfRange)
	assert.ErrorIs(t, e.ReadArray(dst, "missing", 0), native.ErrNoArray)
}

func TestMessageArgsUseAtoms(t *testing.T) {
	m := Message{Selector: "list", Args: []atom.Atom{atom.Symbol("a"), atom.Float(1)}}
	_, ok := m.Float()
	assert.False(t, ok)
	s, ok := m.Symbol()
	assert.True(t, ok)
	assert.Equal(t, "a", s)
}

func TestCloseAndUnbindStayInCurrentInstance(t *testing.T) {
	e := newTestEngine(t)
	e.Define("echo.pd", echo)
	main := e.MainInstance()
	second := e.NewInstance()

	e.SetInstance(second)
	p, err := e.OpenPatch("echo.pd", "")
	require.NoError(t, err)
	b, err := e.Bind("out")
	require.NoError(t, err)

	e.SetInstance(main)
	mb, err := e.Bind("out")
	require.NoError(t, err)
	assert.Equal(t, b, mb, "binding identifiers are per instance")

	e.ClosePatch(p)
	assert.True(t, e.Exists("out"))

	e.SetInstance(second)
	assert.True(t, e.Exists("in"), "patch of another instance stays open")
	e.ClosePatch(p)
	e.Unbind(b)
	assert.False(t, e.Exists("in"))
	assert.False(t, e.Exists("out"))

	e.SetInstance(main)
	assert.True(t, e.Exists("out"))
}

func TestDrainFromInsideHook(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.QueuedInit())
	e.Define("echo.pd", echo)
	_, err := e.OpenPatch("echo.pd", "")
	require.NoError(t, err)
	_, err = e.Bind("out")
	require.NoError(t, err)

	bangs := 0
	e.SetHook(native.HookBang, func(*native.Frame) {
		bangs++
		e.ReceiveMessages()
		e.ReceiveMIDIMessages()
	})
	require.NoError(t, e.SendBang("in"))
	require.NoError(t, e.SendBang("in"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		e.SetInstance(e.MainInstance())
		e.ReceiveMessages()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("drain called from a hook did not return")
	}
	assert.Equal(t, 2, bangs)
}
