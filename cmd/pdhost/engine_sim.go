//go:build !(cgo && libpd)

package main

import (
	"math"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/debug"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/native/sim"
)

const backendName = "sim"

// newEngine returns the in-process engine with the built-in patches.
func newEngine() native.Engine {
	eng := sim.New(sim.WithLogger(debug.Named("sim")))
	for name, prog := range builtinPatches {
		eng.Define(name, prog)
	}
	return eng
}

var builtinPatches = map[string]sim.Program{
	// echo.pd prints whatever arrives on "in", forwards it to "out" and
	// echoes note-ons back to the host.
	"echo.pd": {
		Receivers: map[string]sim.Receiver{
			"in": func(c *sim.Context, m sim.Message) {
				c.Print("echo: " + describe(m))
				c.Send("out", m)
			},
		},
		MIDI: func(c *sim.Context, ev midi.Event) {
			if n, ok := ev.(midi.NoteOnEvent); ok {
				c.NoteOut(n.EventChannel, n.Pitch, n.Velocity)
			}
		},
	},

	// tone.pd plays a sine on every output channel. "freq" and "amp" set
	// its frequency and level; "$0-state" holds phase, frequency and level.
	"tone.pd": {
		Arrays: map[string]int{"$0-state": 3},
		Receivers: map[string]sim.Receiver{
			"freq": func(c *sim.Context, m sim.Message) {
				if v, ok := m.Float(); ok {
					c.Array("$0-state")[1] = float32(v)
				}
			},
			"amp": func(c *sim.Context, m sim.Message) {
				if v, ok := m.Float(); ok {
					c.Array("$0-state")[2] = float32(v)
				}
			},
		},
		Load: func(c *sim.Context) {
			st := c.Array("$0-state")
			st[1], st[2] = 440, 0.5
			c.Print("tone: ready")
		},
		DSP: func(c *sim.Context, in, out []float32) {
			_, chans := c.Channels()
			if chans == 0 {
				return
			}
			st := c.Array("$0-state")
			step := 2 * math.Pi * float64(st[1]) / float64(c.SampleRate())
			phase := float64(st[0])
			for i := 0; i < len(out)/chans; i++ {
				v := st[2] * float32(math.Sin(phase))
				for ch := 0; ch < chans; ch++ {
					out[i*chans+ch] += v
				}
				phase = math.Mod(phase+step, 2*math.Pi)
			}
			st[0] = float32(phase)
			c.Float("level", float64(st[2]))
		},
	},
}

// describe formats a message the way [print] does.
func describe(m sim.Message) string {
	switch {
	case len(m.Args) == 0:
		return m.Selector
	case m.Selector == "float", m.Selector == "list" && m.Args[0].IsFloat():
		return atom.Join(m.Args)
	default:
		return m.Selector + " " + atom.Join(m.Args)
	}
}
