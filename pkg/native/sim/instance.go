package sim

import (
	"sync"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/native"
)

// instance is the state of one simulated engine instance.
type instance struct {
	ptr    native.Instance
	number int
	symtab map[string]native.Symbol

	data uintptr
	free native.FreeFunc

	control *ring
	midi    *ring
	enc     encoder
	drainMu sync.Mutex
	drain   []byte
	frame   native.Frame

	patches    map[native.Patch]*patch
	nextPatch  uintptr
	dollarZero int
	receivers  map[string][]route
	bindings   map[native.Binding]string
	bound      map[string]int
	nextBind   uintptr
	arrays     map[string][]float32
	depth      int

	blockSize  int
	inChans    int
	outChans   int
	sampleRate int
	dsp        bool
	ticks      uint64
	scratchIn  []float32
	scratchOut []float32
}

func newInstance(ptr native.Instance, number, blockSize int) *instance {
	return &instance{
		ptr:        ptr,
		number:     number,
		symtab:     make(map[string]native.Symbol),
		patches:    make(map[native.Patch]*patch),
		nextPatch:  uintptr(ptr) << 8,
		dollarZero: 1000,
		receivers:  make(map[string][]route),
		bindings:   make(map[native.Binding]string),
		bound:      make(map[string]int),
		nextBind:   uintptr(ptr)<<8 | 0x80,
		arrays:     make(map[string][]float32),
		blockSize:  blockSize,
	}
}

// QueuedInit allocates the current instance's ring buffers.
func (e *Engine) QueuedInit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return native.ErrNoInstance
	}
	if inst.control == nil {
		inst.control = newRing(e.controlCap)
		inst.midi = newRing(e.midiCap)
	}
	return nil
}

// QueuedRelease frees the current instance's ring buffers. Undrained events are lost.
func (e *Engine) QueuedRelease() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if inst := e.currentLocked(); inst != nil {
		inst.control = nil
		inst.midi = nil
	}
}

// ReceiveMessages drains the current instance's control queue into the hooks.
func (e *Engine) ReceiveMessages() {
	e.receive(false)
}

// ReceiveMIDIMessages drains the current instance's MIDI queue into the hooks.
func (e *Engine) ReceiveMIDIMessages() {
	e.receive(true)
}

func (e *Engine) receive(midi bool) {
	e.mu.RLock()
	inst := e.currentLocked()
	var r *ring
	if inst != nil {
		r = inst.control
		if midi {
			r = inst.midi
		}
	}
	e.mu.RUnlock()
	if r == nil {
		return
	}

	// Hooks run without the engine lock so they may call back into the engine.
	// A drain started while one is running, from a hook or another thread,
	// returns at once and leaves the queue to the running drain.
	if !inst.drainMu.TryLock() {
		return
	}
	defer inst.drainMu.Unlock()
	for {
		body, ok := r.readRecord(&inst.drain)
		if !ok {
			return
		}
		kind, ok := decodeFrame(body, &inst.frame)
		if !ok {
			e.log.Warn("sim: corrupt queue record", zap.Stringer("kind", kind))
			continue
		}
		if kind == native.HookFloat {
			if h := e.hook(native.HookDouble); h != nil {
				h(&inst.frame)
				continue
			}
		}
		if h := e.hook(kind); h != nil {
			h(&inst.frame)
		}
	}
}

// enqueue writes the record being built in inst.enc. Called with e.mu held
// by the producing thread.
func (e *Engine) enqueue(inst *instance, midi bool) {
	r := inst.control
	if midi {
		r = inst.midi
	}
	if r == nil || !r.write(inst.enc.finish()) {
		e.dropped.Add(1)
	}
}
