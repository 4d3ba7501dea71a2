package sim

import (
	"github.com/justyntemme/gopd/pkg/audio"
	"github.com/justyntemme/gopd/pkg/native"
)

// InitAudio sets the current instance's channel counts and sample rate.
func (e *Engine) InitAudio(inChannels, outChannels, sampleRate int) error {
	if inChannels < 0 || outChannels < 0 || sampleRate <= 0 {
		return native.ErrBadArgument
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return native.ErrNoInstance
	}
	inst.inChans = inChannels
	inst.outChans = outChannels
	inst.sampleRate = sampleRate
	inst.scratchIn = make([]float32, inChannels*inst.blockSize)
	inst.scratchOut = make([]float32, outChannels*inst.blockSize)
	return nil
}

// BlockSize returns the number of frames per tick.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// ProcessFloat runs ticks blocks of interleaved float samples.
func (e *Engine) ProcessFloat(ticks int, in, out []float32) error {
	return e.process(ticks, len(in), len(out), func(inst *instance, t int) {
		n := inst.inChans * inst.blockSize
		copy(inst.scratchIn, in[t*n:(t+1)*n])
	}, func(inst *instance, t int) {
		n := inst.outChans * inst.blockSize
		copy(out[t*n:(t+1)*n], inst.scratchOut)
	})
}

// ProcessDouble runs ticks blocks of interleaved double samples.
func (e *Engine) ProcessDouble(ticks int, in, out []float64) error {
	return e.process(ticks, len(in), len(out), func(inst *instance, t int) {
		n := inst.inChans * inst.blockSize
		audio.Float64ToFloat32(inst.scratchIn, in[t*n:(t+1)*n])
	}, func(inst *instance, t int) {
		n := inst.outChans * inst.blockSize
		audio.Float32ToFloat64(out[t*n:(t+1)*n], inst.scratchOut)
	})
}

// ProcessShort runs ticks blocks of interleaved 16-bit samples.
func (e *Engine) ProcessShort(ticks int, in, out []int16) error {
	return e.process(ticks, len(in), len(out), func(inst *instance, t int) {
		n := inst.inChans * inst.blockSize
		audio.Int16ToFloat32(inst.scratchIn, in[t*n:(t+1)*n])
	}, func(inst *instance, t int) {
		n := inst.outChans * inst.blockSize
		audio.Float32ToInt16(out[t*n:(t+1)*n], inst.scratchOut)
	})
}

// ProcessRaw runs one tick of planar float samples.
func (e *Engine) ProcessRaw(in, out []float32) error {
	return e.process(1, len(in), len(out), func(inst *instance, _ int) {
		audio.Interleave(inst.scratchIn, in, inst.inChans)
	}, func(inst *instance, _ int) {
		audio.Deinterleave(out, inst.scratchOut, inst.outChans)
	})
}

// process runs the tick loop. The engine lock is held for the whole call,
// so the simulated audio thread blocks other engine callers while it runs.
func (e *Engine) process(ticks, inLen, outLen int, load func(*instance, int), store func(*instance, int)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return native.ErrNoInstance
	}
	if ticks < 0 || inst.sampleRate == 0 {
		return native.ErrBadArgument
	}
	if inLen < ticks*inst.inChans*inst.blockSize || outLen < ticks*inst.outChans*inst.blockSize {
		return native.ErrBadArgument
	}

	patches := inst.sortedPatches()
	for t := 0; t < ticks; t++ {
		load(inst, t)
		audio.Clear(inst.scratchOut)
		if inst.dsp {
			for _, p := range patches {
				if p.program.DSP != nil {
					p.program.DSP(e.context(inst, p), inst.scratchIn, inst.scratchOut)
				}
			}
		}
		inst.ticks++
		store(inst, t)
	}
	return nil
}
