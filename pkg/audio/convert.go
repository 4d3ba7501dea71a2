// Package audio converts between the sample layouts hosts hand to the
// engine: interleaved or planar, float32, float64 or int16.
package audio

import "math"

// Interleave writes planar samples (all of channel 0, then channel 1, ...)
// into dst as interleaved frames. len(planar) must be a multiple of channels.
func Interleave(dst, planar []float32, channels int) {
	if channels <= 0 {
		return
	}
	frames := len(planar) / channels
	if len(dst) < frames*channels {
		frames = len(dst) / channels
	}
	for ch := 0; ch < channels; ch++ {
		src := planar[ch*(len(planar)/channels):]
		for i := 0; i < frames; i++ {
			dst[i*channels+ch] = src[i]
		}
	}
}

// Deinterleave writes interleaved frames into dst as planar samples.
func Deinterleave(dst, interleaved []float32, channels int) {
	if channels <= 0 {
		return
	}
	frames := len(interleaved) / channels
	if len(dst) < frames*channels {
		frames = len(dst) / channels
	}
	stride := len(dst) / channels
	for ch := 0; ch < channels; ch++ {
		out := dst[ch*stride:]
		for i := 0; i < frames; i++ {
			out[i] = interleaved[i*channels+ch]
		}
	}
}

// Int16ToFloat32 converts 16-bit PCM to floats in [-1, 1).
func Int16ToFloat32(dst []float32, src []int16) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = float32(src[i]) / 32768.0
	}
}

// Float32ToInt16 converts floats to 16-bit PCM, clipping out-of-range samples.
func Float32ToInt16(dst []int16, src []float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		v := float64(src[i]) * 32767.0
		switch {
		case math.IsNaN(v):
			dst[i] = 0
		case v > 32767:
			dst[i] = 32767
		case v < -32768:
			dst[i] = -32768
		default:
			dst[i] = int16(math.Round(v))
		}
	}
}

// Float64ToFloat32 narrows samples.
func Float64ToFloat32(dst []float32, src []float64) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = float32(src[i])
	}
}

// Float32ToFloat64 widens samples.
func Float32ToFloat64(dst []float64, src []float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = float64(src[i])
	}
}

// Clear zeroes a buffer.
func Clear(buffer []float32) {
	for i := range buffer {
		buffer[i] = 0
	}
}

// Peak finds the maximum absolute value in a buffer.
func Peak(buffer []float32) float32 {
	peak := float32(0)
	for _, sample := range buffer {
		abs := float32(math.Abs(float64(sample)))
		if abs > peak {
			peak = abs
		}
	}
	return peak
}

// RMS calculates the root mean square of a buffer.
func RMS(buffer []float32) float32 {
	if len(buffer) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range buffer {
		sum += float64(sample) * float64(sample)
	}
	return float32(math.Sqrt(sum / float64(len(buffer))))
}

// Ticks returns how many whole ticks of blockSize fit in frames, and the
// number of leftover frames.
func Ticks(frames, blockSize int) (ticks, rest int) {
	if blockSize <= 0 {
		return 0, frames
	}
	return frames / blockSize, frames % blockSize
}
