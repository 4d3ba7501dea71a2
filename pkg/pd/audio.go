package pd

import "github.com/justyntemme/gopd/pkg/audio"

// BlockSize returns the engine's frames per tick.
func (s *Session) BlockSize() int { return s.eng.BlockSize() }

// InitAudio configures the current instance's audio.
func (s *Session) InitAudio(inputs, outputs, sampleRate int) error {
	return engineErr("pd.InitAudio", "", s.eng.InitAudio(inputs, outputs, sampleRate))
}

// ProcessFloat runs ticks blocks of interleaved float samples.
func (s *Session) ProcessFloat(ticks int, in, out []float32) error {
	return engineErr("pd.ProcessFloat", "", s.eng.ProcessFloat(ticks, in, out))
}

// ProcessDouble runs ticks blocks of interleaved double samples.
func (s *Session) ProcessDouble(ticks int, in, out []float64) error {
	return engineErr("pd.ProcessDouble", "", s.eng.ProcessDouble(ticks, in, out))
}

// ProcessShort runs ticks blocks of interleaved 16-bit samples.
func (s *Session) ProcessShort(ticks int, in, out []int16) error {
	return engineErr("pd.ProcessShort", "", s.eng.ProcessShort(ticks, in, out))
}

// ProcessRaw runs one tick of planar float samples.
func (s *Session) ProcessRaw(in, out []float32) error {
	return engineErr("pd.ProcessRaw", "", s.eng.ProcessRaw(in, out))
}

// Ticks returns how many whole ticks fit in frames.
func (s *Session) Ticks(frames int) int {
	n, _ := audio.Ticks(frames, s.eng.BlockSize())
	return n
}
