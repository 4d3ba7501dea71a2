package debug

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler(t *testing.T) {
	t.Run("Records", func(t *testing.T) {
		p := NewProfiler()
		for i := 0; i < 3; i++ {
			stop := p.Start("drain.control")
			time.Sleep(time.Millisecond)
			stop()
		}

		s, ok := p.Stats("drain.control")
		require.True(t, ok)
		assert.Equal(t, uint64(3), s.Count)
		assert.GreaterOrEqual(t, s.Min, time.Millisecond)
		assert.GreaterOrEqual(t, s.Max, s.Min)
		assert.Equal(t, s.Total/3, s.Average())
	})

	t.Run("Disabled", func(t *testing.T) {
		p := NewProfiler()
		p.SetEnabled(false)
		p.Start("process")()
		_, ok := p.Stats("process")
		assert.False(t, ok)
	})

	t.Run("NilProfiler", func(t *testing.T) {
		var p *Profiler
		assert.NotPanics(t, func() { p.Start("process")() })
	})

	t.Run("Report", func(t *testing.T) {
		p := NewProfiler()
		assert.Equal(t, "no measurements recorded\n", p.Report())
		p.Start("b")()
		p.Start("a")()
		all := p.All()
		require.Len(t, all, 2)
		assert.Equal(t, "a", all[0].Name)
		assert.Contains(t, p.Report(), "section")

		p.Reset()
		assert.Empty(t, p.All())
	})
}

func TestStatsLoad(t *testing.T) {
	s := Stats{Count: 2, Total: 2 * time.Millisecond}
	assert.InDelta(t, 50.0, s.Load(2*time.Millisecond), 0.001)
	assert.Equal(t, 0.0, s.Load(0))
}
