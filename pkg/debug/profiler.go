package debug

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Profiler accumulates wall-clock timings of named sections such as
// "process" and "drain.control". Safe for concurrent use.
type Profiler struct {
	mu       sync.Mutex
	sections map[string]*Stats
	enabled  atomic.Bool
}

// Stats holds timing statistics for one section.
type Stats struct {
	Name  string
	Count uint64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Last  time.Duration
}

// Average returns the mean duration of the section.
func (s Stats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Load returns the average duration as a percentage of budget, e.g. the
// wall-clock length of one audio block.
func (s Stats) Load(budget time.Duration) float64 {
	if budget <= 0 {
		return 0
	}
	return float64(s.Average()) / float64(budget) * 100.0
}

// NewProfiler creates an enabled profiler.
func NewProfiler() *Profiler {
	p := &Profiler{sections: make(map[string]*Stats)}
	p.enabled.Store(true)
	return p
}

// SetEnabled enables or disables recording.
func (p *Profiler) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

// Start begins timing a section and returns the function that stops it.
// A nil profiler is valid and records nothing.
func (p *Profiler) Start(name string) func() {
	if p == nil || !p.enabled.Load() {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.record(name, time.Since(start))
	}
}

func (p *Profiler) record(name string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sections[name]
	if !ok {
		s = &Stats{Name: name, Min: elapsed, Max: elapsed}
		p.sections[name] = s
	}
	s.Count++
	s.Total += elapsed
	s.Last = elapsed
	if elapsed < s.Min {
		s.Min = elapsed
	}
	if elapsed > s.Max {
		s.Max = elapsed
	}
}

// Stats returns a copy of the statistics for a section.
func (p *Profiler) Stats(name string) (Stats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sections[name]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// All returns copies of every section's statistics ordered by name.
func (p *Profiler) All() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Stats, 0, len(p.sections))
	for _, s := range p.sections {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset clears all sections.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sections = make(map[string]*Stats)
}

// Report renders a plain-text table of all sections.
func (p *Profiler) Report() string {
	all := p.All()
	if len(all) == 0 {
		return "no measurements recorded\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %8s %12s %12s %12s\n", "section", "count", "avg", "min", "max")
	for _, s := range all {
		fmt.Fprintf(&b, "%-16s %8d %12v %12v %12v\n", s.Name, s.Count, s.Average(), s.Min, s.Max)
	}
	return b.String()
}

// Log writes one debug entry per section.
func (p *Profiler) Log(l *zap.Logger) {
	for _, s := range p.All() {
		l.Debug("profile",
			zap.String("section", s.Name),
			zap.Uint64("count", s.Count),
			zap.Duration("avg", s.Average()),
			zap.Duration("max", s.Max))
	}
}
