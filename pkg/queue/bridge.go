// Package queue moves events from the audio thread to host listeners.
//
// The engine writes every event produced while processing into fixed-size
// per-instance ring buffers, one for control messages and one for MIDI.
// Nothing reaches a listener until a drain call empties a buffer, in
// production order, into the hooks installed by a hook.Registry. Drain calls
// run on the caller's thread against the instance current there. When a
// buffer is full the engine drops the event.
package queue

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/debug"
	"github.com/justyntemme/gopd/pkg/hook"
	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/pderr"
)

// DefaultInterval is the drain period used by Run when none is given.
const DefaultInterval = 5 * time.Millisecond

// Init allocates the ring buffers of the current instance.
func Init(eng native.Engine) error {
	if err := eng.QueuedInit(); err != nil {
		if errors.Is(err, native.ErrNoInstance) {
			return pderr.InstanceMissing("queue.Init")
		}
		return pderr.Wrap("queue.Init", pderr.KindInitialization, err, "ring buffer setup failed")
	}
	return nil
}

// Release frees the ring buffers of the current instance. Undrained events
// are lost.
func Release(eng native.Engine) {
	eng.QueuedRelease()
}

// Current is something that can be made the calling thread's current
// instance.
type Current interface {
	SetAsCurrent() error
}

// Bridge drains queued events into a hook registry's listeners.
type Bridge struct {
	eng      native.Engine
	hooks    *hook.Registry
	log      *zap.Logger
	profiler *debug.Profiler

	control atomic.Uint64
	midi    atomic.Uint64
}

// New creates a bridge. hooks may be nil if listeners are installed on the
// engine by other means.
func New(eng native.Engine, hooks *hook.Registry) *Bridge {
	return &Bridge{
		eng:   eng,
		hooks: hooks,
		log:   debug.Named("queue"),
	}
}

// SetProfiler times every drain under the "drain.control" and "drain.midi"
// sections.
func (b *Bridge) SetProfiler(p *debug.Profiler) {
	b.profiler = p
}

// Hooks returns the registry whose listeners receive drained events.
func (b *Bridge) Hooks() *hook.Registry {
	return b.hooks
}

// DrainControlMessages delivers every queued control event of the current
// instance to its listener, in the order the events were produced.
func (b *Bridge) DrainControlMessages() {
	defer b.profiler.Start("drain.control")()
	b.eng.ReceiveMessages()
	b.control.Add(1)
}

// DrainMIDIMessages delivers every queued MIDI event of the current instance.
func (b *Bridge) DrainMIDIMessages() {
	defer b.profiler.Start("drain.midi")()
	b.eng.ReceiveMIDIMessages()
	b.midi.Add(1)
}

// Drain empties the control queue and then the MIDI queue.
func (b *Bridge) Drain() {
	b.DrainControlMessages()
	b.DrainMIDIMessages()
}

// Drains returns how many control and MIDI drains have run.
func (b *Bridge) Drains() (control, midi uint64) {
	return b.control.Load(), b.midi.Load()
}

// Run drains both queues of cur every interval until ctx is done. It locks
// its goroutine to an OS thread so cur stays current between drains, and
// drains once more before returning ctx.Err().
func (b *Bridge) Run(ctx context.Context, cur Current, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := cur.SetAsCurrent(); err != nil {
		return err
	}
	b.log.Debug("drain loop started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.Drain()
			b.log.Debug("drain loop stopped")
			return ctx.Err()
		case <-ticker.C:
			b.Drain()
		}
	}
}
