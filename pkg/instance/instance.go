// Package instance creates engine instances and manages which one is
// current on each OS thread.
//
// Every engine call acts on the instance current on the calling thread.
// Goroutines move between threads, so code that sets an instance current
// and then calls the engine must hold runtime.LockOSThread for the whole
// sequence. Do wraps that protocol.
package instance

import (
	"errors"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/debug"
	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/pderr"
	"github.com/justyntemme/gopd/pkg/queue"
)

// AudioConfig is an instance's audio setup.
type AudioConfig struct {
	Inputs     int
	Outputs    int
	SampleRate int
}

// Instance is one isolated engine instance.
type Instance struct {
	eng    native.Engine
	ptr    native.Instance
	number int
	main   bool

	mu     sync.Mutex
	closed bool
	audio  *AudioConfig
}

// createMu serializes the main-or-secondary decision in Create.
var createMu sync.Mutex

// Create makes a new instance. The first instance initializes the engine,
// becomes the main instance and is left current on the calling thread. Later
// instances are made current only while their queues are set up; the
// previously current instance is then restored.
func Create(eng native.Engine) (*Instance, error) {
	createMu.Lock()
	defer createMu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if eng.NumInstances() == 0 {
		return createMain(eng)
	}
	return createSecondary(eng)
}

func createMain(eng native.Engine) (*Instance, error) {
	const op = "instance.Create"
	ptr, err := eng.Init()
	if err != nil && !errors.Is(err, native.ErrAlreadyInitialized) {
		return nil, pderr.Wrap(op, pderr.KindInitialization, err, "engine init failed")
	}
	if ptr == 0 {
		return nil, pderr.Initialization(op, "engine returned a null main instance")
	}
	eng.SetInstance(ptr)
	if eng.ThisInstance() != ptr {
		return nil, pderr.Initialization(op, "main instance did not become current")
	}
	if err := queue.Init(eng); err != nil {
		return nil, pderr.Wrap(op, pderr.KindInitialization, err, "queue init failed")
	}

	inst := &Instance{eng: eng, ptr: ptr, number: eng.InstanceNumber(ptr), main: true}
	logger().Debug("created main instance", zap.Int("number", inst.number))
	return inst, nil
}

func createSecondary(eng native.Engine) (*Instance, error) {
	const op = "instance.Create"
	prev := eng.ThisInstance()

	ptr := eng.NewInstance()
	if ptr == 0 {
		return nil, pderr.Initialization(op, "engine returned a null instance")
	}
	eng.SetInstance(ptr)
	defer eng.SetInstance(prev)

	if eng.ThisInstance() != ptr {
		eng.FreeInstance(ptr)
		return nil, pderr.Initialization(op, "new instance did not become current")
	}
	if err := queue.Init(eng); err != nil {
		eng.FreeInstance(ptr)
		return nil, pderr.Wrap(op, pderr.KindInitialization, err, "queue init failed")
	}

	inst := &Instance{eng: eng, ptr: ptr, number: eng.InstanceNumber(ptr)}
	logger().Debug("created instance", zap.Int("number", inst.number))
	return inst, nil
}

// Count returns the number of live instances.
func Count(eng native.Engine) int {
	return eng.NumInstances()
}

// Ptr returns the native instance pointer.
func (i *Instance) Ptr() native.Instance { return i.ptr }

// Number returns the instance number. Numbers are unique and increase in
// creation order.
func (i *Instance) Number() int { return i.number }

// IsMain reports whether this is the main instance.
func (i *Instance) IsMain() bool { return i.main }

// Engine returns the engine the instance belongs to.
func (i *Instance) Engine() native.Engine { return i.eng }

// SetAsCurrent makes the instance current on the calling OS thread. The
// caller must be locked to its thread for this to outlast the call.
func (i *Instance) SetAsCurrent() error {
	if i == nil {
		return pderr.New("instance.SetAsCurrent", pderr.KindAlreadyReleased, "nil instance")
	}
	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return pderr.New("instance.SetAsCurrent", pderr.KindAlreadyReleased, "instance %d is closed", i.number)
	}
	i.eng.SetInstance(i.ptr)
	return nil
}

// IsCurrent reports whether the instance is current on the calling thread.
func (i *Instance) IsCurrent() bool {
	return i != nil && i.eng.ThisInstance() == i.ptr
}

// Do runs fn on a locked OS thread with the instance current, then restores
// whatever instance was current before.
func (i *Instance) Do(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prev := i.eng.ThisInstance()
	if err := i.SetAsCurrent(); err != nil {
		return err
	}
	if prev != i.ptr {
		defer i.eng.SetInstance(prev)
	}
	return fn()
}

// InitAudio configures the instance's channel counts and sample rate.
func (i *Instance) InitAudio(inputs, outputs, sampleRate int) error {
	err := i.Do(func() error {
		return i.eng.InitAudio(inputs, outputs, sampleRate)
	})
	if err != nil {
		if errors.Is(err, pderr.ErrAlreadyReleased) {
			return err
		}
		return pderr.Wrap("instance.InitAudio", pderr.KindEngine, err, "audio init failed")
	}
	i.mu.Lock()
	i.audio = &AudioConfig{Inputs: inputs, Outputs: outputs, SampleRate: sampleRate}
	i.mu.Unlock()
	return nil
}

// AudioConfig returns the audio setup, if InitAudio has succeeded.
func (i *Instance) AudioConfig() (AudioConfig, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.audio == nil {
		return AudioConfig{}, false
	}
	return *i.audio, true
}

// Close tears the instance down: it is made current, its queues are
// released and the native instance is freed, in that order. The instance
// that was current before is restored unless it was this one. Closing a nil
// or closed instance does nothing. The main instance is never freed by the
// engine, but its queues are released.
func (i *Instance) Close() error {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	i.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prev := i.eng.ThisInstance()
	i.eng.SetInstance(i.ptr)
	queue.Release(i.eng)
	if i.main {
		i.dropDataLocked()
	} else {
		i.eng.FreeInstance(i.ptr)
	}
	if prev != i.ptr {
		i.eng.SetInstance(prev)
	}
	logger().Debug("closed instance", zap.Int("number", i.number), zap.Bool("main", i.main))
	return nil
}

func logger() *zap.Logger {
	return debug.Named("instance")
}
