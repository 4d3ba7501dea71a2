// Package sim is an in-process implementation of native.Engine.
//
// It keeps the observable contract of the C engine: instances are current
// per OS thread, symbols are interned per instance, hook slots are
// process-wide, and events produced while processing are written into
// fixed-capacity per-instance ring buffers that a drain call empties into
// the hooks. Patches are Go Programs registered with Define.
package sim

import (
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/native"
)

// Default ring buffer capacities in bytes.
const (
	DefaultControlCapacity = 65536
	DefaultMIDICapacity    = 16384
	DefaultBlockSize       = 64
)

// Engine is a simulated patch engine. The zero value is not usable; call New.
type Engine struct {
	mu sync.RWMutex

	initialized bool
	main        native.Instance
	instances   map[native.Instance]*instance
	current     map[int]native.Instance
	nextPtr     uintptr
	nextNumber  int
	maxInst     int

	symbols map[native.Symbol]string
	nextSym uintptr

	programs   map[string]Program
	searchPath []string
	verbose    bool

	controlCap int
	midiCap    int
	blockSize  int

	hooks   [native.NumHookKinds]atomic.Pointer[native.Hook]
	dropped atomic.Uint64
	log     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueueCapacity sets the per-instance ring buffer sizes in bytes.
func WithQueueCapacity(control, midi int) Option {
	return func(e *Engine) {
		e.controlCap = control
		e.midiCap = midi
	}
}

// WithInstanceLimit makes NewInstance return the null instance once n
// instances are live.
func WithInstanceLimit(n int) Option {
	return func(e *Engine) { e.maxInst = n }
}

// WithBlockSize sets the number of frames per tick.
func WithBlockSize(n int) Option {
	return func(e *Engine) { e.blockSize = n }
}

// WithLogger sets the logger used for engine console errors.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an uninitialized engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		instances:  make(map[native.Instance]*instance),
		current:    make(map[int]native.Instance),
		symbols:    make(map[native.Symbol]string),
		programs:   make(map[string]Program),
		controlCap: DefaultControlCapacity,
		midiCap:    DefaultMIDICapacity,
		blockSize:  DefaultBlockSize,
		nextPtr:    0x1000,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ native.Engine = (*Engine)(nil)

// Dropped returns the number of events discarded because a ring buffer was
// full or the instance had no queue.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}

// Define registers a program under a patch file name such as "synth.pd".
func (e *Engine) Define(name string, p Program) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.programs[name] = p
}

// Init creates the main instance and makes it current on this thread.
func (e *Engine) Init() (native.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return e.main, native.ErrAlreadyInitialized
	}
	inst := e.newInstanceLocked()
	e.main = inst.ptr
	e.initialized = true
	e.current[threadID()] = inst.ptr
	return inst.ptr, nil
}

// MainInstance returns the main instance, or null before Init.
func (e *Engine) MainInstance() native.Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.main
}

// NewInstance creates a secondary instance. It does not change the current instance.
func (e *Engine) NewInstance() native.Instance {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return 0
	}
	if e.maxInst > 0 && len(e.instances) >= e.maxInst {
		return 0
	}
	return e.newInstanceLocked().ptr
}

func (e *Engine) newInstanceLocked() *instance {
	e.nextPtr += 0x100
	inst := newInstance(native.Instance(e.nextPtr), e.nextNumber, e.blockSize)
	e.nextNumber++
	e.instances[inst.ptr] = inst
	return inst
}

// FreeInstance frees a secondary instance. Freeing the main instance is a no-op.
func (e *Engine) FreeInstance(p native.Instance) {
	e.mu.Lock()
	inst, ok := e.instances[p]
	if !ok || p == e.main {
		e.mu.Unlock()
		return
	}
	for id := range inst.patches {
		inst.closePatch(id)
	}
	delete(e.instances, p)
	for tid, cur := range e.current {
		if cur == p {
			delete(e.current, tid)
		}
	}
	e.current[threadID()] = e.main
	data, free := inst.data, inst.free
	e.mu.Unlock()

	if free != nil {
		free(data)
	}
}

// SetInstance makes inst current on the calling thread.
func (e *Engine) SetInstance(p native.Instance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == 0 {
		delete(e.current, threadID())
		return
	}
	if _, ok := e.instances[p]; ok {
		e.current[threadID()] = p
	}
}

// ThisInstance returns the instance current on the calling thread.
func (e *Engine) ThisInstance() native.Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current[threadID()]
}

// NumInstances returns the number of live instances, 0 before Init.
func (e *Engine) NumInstances() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.instances)
}

// InstanceNumber returns the instance's number, or -1 for unknown instances.
// Numbers are never reused.
func (e *Engine) InstanceNumber(p native.Instance) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if inst, ok := e.instances[p]; ok {
		return inst.number
	}
	return -1
}

// SetInstanceData attaches data to the current instance. The previous data
// is not freed.
func (e *Engine) SetInstanceData(data uintptr, free native.FreeFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return native.ErrNoInstance
	}
	inst.data, inst.free = data, free
	return nil
}

// InstanceData returns the current instance's data.
func (e *Engine) InstanceData() uintptr {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if inst := e.currentLocked(); inst != nil {
		return inst.data
	}
	return 0
}

func (e *Engine) currentLocked() *instance {
	return e.instances[e.current[threadID()]]
}

// Gensym interns name in the current instance's symbol table.
func (e *Engine) Gensym(name string) (native.Symbol, error) {
	if strings.IndexByte(name, 0) >= 0 {
		return 0, native.ErrBadArgument
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return 0, native.ErrNoInstance
	}
	return e.gensymLocked(inst, name), nil
}

func (e *Engine) gensymLocked(inst *instance, name string) native.Symbol {
	if sym, ok := inst.symtab[name]; ok {
		return sym
	}
	e.nextSym += 0x10
	sym := native.Symbol(e.nextSym)
	inst.symtab[name] = sym
	e.symbols[sym] = name
	return sym
}

// SymbolName returns the bytes of an interned symbol, or nil if sym is unknown.
func (e *Engine) SymbolName(sym native.Symbol) []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	name, ok := e.symbols[sym]
	if !ok {
		return nil
	}
	return []byte(name)
}

// SetHook installs h in the process-wide slot for kind.
func (e *Engine) SetHook(kind native.HookKind, h native.Hook) {
	if !kind.Valid() {
		return
	}
	if h == nil {
		e.hooks[kind].Store(nil)
		return
	}
	e.hooks[kind].Store(&h)
}

func (e *Engine) hook(kind native.HookKind) native.Hook {
	if p := e.hooks[kind].Load(); p != nil {
		return *p
	}
	return nil
}

// AddToSearchPath appends a directory searched by OpenPatch.
func (e *Engine) AddToSearchPath(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.searchPath = append(e.searchPath, dir)
}

// ClearSearchPath empties the search path.
func (e *Engine) ClearSearchPath() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.searchPath = nil
}

// SetVerbose toggles verbose console output.
func (e *Engine) SetVerbose(verbose bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verbose = verbose
}

// Verbose reports the verbose flag.
func (e *Engine) Verbose() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.verbose
}
