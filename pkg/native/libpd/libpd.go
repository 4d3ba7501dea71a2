//go:build cgo && libpd

// Package libpd implements native.Engine on libpd built with multiple
// instance support (PDINSTANCE, PDTHREADS) and its queued messaging utility.
//
// Point CGO_CFLAGS at the directories holding z_libpd.h and z_queued.h and
// CGO_LDFLAGS at libpd when they are not on the default paths.
package libpd

/*
#cgo CFLAGS: -DPDINSTANCE=1 -DPDTHREADS=1
#cgo LDFLAGS: -lpd
#include <stdint.h>
#include <stdlib.h>
#include "z_libpd.h"
#include "z_queued.h"

extern void goPdPrint(char *);
extern void goPdBang(char *);
extern void goPdFloat(char *, float);
extern void goPdDouble(char *, double);
extern void goPdSymbol(char *, char *);
extern void goPdList(char *, int, t_atom *);
extern void goPdMessage(char *, char *, int, t_atom *);
extern void goPdNoteOn(int, int, int);
extern void goPdControlChange(int, int, int);
extern void goPdProgramChange(int, int);
extern void goPdPitchBend(int, int);
extern void goPdAftertouch(int, int);
extern void goPdPolyAftertouch(int, int, int);
extern void goPdMIDIByte(int, int);

static void install_hook(int kind, int on) {
	switch (kind) {
	case 0: libpd_set_queued_printhook(on ? (t_libpd_printhook)goPdPrint : NULL); break;
	case 1: libpd_set_queued_banghook(on ? (t_libpd_banghook)goPdBang : NULL); break;
	case 2: libpd_set_queued_floathook(on ? (t_libpd_floathook)goPdFloat : NULL); break;
	case 3: libpd_set_queued_doublehook(on ? (t_libpd_doublehook)goPdDouble : NULL); break;
	case 4: libpd_set_queued_symbolhook(on ? (t_libpd_symbolhook)goPdSymbol : NULL); break;
	case 5: libpd_set_queued_listhook(on ? (t_libpd_listhook)goPdList : NULL); break;
	case 6: libpd_set_queued_messagehook(on ? (t_libpd_messagehook)goPdMessage : NULL); break;
	case 7: libpd_set_queued_noteonhook(on ? (t_libpd_noteonhook)goPdNoteOn : NULL); break;
	case 8: libpd_set_queued_controlchangehook(on ? (t_libpd_controlchangehook)goPdControlChange : NULL); break;
	case 9: libpd_set_queued_programchangehook(on ? (t_libpd_programchangehook)goPdProgramChange : NULL); break;
	case 10: libpd_set_queued_pitchbendhook(on ? (t_libpd_pitchbendhook)goPdPitchBend : NULL); break;
	case 11: libpd_set_queued_aftertouchhook(on ? (t_libpd_aftertouchhook)goPdAftertouch : NULL); break;
	case 12: libpd_set_queued_polyaftertouchhook(on ? (t_libpd_polyaftertouchhook)goPdPolyAftertouch : NULL); break;
	case 13: libpd_set_queued_midibytehook(on ? (t_libpd_midibytehook)goPdMIDIByte : NULL); break;
	}
}

static uintptr_t main_instance(void) { return (uintptr_t)libpd_main_instance(); }
static uintptr_t new_instance(void) { return (uintptr_t)libpd_new_instance(); }
static uintptr_t this_instance(void) { return (uintptr_t)libpd_this_instance(); }
static void set_instance(uintptr_t p) { libpd_set_instance((t_pdinstance *)p); }
static void free_instance(uintptr_t p) { libpd_free_instance((t_pdinstance *)p); }
static void set_data(uintptr_t d) { libpd_set_instancedata((void *)d, NULL); }
static uintptr_t get_data(void) { return (uintptr_t)libpd_get_instancedata(); }

static uintptr_t intern_symbol(const char *s) { return (uintptr_t)gensym(s); }
static const char *symbol_name(uintptr_t s) { return s ? ((t_symbol *)s)->s_name : NULL; }

static uintptr_t open_file(const char *name, const char *dir) { return (uintptr_t)libpd_openfile(name, dir); }
static void close_file(uintptr_t p) { libpd_closefile((void *)p); }
static int dollar_zero(uintptr_t p) { return libpd_getdollarzero((void *)p); }
static uintptr_t bind_name(const char *s) { return (uintptr_t)libpd_bind(s); }
static void unbind(uintptr_t b) { libpd_unbind((void *)b); }
*/
import "C"

import (
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/debug"
	"github.com/justyntemme/gopd/pkg/native"
)

// Engine is the process-wide libpd. libpd keeps global state, so a process
// holds at most one Engine; New returns the same value every time.
type Engine struct {
	log *zap.Logger

	mu          sync.Mutex
	initialized bool
	numbers     map[native.Instance]int
	next        int
	frees       map[native.Instance]native.FreeFunc
	audio       map[native.Instance]audioConfig
}

type audioConfig struct {
	inputs, outputs int
}

var (
	engineOnce sync.Once
	engine     *Engine
)

// New returns the process engine.
func New() *Engine {
	engineOnce.Do(func() {
		engine = &Engine{
			log:     debug.Named("libpd"),
			numbers: make(map[native.Instance]int),
			frees:   make(map[native.Instance]native.FreeFunc),
			audio:   make(map[native.Instance]audioConfig),
		}
	})
	return engine
}

var _ native.Engine = (*Engine)(nil)

// Init initializes libpd and returns its main instance.
func (e *Engine) Init() (native.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return native.Instance(C.main_instance()), native.ErrAlreadyInitialized
	}
	if C.libpd_init() != 0 {
		e.log.Warn("libpd was initialized outside this engine")
	}
	main := native.Instance(C.main_instance())
	e.numbers[main] = 0
	e.next = 1
	e.initialized = true
	return main, nil
}

// MainInstance returns the main instance, or null before Init.
func (e *Engine) MainInstance() native.Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return 0
	}
	return native.Instance(C.main_instance())
}

// NewInstance creates a secondary instance. It does not change the current instance.
func (e *Engine) NewInstance() native.Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return 0
	}
	prev := C.this_instance()
	inst := native.Instance(C.new_instance())
	C.set_instance(prev)
	if inst != 0 {
		e.numbers[inst] = e.next
		e.next++
	}
	return inst
}

// FreeInstance releases a secondary instance's data and frees it. The
// calling thread is left on the main instance.
func (e *Engine) FreeInstance(inst native.Instance) {
	e.mu.Lock()
	if _, ok := e.numbers[inst]; !ok || inst == native.Instance(C.main_instance()) {
		e.mu.Unlock()
		return
	}
	free := e.frees[inst]
	delete(e.numbers, inst)
	delete(e.frees, inst)
	delete(e.audio, inst)
	e.mu.Unlock()

	C.set_instance(C.uintptr_t(inst))
	data := uintptr(C.get_data())
	if free != nil {
		free(data)
	}
	C.free_instance(C.uintptr_t(inst))
	C.set_instance(C.main_instance())
}

// SetInstance makes inst current on the calling thread. Freed or unknown
// instances are ignored.
func (e *Engine) SetInstance(inst native.Instance) {
	if inst != 0 {
		e.mu.Lock()
		_, ok := e.numbers[inst]
		e.mu.Unlock()
		if !ok {
			return
		}
	}
	C.set_instance(C.uintptr_t(inst))
}

// ThisInstance returns the instance current on the calling thread.
func (e *Engine) ThisInstance() native.Instance {
	return native.Instance(C.this_instance())
}

// NumInstances returns the number of live instances, 0 before Init.
func (e *Engine) NumInstances() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.numbers)
}

// InstanceNumber returns the number assigned at creation, -1 if unknown.
func (e *Engine) InstanceNumber(inst native.Instance) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n, ok := e.numbers[inst]; ok {
		return n
	}
	return -1
}

// SetInstanceData attaches data to the current instance. The previous data
// is not freed.
func (e *Engine) SetInstanceData(data uintptr, free native.FreeFunc) error {
	inst, err := e.current()
	if err != nil {
		return err
	}
	C.set_data(C.uintptr_t(data))
	e.mu.Lock()
	e.frees[inst] = free
	e.mu.Unlock()
	return nil
}

// InstanceData returns the current instance's data.
func (e *Engine) InstanceData() uintptr {
	if C.this_instance() == 0 {
		return 0
	}
	return uintptr(C.get_data())
}

func (e *Engine) current() (native.Instance, error) {
	inst := native.Instance(C.this_instance())
	if inst == 0 {
		return 0, native.ErrNoInstance
	}
	return inst, nil
}

// QueuedInit creates the current instance's ring buffers.
func (e *Engine) QueuedInit() error {
	if _, err := e.current(); err != nil {
		return err
	}
	if C.libpd_queued_init() != 0 {
		return native.ErrNotInitialized
	}
	return nil
}

// QueuedRelease frees the current instance's ring buffers.
func (e *Engine) QueuedRelease() {
	if C.this_instance() != 0 {
		C.libpd_queued_release()
	}
}

// ReceiveMessages drains the current instance's control queue.
func (e *Engine) ReceiveMessages() {
	if C.this_instance() != 0 {
		C.libpd_queued_receive_pd_messages()
	}
}

// ReceiveMIDIMessages drains the current instance's MIDI queue.
func (e *Engine) ReceiveMIDIMessages() {
	if C.this_instance() != 0 {
		C.libpd_queued_receive_midi_messages()
	}
}

// SetHook installs h in the process-wide slot for kind. The C side points
// at a fixed trampoline; a nil hook detaches it.
func (e *Engine) SetHook(kind native.HookKind, h native.Hook) {
	if !kind.Valid() {
		return
	}
	if h == nil {
		hooks[kind].Store(nil)
		C.install_hook(C.int(kind), 0)
		return
	}
	hooks[kind].Store(&h)
	C.install_hook(C.int(kind), 1)
}

// Gensym interns name in the current instance.
func (e *Engine) Gensym(name string) (native.Symbol, error) {
	if strings.IndexByte(name, 0) >= 0 {
		return 0, native.ErrBadArgument
	}
	if _, err := e.current(); err != nil {
		return 0, err
	}
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	return native.Symbol(C.intern_symbol(cs)), nil
}

// SymbolName returns the bytes of sym, nil for the null symbol.
func (e *Engine) SymbolName(sym native.Symbol) []byte {
	return goBytes(C.symbol_name(C.uintptr_t(sym)))
}

// OpenPatch opens name from dir in the current instance.
func (e *Engine) OpenPatch(name, dir string) (native.Patch, error) {
	if strings.IndexByte(name, 0) >= 0 || strings.IndexByte(dir, 0) >= 0 {
		return 0, native.ErrBadArgument
	}
	if _, err := e.current(); err != nil {
		return 0, err
	}
	cn, cd := C.CString(name), C.CString(dir)
	defer C.free(unsafe.Pointer(cn))
	defer C.free(unsafe.Pointer(cd))
	return native.Patch(C.open_file(cn, cd)), nil
}

// ClosePatch closes a patch opened by OpenPatch.
func (e *Engine) ClosePatch(p native.Patch) {
	if p != 0 {
		C.close_file(C.uintptr_t(p))
	}
}

// DollarZero returns the patch's $0.
func (e *Engine) DollarZero(p native.Patch) int {
	if p == 0 {
		return 0
	}
	return int(C.dollar_zero(C.uintptr_t(p)))
}

// Bind subscribes the queued hooks to name in the current instance.
func (e *Engine) Bind(name string) (native.Binding, error) {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return 0, native.ErrBadArgument
	}
	if _, err := e.current(); err != nil {
		return 0, err
	}
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	return native.Binding(C.bind_name(cs)), nil
}

// Unbind removes a subscription created by Bind.
func (e *Engine) Unbind(b native.Binding) {
	if b != 0 {
		C.unbind(C.uintptr_t(b))
	}
}

// Exists reports whether anything receives messages sent to name.
func (e *Engine) Exists(name string) bool {
	if strings.IndexByte(name, 0) >= 0 || C.this_instance() == 0 {
		return false
	}
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	return C.libpd_exists(cs) != 0
}

// AddToSearchPath appends dir to the current instance's search path.
func (e *Engine) AddToSearchPath(dir string) {
	if strings.IndexByte(dir, 0) >= 0 || C.this_instance() == 0 {
		return
	}
	cs := C.CString(dir)
	defer C.free(unsafe.Pointer(cs))
	C.libpd_add_to_search_path(cs)
}

// ClearSearchPath empties the search path.
func (e *Engine) ClearSearchPath() {
	if C.this_instance() != 0 {
		C.libpd_clear_search_path()
	}
}

// SetVerbose toggles verbose patch loading output.
func (e *Engine) SetVerbose(verbose bool) {
	v := C.int(0)
	if verbose {
		v = 1
	}
	C.libpd_set_verbose(v)
}

// Verbose reports the verbose flag.
func (e *Engine) Verbose() bool {
	return C.libpd_get_verbose() != 0
}

// InitAudio configures the current instance's audio.
func (e *Engine) InitAudio(inChannels, outChannels, sampleRate int) error {
	if inChannels < 0 || outChannels < 0 || sampleRate <= 0 {
		return native.ErrBadArgument
	}
	inst, err := e.current()
	if err != nil {
		return err
	}
	if C.libpd_init_audio(C.int(inChannels), C.int(outChannels), C.int(sampleRate)) != 0 {
		return native.ErrBadArgument
	}
	e.mu.Lock()
	e.audio[inst] = audioConfig{inputs: inChannels, outputs: outChannels}
	e.mu.Unlock()
	return nil
}

// BlockSize returns libpd's frames per tick.
func (e *Engine) BlockSize() int {
	return int(C.libpd_blocksize())
}

// checkBuffers verifies that in and out hold ticks blocks for the current
// instance's channel counts.
func (e *Engine) checkBuffers(ticks, inLen, outLen int) error {
	inst, err := e.current()
	if err != nil {
		return err
	}
	e.mu.Lock()
	cfg, ok := e.audio[inst]
	e.mu.Unlock()
	if !ok || ticks < 0 {
		return native.ErrBadArgument
	}
	frames := ticks * e.BlockSize()
	if inLen < frames*cfg.inputs || outLen < frames*cfg.outputs {
		return native.ErrBadArgument
	}
	return nil
}

// ProcessFloat runs ticks blocks of interleaved float samples.
func (e *Engine) ProcessFloat(ticks int, in, out []float32) error {
	if err := e.checkBuffers(ticks, len(in), len(out)); err != nil {
		return err
	}
	if C.libpd_process_float(C.int(ticks), (*C.float)(first(in)), (*C.float)(first(out))) != 0 {
		return native.ErrBadArgument
	}
	return nil
}

// ProcessDouble runs ticks blocks of interleaved double samples.
func (e *Engine) ProcessDouble(ticks int, in, out []float64) error {
	if err := e.checkBuffers(ticks, len(in), len(out)); err != nil {
		return err
	}
	if C.libpd_process_double(C.int(ticks), (*C.double)(first(in)), (*C.double)(first(out))) != 0 {
		return native.ErrBadArgument
	}
	return nil
}

// ProcessShort runs ticks blocks of interleaved 16-bit samples.
func (e *Engine) ProcessShort(ticks int, in, out []int16) error {
	if err := e.checkBuffers(ticks, len(in), len(out)); err != nil {
		return err
	}
	if C.libpd_process_short(C.int(ticks), (*C.short)(first(in)), (*C.short)(first(out))) != 0 {
		return native.ErrBadArgument
	}
	return nil
}

// ProcessRaw runs one tick of planar float samples.
func (e *Engine) ProcessRaw(in, out []float32) error {
	if err := e.checkBuffers(1, len(in), len(out)); err != nil {
		return err
	}
	if C.libpd_process_raw((*C.float)(first(in)), (*C.float)(first(out))) != 0 {
		return native.ErrBadArgument
	}
	return nil
}

// ArraySize returns the length of a named array.
func (e *Engine) ArraySize(name string) (int, error) {
	cs, err := e.cname(name)
	if err != nil {
		return 0, err
	}
	defer C.free(unsafe.Pointer(cs))
	n := int(C.libpd_arraysize(cs))
	if n < 0 {
		return 0, native.ErrNoArray
	}
	return n, nil
}

// ResizeArray changes a named array's length.
func (e *Engine) ResizeArray(name string, size int) error {
	cs, err := e.cname(name)
	if err != nil {
		return err
	}
	defer C.free(unsafe.Pointer(cs))
	return arrayErr(C.libpd_resize_array(cs, C.long(size)))
}

// ReadArray fills dst from a named array starting at offset.
func (e *Engine) ReadArray(dst []float32, name string, offset int) error {
	cs, err := e.cname(name)
	if err != nil {
		return err
	}
	defer C.free(unsafe.Pointer(cs))
	if len(dst) == 0 {
		_, err := e.ArraySize(name)
		return err
	}
	return arrayErr(C.libpd_read_array((*C.float)(first(dst)), cs, C.int(offset), C.int(len(dst))))
}

// WriteArray copies src into a named array starting at offset.
func (e *Engine) WriteArray(name string, offset int, src []float32) error {
	cs, err := e.cname(name)
	if err != nil {
		return err
	}
	defer C.free(unsafe.Pointer(cs))
	if len(src) == 0 {
		_, err := e.ArraySize(name)
		return err
	}
	return arrayErr(C.libpd_write_array(cs, C.int(offset), (*C.float)(first(src)), C.int(len(src))))
}

// cname checks the current instance and returns name as a C string the
// caller frees.
func (e *Engine) cname(name string) (*C.char, error) {
	if strings.IndexByte(name, 0) >= 0 {
		return nil, native.ErrBadArgument
	}
	if _, err := e.current(); err != nil {
		return nil, err
	}
	return C.CString(name), nil
}

func arrayErr(rc C.int) error {
	switch {
	case rc == 0:
		return nil
	case rc == -2:
		return native.ErrOutOfRange
	default:
		return native.ErrNoArray
	}
}

// first returns a pointer to s[0], or nil for an empty slice.
func first[T float32 | float64 | int16](s []T) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Pointer(&s[0])
}
