package sim

import (
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
)

// maxDepth bounds message recursion between receivers.
const maxDepth = 1000

// Program is the behavior of a simulated patch. Names in Receivers and
// Arrays may contain "$0", which expands to the patch's $0 value.
//
// Program callbacks run with the engine locked and must use the Context
// rather than calling Engine methods.
type Program struct {
	// Receivers handle messages sent to a name, like [r name].
	Receivers map[string]Receiver
	// Arrays declares tables and their initial sizes.
	Arrays map[string]int
	// Load runs once after the patch opens, like [loadbang].
	Load func(c *Context)
	// DSP runs once per tick while DSP is on. in and out hold one tick of
	// interleaved frames; out starts zeroed and is shared by all patches.
	DSP func(c *Context, in, out []float32)
	// MIDI receives MIDI sent to the engine.
	MIDI func(c *Context, ev midi.Event)
}

// Receiver handles one message.
type Receiver func(c *Context, m Message)

// Message is a selector with arguments.
type Message struct {
	Selector string
	Args     []atom.Atom
}

// Float returns the first argument if it is a float.
func (m Message) Float() (float64, bool) {
	if len(m.Args) == 0 {
		return 0, false
	}
	return m.Args[0].AsFloat()
}

// Symbol returns the first argument if it is a symbol.
func (m Message) Symbol() (string, bool) {
	if len(m.Args) == 0 {
		return "", false
	}
	return m.Args[0].AsSymbol()
}

type patch struct {
	id         native.Patch
	name       string
	dollarZero int
	program    Program
	receives   []string
	arrays     []string
}

type route struct {
	p  *patch
	fn Receiver
}

// OpenPatch opens a defined program or an existing file as a patch in the
// current instance.
func (e *Engine) OpenPatch(name, dir string) (native.Patch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst := e.currentLocked()
	if inst == nil {
		return 0, native.ErrNoInstance
	}
	prog, err := e.lookupProgramLocked(name, dir)
	if err != nil {
		return 0, err
	}

	inst.nextPatch++
	p := &patch{
		id:         native.Patch(inst.nextPatch),
		name:       name,
		dollarZero: inst.dollarZero,
		program:    prog,
	}
	inst.dollarZero++
	inst.patches[p.id] = p

	for recv, fn := range prog.Receivers {
		full := expand(recv, p.dollarZero)
		inst.receivers[full] = append(inst.receivers[full], route{p: p, fn: fn})
		p.receives = append(p.receives, full)
	}
	for arr, size := range prog.Arrays {
		full := expand(arr, p.dollarZero)
		inst.arrays[full] = make([]float32, size)
		p.arrays = append(p.arrays, full)
	}
	if prog.Load != nil {
		prog.Load(e.context(inst, p))
	}
	if e.verbose {
		e.log.Info("sim: opened patch", zap.String("name", name), zap.Int("$0", p.dollarZero))
	}
	return p.id, nil
}

func (e *Engine) lookupProgramLocked(name, dir string) (Program, error) {
	if prog, ok := e.programs[name]; ok {
		return prog, nil
	}
	if prog, ok := e.programs[filepath.Base(name)]; ok {
		return prog, nil
	}

	var candidates []string
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, name))
	} else {
		candidates = append(candidates, name)
		for _, sp := range e.searchPath {
			candidates = append(candidates, filepath.Join(sp, name))
		}
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return Program{}, nil
		}
	}
	return Program{}, fmt.Errorf("open %s: %w", filepath.Join(dir, name), fs.ErrNotExist)
}

// ClosePatch closes a patch of the current instance. Patches of other
// instances are left alone.
func (e *Engine) ClosePatch(id native.Patch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return
	}
	if _, ok := inst.patches[id]; ok {
		inst.closePatch(id)
	}
}

func (inst *instance) closePatch(id native.Patch) {
	p := inst.patches[id]
	for _, name := range p.receives {
		routes := inst.receivers[name]
		kept := routes[:0]
		for _, r := range routes {
			if r.p != p {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(inst.receivers, name)
		} else {
			inst.receivers[name] = kept
		}
	}
	for _, name := range p.arrays {
		delete(inst.arrays, name)
	}
	delete(inst.patches, id)
}

// sortedPatches returns the instance's patches in the order they were opened.
func (inst *instance) sortedPatches() []*patch {
	out := make([]*patch, 0, len(inst.patches))
	for _, p := range inst.patches {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *patch) int { return cmp.Compare(a.id, b.id) })
	return out
}

// DollarZero returns the patch's $0 value, or 0 for unknown patches.
func (e *Engine) DollarZero(id native.Patch) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, inst := range e.instances {
		if p, ok := inst.patches[id]; ok {
			return p.dollarZero
		}
	}
	return 0
}

// Bind subscribes the host to messages sent to name in the current instance.
func (e *Engine) Bind(name string) (native.Binding, error) {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return 0, native.ErrBadArgument
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return 0, native.ErrNoInstance
	}
	inst.nextBind++
	b := native.Binding(inst.nextBind)
	inst.bindings[b] = name
	inst.bound[name]++
	return b, nil
}

// Unbind removes a host subscription of the current instance. Binding
// identifiers are only unique within their instance.
func (e *Engine) Unbind(b native.Binding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return
	}
	name, ok := inst.bindings[b]
	if !ok {
		return
	}
	delete(inst.bindings, b)
	if inst.bound[name]--; inst.bound[name] <= 0 {
		delete(inst.bound, name)
	}
}

// Exists reports whether anything receives messages sent to name.
func (e *Engine) Exists(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst := e.currentLocked()
	if inst == nil {
		return false
	}
	return name == "pd" || len(inst.receivers[name]) > 0 || inst.bound[name] > 0
}

// SendBang sends a bang to recv.
func (e *Engine) SendBang(recv string) error {
	return e.send(recv, Message{Selector: "bang"}, nil)
}

// SendFloat sends a float to recv.
func (e *Engine) SendFloat(recv string, f float64) error {
	return e.send(recv, Message{Selector: "float", Args: []atom.Atom{atom.Float(f)}}, nil)
}

// SendSymbol sends a symbol to recv.
func (e *Engine) SendSymbol(recv, sym string) error {
	if strings.IndexByte(sym, 0) >= 0 {
		return native.ErrBadArgument
	}
	return e.send(recv, Message{Selector: "symbol", Args: []atom.Atom{atom.Symbol(sym)}}, nil)
}

// SendList sends a list to recv.
func (e *Engine) SendList(recv string, argv []native.Atom) error {
	return e.send(recv, Message{Selector: "list"}, argv)
}

// SendMessage sends a typed message to recv.
func (e *Engine) SendMessage(recv, msg string, argv []native.Atom) error {
	if msg == "" || strings.IndexByte(msg, 0) >= 0 {
		return native.ErrBadArgument
	}
	return e.send(recv, Message{Selector: msg}, argv)
}

func (e *Engine) send(recv string, m Message, argv []native.Atom) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := e.currentLocked()
	if inst == nil {
		return native.ErrNoInstance
	}
	if len(argv) > 0 {
		m.Args = make([]atom.Atom, len(argv))
		for i, a := range argv {
			switch a.Type {
			case native.AtomFloat:
				m.Args[i] = atom.Float(a.Float)
			case native.AtomSymbol:
				name, ok := e.symbols[a.Sym]
				if !ok {
					return native.ErrBadArgument
				}
				m.Args[i] = atom.Symbol(name)
			default:
				return native.ErrBadArgument
			}
		}
	}
	if !e.dispatchLocked(inst, recv, m) {
		return native.ErrNoReceiver
	}
	return nil
}

// dispatchLocked delivers m to the patch receivers and host bindings of name.
func (e *Engine) dispatchLocked(inst *instance, name string, m Message) bool {
	if name == "pd" {
		e.pdMessageLocked(inst, m)
		return true
	}
	delivered := false
	for _, r := range inst.receivers[name] {
		if inst.depth >= maxDepth {
			e.log.Error("sim: stack overflow", zap.String("receiver", name))
			return true
		}
		inst.depth++
		r.fn(e.context(inst, r.p), m)
		inst.depth--
		delivered = true
	}
	if inst.bound[name] > 0 {
		e.emitLocked(inst, name, m)
		delivered = true
	}
	return delivered
}

func (e *Engine) pdMessageLocked(inst *instance, m Message) {
	switch m.Selector {
	case "dsp":
		v, _ := m.Float()
		inst.dsp = v != 0
	case "verbose":
		v, _ := m.Float()
		e.verbose = v != 0
	}
}

// emitLocked queues m for the host hooks as the engine's bound receiver would.
func (e *Engine) emitLocked(inst *instance, name string, m Message) {
	enc := &inst.enc
	switch {
	case m.Selector == "bang" && len(m.Args) == 0:
		enc.begin(native.HookBang)
		enc.str(name)
	case m.Selector == "float" && len(m.Args) == 1 && m.Args[0].IsFloat():
		v, _ := m.Float()
		enc.begin(native.HookFloat)
		enc.str(name)
		enc.f64(v)
	case m.Selector == "symbol" && len(m.Args) == 1 && m.Args[0].IsSymbol():
		s, _ := m.Symbol()
		enc.begin(native.HookSymbol)
		enc.str(name)
		enc.str(s)
	case m.Selector == "list":
		enc.begin(native.HookList)
		enc.str(name)
		enc.atoms(e.wireLocked(inst, m.Args))
	default:
		enc.begin(native.HookMessage)
		enc.str(name)
		enc.str(m.Selector)
		enc.atoms(e.wireLocked(inst, m.Args))
	}
	e.enqueue(inst, false)
}

func (e *Engine) wireLocked(inst *instance, args []atom.Atom) []native.Atom {
	out := make([]native.Atom, len(args))
	for i, a := range args {
		if s, ok := a.AsSymbol(); ok {
			out[i] = native.Atom{Type: native.AtomSymbol, Sym: e.gensymLocked(inst, s)}
			continue
		}
		v, _ := a.AsFloat()
		out[i] = native.Atom{Type: native.AtomFloat, Float: v}
	}
	return out
}

func expand(name string, dollarZero int) string {
	return strings.ReplaceAll(name, "$0", strconv.Itoa(dollarZero))
}
