// Package pd ties an engine, its hook registry, the queue bridge and the
// atom codec into one Session.
//
// Session methods act on the instance current on the calling OS thread. A
// goroutine that switches instances must hold runtime.LockOSThread, or use
// instance.Instance.Do.
package pd

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/debug"
	"github.com/justyntemme/gopd/pkg/handle"
	"github.com/justyntemme/gopd/pkg/hook"
	"github.com/justyntemme/gopd/pkg/instance"
	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/pderr"
	"github.com/justyntemme/gopd/pkg/queue"
)

// Session is a host's connection to an engine.
type Session struct {
	eng    native.Engine
	hooks  *hook.Registry
	bridge *queue.Bridge
	codec  *atom.Codec
	main   *instance.Instance
	log    *zap.Logger

	mu        sync.Mutex
	instances []*instance.Instance
	patches   []*handle.Patch
	receivers []*handle.Receiver
	closed    bool
}

// Option configures a Session.
type Option func(*options)

type options struct {
	log      *zap.Logger
	onDecode hook.DecodeErrorFunc
	profiler *debug.Profiler
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithDecodeErrorHandler receives events whose payload could not be decoded.
func WithDecodeErrorHandler(fn hook.DecodeErrorFunc) Option {
	return func(o *options) { o.onDecode = fn }
}

// WithProfiler times queue drains.
func WithProfiler(p *debug.Profiler) Option {
	return func(o *options) { o.profiler = p }
}

// New creates the main instance, which stays current on the calling thread.
func New(eng native.Engine, opts ...Option) (*Session, error) {
	o := options{log: debug.Named("pd")}
	for _, opt := range opts {
		opt(&o)
	}

	hookOpts := []hook.Option{hook.WithLogger(o.log.Named("hook"))}
	if o.onDecode != nil {
		hookOpts = append(hookOpts, hook.WithDecodeErrorHandler(o.onDecode))
	}
	hooks := hook.NewRegistry(eng, hookOpts...)

	main, err := instance.Create(eng)
	if err != nil {
		return nil, err
	}

	bridge := queue.New(eng, hooks)
	bridge.SetProfiler(o.profiler)

	return &Session{
		eng:    eng,
		hooks:  hooks,
		bridge: bridge,
		codec:  atom.NewCodec(eng),
		main:   main,
		log:    o.log,
	}, nil
}

// Engine returns the underlying engine.
func (s *Session) Engine() native.Engine { return s.eng }

// Hooks returns the registry for installing listeners.
func (s *Session) Hooks() *hook.Registry { return s.hooks }

// Bridge returns the queue bridge.
func (s *Session) Bridge() *queue.Bridge { return s.bridge }

// Codec returns the atom codec.
func (s *Session) Codec() *atom.Codec { return s.codec }

// Main returns the main instance.
func (s *Session) Main() *instance.Instance { return s.main }

// NewInstance creates a secondary instance owned by the session.
func (s *Session) NewInstance() (*instance.Instance, error) {
	inst, err := instance.Create(s.eng)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.instances = append(s.instances, inst)
	s.mu.Unlock()
	return inst, nil
}

// Instances returns the main instance followed by the secondary ones.
func (s *Session) Instances() []*instance.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*instance.Instance{s.main}, s.instances...)
}

// Open opens a patch in the current instance.
func (s *Session) Open(name, dir string) (*handle.Patch, error) {
	p, err := handle.Open(s.eng, name, dir)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.patches = append(s.patches, p)
	s.mu.Unlock()
	s.log.Debug("opened patch", zap.String("path", p.Path()), zap.Int("$0", p.DollarZero()))
	return p, nil
}

// Bind subscribes to messages sent to name in the current instance. They
// are delivered to the hook listeners on drain.
func (s *Session) Bind(name string) (*handle.Receiver, error) {
	if err := checkName("pd.Bind", name); err != nil {
		return nil, err
	}
	r, err := handle.Bind(s.eng, name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.receivers = append(s.receivers, r)
	s.mu.Unlock()
	return r, nil
}

// Exists reports whether anything receives messages sent to name.
func (s *Session) Exists(name string) bool {
	return s.eng.Exists(name)
}

// DrainControlMessages delivers queued control events of the current instance.
func (s *Session) DrainControlMessages() { s.bridge.DrainControlMessages() }

// DrainMIDIMessages delivers queued MIDI events of the current instance.
func (s *Session) DrainMIDIMessages() { s.bridge.DrainMIDIMessages() }

// Drain delivers both queues.
func (s *Session) Drain() { s.bridge.Drain() }

// AddToSearchPath appends a directory to the patch search path.
func (s *Session) AddToSearchPath(dir string) { s.eng.AddToSearchPath(dir) }

// ClearSearchPath empties the patch search path.
func (s *Session) ClearSearchPath() { s.eng.ClearSearchPath() }

// SetVerbose toggles verbose engine output.
func (s *Session) SetVerbose(v bool) { s.eng.SetVerbose(v) }

// Close unbinds receivers, closes patches and instances. The session
// cannot be used afterwards. Closing twice does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	receivers, patches, instances := s.receivers, s.patches, s.instances
	s.receivers, s.patches, s.instances = nil, nil, nil
	s.mu.Unlock()

	var errs []error
	for _, r := range receivers {
		errs = append(errs, r.Unbind())
	}
	for _, p := range patches {
		errs = append(errs, p.Close())
	}
	for i := len(instances) - 1; i >= 0; i-- {
		errs = append(errs, instances[i].Close())
	}
	errs = append(errs, s.main.Close())
	return errors.Join(errs...)
}

// checkName rejects names the engine cannot carry as C strings.
func checkName(op, name string) error {
	if strings.IndexByte(name, 0) >= 0 {
		return pderr.StringEncoding(op, []byte(name), "embedded NUL byte")
	}
	if !utf8.ValidString(name) {
		return pderr.StringEncoding(op, []byte(name), "invalid UTF-8")
	}
	return nil
}

// engineErr maps a native error to the pderr taxonomy.
func engineErr(op, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, native.ErrNoInstance):
		return pderr.InstanceMissing(op)
	case errors.Is(err, native.ErrNoReceiver):
		return pderr.Wrap(op, pderr.KindNotFound, err, "receiver "+name)
	case errors.Is(err, native.ErrNoArray):
		return pderr.Wrap(op, pderr.KindNotFound, err, "array "+name)
	case errors.Is(err, native.ErrBadArgument), errors.Is(err, native.ErrOutOfRange):
		return pderr.Wrap(op, pderr.KindInvalidInput, err, name)
	default:
		return pderr.Wrap(op, pderr.KindEngine, err, name)
	}
}
