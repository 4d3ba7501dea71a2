// Package handle wraps native patch and receiver identifiers with explicit
// release.
//
// A handle holds its identifier until Close or Unbind, after which it holds
// the zero identifier. Releasing an already released handle does nothing.
// A handle built from a zero identifier was never valid; releasing it
// returns an error of kind AlreadyReleased.
//
// Handles remember the instance that was current when they were created and
// release themselves in that instance, restoring the caller's current
// instance afterwards.
package handle

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/pderr"
)

// Patch is an open patch.
type Patch struct {
	eng        native.Engine
	owner      native.Instance
	path       string
	dollarZero int

	mu       sync.Mutex
	id       native.Patch
	released bool
}

// NewPatch wraps an identifier returned by the engine's open call.
func NewPatch(eng native.Engine, id native.Patch, path string) *Patch {
	p := &Patch{eng: eng, owner: eng.ThisInstance(), id: id, path: path}
	if id != 0 {
		p.dollarZero = eng.DollarZero(id)
	}
	return p
}

// Open opens name from dir in the current instance.
func Open(eng native.Engine, name, dir string) (*Patch, error) {
	const op = "handle.Open"
	id, err := eng.OpenPatch(name, dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, pderr.Wrap(op, pderr.KindNotFound, err, name)
	case errors.Is(err, native.ErrNoInstance):
		return nil, pderr.InstanceMissing(op)
	case err != nil:
		return nil, pderr.Wrap(op, pderr.KindEngine, err, name)
	case id == 0:
		return nil, pderr.NotFound(op, "patch", name)
	}
	return NewPatch(eng, id, filepath.Join(dir, name)), nil
}

// PatchFromRaw rebuilds a handle from a bare identifier.
func PatchFromRaw(eng native.Engine, id native.Patch) *Patch {
	return NewPatch(eng, id, "")
}

// Close closes the patch.
func (p *Patch) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id == 0 {
		if p.released {
			return nil
		}
		return pderr.New("handle.Patch.Close", pderr.KindAlreadyReleased, "null patch handle")
	}
	inOwner(p.eng, p.owner, func() { p.eng.ClosePatch(p.id) })
	p.id = 0
	p.released = true
	return nil
}

// ID returns the native identifier, or zero once closed.
func (p *Patch) ID() native.Patch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

// Instance returns the instance the patch was opened in.
func (p *Patch) Instance() native.Instance { return p.owner }

// IsOpen reports whether the patch has not been closed.
func (p *Patch) IsOpen() bool { return p.ID() != 0 }

// DollarZero returns the patch's $0 value as it was when opened.
func (p *Patch) DollarZero() int { return p.dollarZero }

// Path returns the file the patch was opened from.
func (p *Patch) Path() string { return p.path }

// Receiver is a host subscription to a named endpoint.
type Receiver struct {
	eng   native.Engine
	owner native.Instance
	name  string

	mu       sync.Mutex
	id       native.Binding
	released bool
}

// NewReceiver wraps an identifier returned by the engine's bind call.
func NewReceiver(eng native.Engine, id native.Binding, name string) *Receiver {
	return &Receiver{eng: eng, owner: eng.ThisInstance(), id: id, name: name}
}

// Bind subscribes to name on the current instance.
func Bind(eng native.Engine, name string) (*Receiver, error) {
	const op = "handle.Bind"
	id, err := eng.Bind(name)
	if err != nil {
		return nil, pderr.Wrap(op, pderr.KindSubscription, err, name)
	}
	if id == 0 {
		return nil, pderr.New(op, pderr.KindSubscription, "engine returned a null binding for %q", name)
	}
	return NewReceiver(eng, id, name), nil
}

// Unbind removes the subscription.
func (r *Receiver) Unbind() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id == 0 {
		if r.released {
			return nil
		}
		return pderr.New("handle.Receiver.Unbind", pderr.KindAlreadyReleased, "null receiver handle for %q", r.name)
	}
	inOwner(r.eng, r.owner, func() { r.eng.Unbind(r.id) })
	r.id = 0
	r.released = true
	return nil
}

// Instance returns the instance the subscription belongs to.
func (r *Receiver) Instance() native.Instance { return r.owner }

// Name returns the endpoint name.
func (r *Receiver) Name() string { return r.name }

// IsBound reports whether the subscription is still active.
func (r *Receiver) IsBound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id != 0
}

// inOwner runs fn with owner current on the calling thread.
func inOwner(eng native.Engine, owner native.Instance, fn func()) {
	if prev := eng.ThisInstance(); owner != 0 && prev != owner {
		eng.SetInstance(owner)
		defer eng.SetInstance(prev)
	}
	fn()
}
