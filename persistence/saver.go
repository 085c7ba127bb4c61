package persistence

import (
	"fmt"
	"sync"
)

// Savable is implemented by any type that can be turned into a Bundle.
// TypeID returns the stable, human-readable loader identifier recorded
// as the bundle's class_name meta-key (the reference form is
// "module:qualname"; here a short dotted string such as "process.Process"
// or "workchain.Stepper" serves the same purpose).
type Savable interface {
	TypeID() string
	SaveState() (*Bundle, error)
}

// Loadable is implemented by any type reconstructable from a Bundle. It
// is invoked on a freshly-allocated, zero-valued instance obtained from
// the saver registry; LoadState populates it from the bundle.
type Loadable interface {
	LoadState(b *Bundle, ctx *LoadContext) error
}

// LoadContext supplies a Loadable with everything it needs to
// reconstruct cross-cutting collaborators that a Bundle cannot itself
// carry: the registry used to resolve nested savables, and an opaque
// Extra payload for domain-specific collaborators (event loop,
// communicator, logger, owning process) that this package must not
// import directly to avoid a dependency cycle with package process.
type LoadContext struct {
	Registry *Registry
	Extra    any
}

// Registry is the object-loader: a build-time-registered table mapping
// stable string ids to zero-value constructors, replacing the reference
// design's dynamic class loading by fully-qualified name. Types register
// themselves via an init() hook or explicit registration in main, per the
// design note on re-architecting dynamic class loading for a systems
// language.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]func() Loadable
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]func() Loadable)}
}

// Register associates a loader id with a constructor that returns a
// fresh, zero-valued Loadable ready for LoadState. Re-registering the
// same id overwrites the previous constructor, which is useful in tests
// but should not happen in production wiring.
func (r *Registry) Register(id string, ctor func() Loadable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[id] = ctor
}

// Load resolves a bundle's class_name (or its explicit object_loader
// override, if set) to a constructor, allocates a fresh instance, and
// invokes LoadState on it.
func (r *Registry) Load(b *Bundle, ctx *LoadContext) (Loadable, error) {
	id := b.ObjectLoader()
	if id == "" {
		id = b.ClassName()
	}
	if id == "" {
		return nil, fmt.Errorf("persistence: bundle has no class_name or object_loader")
	}

	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("persistence: no registered loader for %q", id)
	}

	instance := ctor()
	childCtx := ctx
	if childCtx == nil {
		childCtx = &LoadContext{Registry: r}
	} else if childCtx.Registry == nil {
		dup := *ctx
		dup.Registry = r
		childCtx = &dup
	}
	if err := instance.LoadState(b, childCtx); err != nil {
		return nil, fmt.Errorf("persistence: loading %q: %w", id, err)
	}
	return instance, nil
}

// Identify returns a Savable's registered loader id. It exists as a thin
// symmetry helper alongside Load; callers usually just call
// savable.TypeID() directly.
func Identify(s Savable) string {
	return s.TypeID()
}

// NewByID allocates a fresh zero-valued Loadable registered under id,
// without invoking LoadState on it. Callers that need to identify a
// bundle's concrete type before they can finish reconstructing some
// enclosing object (a Process needing its body instance up front, via
// ProcessLoadExtra) use this instead of Load.
func (r *Registry) NewByID(id string) (Loadable, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("persistence: no registered loader for %q", id)
	}
	return ctor(), nil
}
