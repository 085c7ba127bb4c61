package launch

import (
	"sync"

	"github.com/kdwarn/plumgo/process"
)

// ProcessFactory builds a fresh ProcessBody for a launch or create task,
// given the positional and keyword-ish constructor arguments carried in
// the task message. It mirrors the object-loader's build-time
// string-id-to-constructor table, but keyed by the process class name a
// caller names in a Task rather than by a persisted bundle's class_name.
type ProcessFactory func(initArgs []any, initKwargs map[string]any) (process.ProcessBody, error)

// Registry maps a process class name to the factory that can build it,
// the launcher-side counterpart of persistence.Registry: that registry
// resolves a bundle's class_name back to a zero-value constructor for
// loading, this one resolves a Task's ProcessClass to a constructor for
// launching.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProcessFactory
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProcessFactory)}
}

// Register associates className with fn. Registering the same name
// twice overwrites the earlier factory.
func (r *Registry) Register(className string, fn ProcessFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[className] = fn
}

// Build resolves className and invokes its factory. Returns a
// *process.TaskRejectedError if nothing was registered under that name.
func (r *Registry) Build(className string, initArgs []any, initKwargs map[string]any) (process.ProcessBody, error) {
	r.mu.RLock()
	fn, ok := r.factories[className]
	r.mu.RUnlock()
	if !ok {
		return nil, &process.TaskRejectedError{Task: string(TaskLaunch), Reason: "unknown process class: " + className}
	}
	return fn(initArgs, initKwargs)
}
