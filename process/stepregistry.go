package process

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// StepRegistrar lets a ProcessBody name its step functions so they
// survive a save/load round-trip. This constrains persistable method
// references to named members of the owning body, per the design note
// on re-architecting "pickling arbitrary methods by name": bundles
// record a member name rather than a closure, and resolution happens via
// this registry at load instead of generic reflection over a method
// table.
//
// A body that never suspends (returns only Stop on its first step) need
// not implement this interface.
type StepRegistrar interface {
	// StepByName resolves a previously-recorded member name back to a
	// runnable StepFunc bound to this body instance.
	StepByName(name string) (StepFunc, bool)
}

// stepFuncName derives a debug-friendly, best-effort name for fn using
// its compiled symbol name. This is what gets recorded in a bundle's
// method-reference fields; it is stable for named methods of a
// registered body type across a save, as long as the load side resolves
// names via StepRegistrar rather than relying on this string being
// re-parsed into a function pointer.
func stepFuncName(fn StepFunc) string {
	if fn == nil {
		return ""
	}
	full := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	// A method value's wrapper symbol carries a "-fm" suffix
	// ("pkg.(*T).step-fm"); drop it so the recorded name is the method's.
	full = strings.TrimSuffix(full, "-fm")
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		return full[idx+1:]
	}
	return full
}

// resolveStepFunc resolves a recorded step name back to a StepFunc bound
// to p's body. "Run" always resolves to the body's own Run method; any
// other name needs the body to implement StepRegistrar, so bodies that
// never suspend can omit it. Attempting to load a bundle naming another
// step without a registrar is a persistence_error.
func resolveStepFunc(p *Process, name string) (StepFunc, error) {
	if name == "" {
		return nil, nil
	}
	if name == "Run" {
		return p.body.Run, nil
	}
	registrar, ok := p.body.(StepRegistrar)
	if !ok {
		return nil, NewProcessError(CodePersistenceError,
			fmt.Sprintf("process: body %T does not implement StepRegistrar, cannot resolve step %q", p.body, name), nil)
	}
	fn, ok := registrar.StepByName(name)
	if !ok {
		return nil, NewProcessError(CodePersistenceError,
			fmt.Sprintf("process: no step named %q registered by body", name), nil)
	}
	return fn, nil
}
