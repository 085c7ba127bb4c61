package process

import "github.com/kdwarn/plumgo/emit"

// emitterAdapter bridges Process lifecycle events to the observability
// emit.Emitter interface. A zero-value adapter (nil underlying emitter)
// is a safe no-op, so Process need not special-case "no emitter
// configured" at every call site.
type emitterAdapter struct {
	e emit.Emitter
}

func (a emitterAdapter) emit(p *Process, kind EventKind, data any) {
	if a.e == nil {
		return
	}

	meta, _ := data.(map[string]any)
	if meta == nil && data != nil {
		meta = map[string]any{"data": data}
	}

	a.e.Emit(emit.Event{
		PID:        p.pid.String(),
		Step:       p.step,
		StateLabel: string(p.Label()),
		Msg:        string(kind),
		Meta:       meta,
	})
}
