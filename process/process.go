package process

import (
	"context"
	"sync"
	"time"

	"github.com/kdwarn/plumgo/persistence"
)

// ProcessBody is the user-supplied computation a Process runs. The
// runtime is fully generic over ProcessBody rather than relying on
// subclass dispatch of on_create/on_run/... hooks: Run is the only
// required method, and optional lifecycle hooks are picked up via the
// On*Hook interfaces below when a body implements them.
type ProcessBody interface {
	// TypeID is the stable loader identifier used as the process's
	// bundle class_name, resolved back to a constructor through a
	// persistence.Registry at load time.
	TypeID() string

	// Run is the top-level step function entered from Created.
	Run(ctx *Context) (Command, error)
}

// OutputValidator stands in for the out-of-scope port/spec validation
// system: Process.Out calls Validate before appending to outputs and
// firing EventOutputEmitted.
type OutputValidator interface {
	Validate(name string, value any) error
}

// Optional ProcessBody hooks, checked via type assertion. A body
// implementing none of these still works; the hooks exist for bodies
// that want to observe their own lifecycle without registering an
// external Listener.
type (
	OnCreateHook        interface{ OnCreate(p *Process) }
	OnRunHook            interface{ OnRun(p *Process) }
	OnOutputEmittedHook  interface {
		OnOutputEmitted(p *Process, name string, value any)
	}
	OnFinishedHook interface{ OnFinished(p *Process, result any) }
	OnExceptedHook interface{ OnExcepted(p *Process, err error) }
	OnKilledHook   interface{ OnKilled(p *Process, msg string) }
	OnPausedHook   interface{ OnPaused(p *Process, msg string) }
	OnPlayingHook  interface{ OnPlaying(p *Process) }
)

// Process owns its lifecycle state, accumulated outputs, and the
// control-surface bookkeeping (paused flag, status, pending interrupt
// action). The state value back-references Process
// (non-owning); Process owns the State by value through the state field,
// replacing it only after the outgoing state's Exit hook has run.
type Process struct {
	mu sync.Mutex

	pid       PID
	createdAt time.Time
	body      ProcessBody

	rawInputs    any
	parsedInputs any
	outputs      map[string]any

	state State

	future *Future

	paused          bool
	prePausedStatus string
	status          string

	stepping           bool
	currentInterruptCh chan struct{}
	pendingInterrupt   *pendingInterrupt
	pausedCh           chan struct{}

	cleanups []func()
	events   eventTable

	startOnce sync.Once

	emitter            emitterAdapter
	metrics            *Metrics
	communicator       Communicator
	validator          OutputValidator
	persister          persistence.Persister
	autoPersistEnabled bool
	stepTimeout        time.Duration

	step int // monotonically increasing step-executor iteration count
}

// pendingInterrupt records the single outstanding interrupt action
// permitted at any moment: at most one interrupt action may be pending.
type pendingInterrupt struct {
	interrupt *Interruption
	// done is closed once the interrupt action has been applied,
	// letting callers of pause()/kill() await the same action they
	// observed rather than racing a second one into existence.
	done chan struct{}
}

// New constructs a Process in the Created state for the given body.
// Configuration is supplied as a mix of Options and Option values,
// exactly as the teacher's engine constructor accepts variadic
// configuration arguments.
func New(body ProcessBody, rawInputs any, rest ...any) (*Process, error) {
	cfg, err := newProcessConfig(rest)
	if err != nil {
		return nil, err
	}

	p := &Process{
		pid:          NewPID(),
		createdAt:    time.Now(),
		body:         body,
		rawInputs:    rawInputs,
		parsedInputs: rawInputs,
		outputs:      make(map[string]any),
		future:       NewFuture(),
		status:       "created",
		emitter:            emitterAdapter{e: cfg.opts.Emitter},
		metrics:            cfg.opts.Metrics,
		communicator:       cfg.opts.Communicator,
		persister:          cfg.opts.Persister,
		autoPersistEnabled: cfg.opts.AutoPersist,
		stepTimeout:        cfg.opts.DefaultStepTimeout,
	}
	if v, ok := body.(OutputValidator); ok {
		p.validator = v
	}

	p.future.OnCancel(func() {
		_ = p.Kill("Killed by future being cancelled")
	})

	p.state = &createdState{run: body.Run}

	p.fireEvent(EventCreated, nil)
	if hook, ok := body.(OnCreateHook); ok {
		hook.OnCreate(p)
	}

	return p, nil
}

// PID returns the process's identifier.
func (p *Process) PID() PID {
	return p.pid
}

// CreatedAt returns the process's creation timestamp.
func (p *Process) CreatedAt() time.Time {
	return p.createdAt
}

// Future returns the terminal future; it resolves once the process
// reaches Finished, Excepted, or Killed.
func (p *Process) Future() *Future {
	return p.future
}

// Label returns the current lifecycle state's label.
func (p *Process) Label() Label {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Label()
}

// Status returns the process's current status string (e.g. a pause
// message, or "created"/"running").
func (p *Process) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Paused reports whether the process is currently paused.
func (p *Process) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Outputs returns a snapshot copy of the accumulated outputs map.
func (p *Process) Outputs() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]any, len(p.outputs))
	for k, v := range p.outputs {
		out[k] = v
	}
	return out
}

// RawInputs returns the immutable snapshot of the inputs supplied at
// construction.
func (p *Process) RawInputs() any {
	return p.rawInputs
}

// ParsedInputs returns the immutable validated/parsed inputs, which
// equal RawInputs unless the owning body overwrote them during
// construction.
func (p *Process) ParsedInputs() any {
	return p.parsedInputs
}

// AddCleanup registers a callback run once, in LIFO order, when the
// process reaches a terminal state.
func (p *Process) AddCleanup(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanups = append(p.cleanups, fn)
}

func (p *Process) runCleanups() {
	p.mu.Lock()
	cleanups := p.cleanups
	p.cleanups = nil
	p.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// AddListener registers l to receive every lifecycle event fired by this
// process, in registration order.
func (p *Process) AddListener(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.add(l)
}

// RemoveListener unregisters a previously-added Listener.
func (p *Process) RemoveListener(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.remove(l)
}

// Out validates and appends a named output value, then fires
// EventOutputEmitted. Output emission is observable to listeners
// strictly after successful validation.
func (p *Process) Out(name string, value any) error {
	if p.validator != nil {
		if err := p.validator.Validate(name, value); err != nil {
			return NewProcessError(CodeInvalidState, "process: output validation failed for "+name, err)
		}
	}

	p.mu.Lock()
	p.outputs[name] = value
	p.mu.Unlock()

	p.fireEvent(EventOutputEmitted, map[string]any{"name": name, "value": value})
	if hook, ok := p.body.(OnOutputEmittedHook); ok {
		hook.OnOutputEmitted(p, name, value)
	}
	return nil
}

// fireEvent fans the event out to the listener table and the configured
// emitter.
func (p *Process) fireEvent(kind EventKind, data any) {
	p.events.fire(kind, p, data)
	p.emitter.emit(p, kind, data)
}

// broadcastStateChange publishes the advisory
// "state_changed.{from}.{to}" broadcast when to is a non-terminal
// state. Entering a terminal state is announced through the process's
// own finished/excepted/killed events instead, not this broadcast.
// Failures are logged and dropped, never surfaced to the caller,
// matching the propagation policy for broadcast transport errors.
func (p *Process) broadcastStateChange(from, to Label) {
	if p.communicator == nil || to.IsTerminal() {
		return
	}
	subject := "state_changed." + string(from) + "." + string(to)
	_, _ = p.communicator.BroadcastSend(context.Background(), nil, p.pid.String(), subject, "")
}
