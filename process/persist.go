package process

import (
	"context"
	"time"

	"github.com/kdwarn/plumgo/persistence"
)

// TypeID identifies Process as a Savable, letting a Process be embedded
// as a nested bundle inside another savable (a workchain's record of a
// submitted child, for instance) in addition to being checkpointed
// directly through Persist.
func (p *Process) TypeID() string { return "process.Process" }

// SaveState serializes the process's lifecycle state, accumulated
// outputs, and control-surface bookkeeping into a bundle. The current
// State variant is recorded as a nested bundle; the owning body is
// included as a nested bundle too, if it implements persistence.Savable.
func (p *Process) SaveState() (*persistence.Bundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := persistence.NewBundle(p.TypeID())
	b.SetObjectLoader(p.body.TypeID())
	b.SetField("pid", p.pid.String())
	b.SetField("created_at", p.createdAt.Format(time.RFC3339Nano))
	b.SetField("raw_inputs", p.rawInputs)
	b.SetField("parsed_inputs", p.parsedInputs)
	b.SetField("outputs", p.outputs)
	b.SetField("paused", p.paused)
	b.SetField("pre_paused_status", p.prePausedStatus)
	b.SetField("status", p.status)
	b.SetField("step", p.step)

	stateBundle, err := p.state.Save()
	if err != nil {
		return nil, NewProcessError(CodePersistenceError, "process: saving state", err)
	}
	b.SetSavableField("state", stateBundle)

	if saver, ok := p.body.(persistence.Savable); ok {
		bodyBundle, err := saver.SaveState()
		if err != nil {
			return nil, NewProcessError(CodePersistenceError, "process: saving body", err)
		}
		b.SetSavableField("body", bodyBundle)
	}

	return b, nil
}

// ProcessLoadExtra carries what a Bundle alone cannot: the live
// ProcessBody instance to attach (persisted function references are
// resolved against it via StepRegistrar) and any Options/Option values
// to reconfigure the reconstructed Process with.
type ProcessLoadExtra struct {
	Body ProcessBody
	Opts []any
}

// LoadState reconstructs a Process from a bundle previously produced by
// SaveState. ctx.Extra must be a non-nil *ProcessLoadExtra naming the
// body to attach; this is the one piece of reconstruction a registry
// constructor cannot supply on its own, since the body is user code, not
// a zero-valued type the registry can allocate generically.
func (p *Process) LoadState(b *persistence.Bundle, ctx *persistence.LoadContext) error {
	extra, _ := ctx.Extra.(*ProcessLoadExtra)
	if extra == nil || extra.Body == nil {
		return NewProcessError(CodePersistenceError, "process: LoadState requires ctx.Extra to be a *ProcessLoadExtra with a Body", nil)
	}

	cfg, err := newProcessConfig(extra.Opts)
	if err != nil {
		return err
	}

	pid, err := ParsePID(b.Field("pid").String())
	if err != nil {
		return NewProcessError(CodePersistenceError, "process: invalid pid in bundle", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, b.Field("created_at").String())

	p.pid = pid
	p.createdAt = createdAt
	p.body = extra.Body
	p.rawInputs = b.Field("raw_inputs").Value()
	p.parsedInputs = b.Field("parsed_inputs").Value()
	p.outputs = make(map[string]any)
	if m, ok := b.Field("outputs").Value().(map[string]any); ok {
		p.outputs = m
	}
	p.paused = b.Field("paused").Bool()
	p.prePausedStatus = b.Field("pre_paused_status").String()
	p.status = b.Field("status").String()
	p.step = int(b.Field("step").Int())

	p.future = NewFuture()
	p.emitter = emitterAdapter{e: cfg.opts.Emitter}
	p.metrics = cfg.opts.Metrics
	p.communicator = cfg.opts.Communicator
	p.persister = cfg.opts.Persister
	p.autoPersistEnabled = cfg.opts.AutoPersist
	p.stepTimeout = cfg.opts.DefaultStepTimeout
	if v, ok := p.body.(OutputValidator); ok {
		p.validator = v
	}

	stateBundle, ok := b.NestedBundle("state")
	if !ok {
		return NewProcessError(CodePersistenceError, "process: bundle missing nested state", nil)
	}
	state, err := loadState(stateBundle, p)
	if err != nil {
		return err
	}
	p.state = state

	if loader, ok := p.body.(persistence.Loadable); ok {
		if bodyBundle, ok := b.NestedBundle("body"); ok {
			if err := loader.LoadState(bodyBundle, ctx); err != nil {
				return NewProcessError(CodePersistenceError, "process: loading body", err)
			}
		}
	}

	p.future.OnCancel(func() {
		_ = p.Kill("Killed by future being cancelled")
	})

	// A process loaded back into a terminal state must re-resolve its
	// terminal future without re-running Enter's side effects (no
	// re-firing EventFinished/EventKilled/EventExcepted for an outcome
	// that already happened before the checkpoint was taken).
	switch st := p.state.(type) {
	case *finishedState:
		p.future.set(st.result, nil)
	case *exceptedState:
		p.future.set(nil, st.exception)
	case *killedState:
		p.future.set(nil, &KilledError{Message: st.message})
	}

	return nil
}

// Persist saves a checkpoint for this process through its configured
// Persister under the given tag ("" for the untagged slot). Returns
// ErrNoPersister if none was configured at construction.
func (p *Process) Persist(ctx context.Context, tag string) error {
	if p.persister == nil {
		return ErrNoPersister
	}
	b, err := p.SaveState()
	if err != nil {
		return err
	}
	return p.persister.SaveCheckpoint(ctx, persistence.CheckpointID{PID: p.pid.String(), Tag: tag}, b)
}

// LoadProcess loads a checkpoint by id through persister and reconstructs
// a live Process bound to body, ready to be Start-ed (if non-terminal)
// or inspected (if terminal).
func LoadProcess(ctx context.Context, persister persistence.Persister, id persistence.CheckpointID, body ProcessBody, rest ...any) (*Process, error) {
	b, err := persister.LoadCheckpoint(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &Process{}
	loadCtx := &persistence.LoadContext{Extra: &ProcessLoadExtra{Body: body, Opts: rest}}
	if err := p.LoadState(b, loadCtx); err != nil {
		return nil, err
	}
	return p, nil
}
