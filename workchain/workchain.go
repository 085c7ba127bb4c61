package workchain

import (
	"strconv"
	"strings"

	"github.com/kdwarn/plumgo/persistence"
	"github.com/kdwarn/plumgo/process"
)

// Finalizer is implemented by a WorkChain body that wants to compute
// its final result once the outline runs to completion (or returns
// early), mirroring the reference design's on_outline_finished hook.
type Finalizer interface {
	Finalize(wc *WorkChain) (any, error)
}

// WorkChain drives an outline tree as a process body: each process step
// runs exactly one leaf call of the outline, then yields back to the
// step executor via Continue, so a long workchain suspends and
// checkpoints between every leaf call rather than running end to end in
// one step occupancy.
type WorkChain struct {
	typeID    string
	outline   Instruction
	ctx       map[string]any
	finalizer Finalizer

	proc    *process.Process
	stepper Stepper
}

// New constructs a WorkChain body. typeID is the persistence loader id
// (see TypeID); outline is built from Sequence/Step/If/While/Return.
func New(typeID string, outline Instruction) *WorkChain {
	return &WorkChain{typeID: typeID, outline: outline, ctx: make(map[string]any)}
}

// WithFinalizer registers f to compute the process result once the
// outline finishes. A body that embeds *WorkChain and implements
// Finalizer itself must call this with itself: a type assertion against
// the embedded WorkChain value can never observe a method defined on
// the embedding type.
func (wc *WorkChain) WithFinalizer(f Finalizer) *WorkChain {
	wc.finalizer = f
	return wc
}

func (wc *WorkChain) TypeID() string { return wc.typeID }

// Ctx returns the shared mutable context map outline steps read and
// write, the Go analogue of the reference design's self.ctx namespace
// object.
func (wc *WorkChain) Ctx() map[string]any {
	return wc.ctx
}

// Proc returns the owning process, available once Run has been called
// at least once.
func (wc *WorkChain) Proc() *process.Process { return wc.proc }

// Run begins walking the outline. It is the ProcessBody.Run entry
// point; every return handlers off the work to advance via Continue.
func (wc *WorkChain) Run(ctx *process.Context) (process.Command, error) {
	wc.proc = ctx.Proc
	if wc.stepper == nil {
		wc.stepper = wc.outline.CreateStepper()
	}
	return wc.advance(ctx)
}

// advance runs exactly one leaf call of the outline and decides the
// next Command: Continue(advance) while more remains, Stop once the
// outline (or an early Return) completes.
func (wc *WorkChain) advance(ctx *process.Context) (process.Command, error) {
	wc.proc = ctx.Proc

	finished, err := wc.stepper.Step(wc)
	if err != nil {
		if err == ErrReturn {
			return wc.finish()
		}
		return process.Command{}, err
	}
	if finished {
		return wc.finish()
	}
	return process.Continue(wc.advance), nil
}

func (wc *WorkChain) finish() (process.Command, error) {
	if wc.finalizer != nil {
		result, err := wc.finalizer.Finalize(wc)
		if err != nil {
			return process.Command{}, err
		}
		return process.Stop(result, true), nil
	}
	return process.Stop(wc.ctx, true), nil
}

var _ process.ProcessBody = (*WorkChain)(nil)

// SaveState persists the stepper's position path and the shared ctx
// map. The outline tree itself is not serialized: it is rebuilt by
// calling the same New(typeID, outline) constructor the owning
// application used originally, exactly as a Running state's bundle
// records a step function's name rather than its closure.
func (wc *WorkChain) SaveState() (*persistence.Bundle, error) {
	b := persistence.NewBundle(wc.typeID)

	b.SetField("ctx", wc.ctx)
	if wc.stepper != nil {
		b.SetField("stepper_path", encodePath(wc.stepper.Save()))
	}
	return b, nil
}

// LoadState restores ctx and repositions a freshly created stepper at
// the saved path. Callers must have already set wc.outline (typically
// by constructing the WorkChain with New using the same outline as
// before loading).
func (wc *WorkChain) LoadState(b *persistence.Bundle, _ *persistence.LoadContext) error {
	wc.ctx = make(map[string]any)
	if m, ok := b.Field("ctx").Value().(map[string]any); ok {
		wc.ctx = m
	}

	wc.stepper = wc.outline.CreateStepper()
	if path := b.Field("stepper_path").String(); path != "" {
		wc.stepper.Restore(decodePath(path))
	}
	return nil
}

func encodePath(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

func decodePath(s string) []int {
	parts := strings.Split(s, ".")
	path := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		path = append(path, n)
	}
	return path
}
