package process_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kdwarn/plumgo/process"
)

// simpleBody finishes immediately with a fixed result.
type simpleBody struct {
	result any
}

func (b *simpleBody) TypeID() string { return "process_test.simpleBody" }

func (b *simpleBody) Run(ctx *process.Context) (process.Command, error) {
	return process.Stop(b.result, true), nil
}

func waitFor(t *testing.T, p *process.Process) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestSimpleRunFinishes(t *testing.T) {
	body := &simpleBody{result: 42}
	p, err := process.New(body, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()

	result, err := waitFor(t, p)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
	if p.Label() != process.LabelFinished {
		t.Fatalf("label = %s, want finished", p.Label())
	}
}

// multiStepBody walks step1 -> step2 -> Stop, exercising Continue.
type multiStepBody struct{}

func (b *multiStepBody) TypeID() string { return "process_test.multiStepBody" }

func (b *multiStepBody) Run(ctx *process.Context) (process.Command, error) {
	return process.Continue(b.step2), nil
}

func (b *multiStepBody) step2(ctx *process.Context) (process.Command, error) {
	return process.Stop("done", true), nil
}

func (b *multiStepBody) StepByName(name string) (process.StepFunc, bool) {
	if name == "step2" {
		return b.step2, true
	}
	return nil, false
}

func TestMultiStepRunFinishes(t *testing.T) {
	body := &multiStepBody{}
	p, err := process.New(body, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()

	result, err := waitFor(t, p)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != "done" {
		t.Fatalf("result = %v, want %q", result, "done")
	}
}

// waitAndResumeBody suspends on a WaitingFuture it completes itself from a
// background goroutine, then resumes with the completed value.
type waitAndResumeBody struct {
	future *process.WaitingFuture
}

func (b *waitAndResumeBody) TypeID() string { return "process_test.waitAndResumeBody" }

func (b *waitAndResumeBody) Run(ctx *process.Context) (process.Command, error) {
	b.future = process.NewWaitingFuture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		b.future.Complete("resumed")
	}()
	return process.WaitOn(b.future, b.resume, "waiting for external event"), nil
}

func (b *waitAndResumeBody) resume(ctx *process.Context) (process.Command, error) {
	return process.Stop(ctx.ResumeValue, true), nil
}

func (b *waitAndResumeBody) StepByName(name string) (process.StepFunc, bool) {
	if name == "resume" {
		return b.resume, true
	}
	return nil, false
}

func TestWaitAndResume(t *testing.T) {
	body := &waitAndResumeBody{}
	p, err := process.New(body, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()

	result, err := waitFor(t, p)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != "resumed" {
		t.Fatalf("result = %v, want %q", result, "resumed")
	}
}

// blockingBody selects on ctx.Interrupted until woken by a pause request,
// then hands off to a second step via Continue rather than stopping
// outright: pausing mid-step suspends the process before its next step
// runs, not before the in-flight step's own Enter/Exit bookkeeping.
type blockingBody struct {
	unblockOnInterrupt chan struct{}
}

func (b *blockingBody) TypeID() string { return "process_test.blockingBody" }

func (b *blockingBody) Run(ctx *process.Context) (process.Command, error) {
	select {
	case <-ctx.Interrupted:
		close(b.unblockOnInterrupt)
		return process.Continue(b.afterInterrupt), nil
	case <-time.After(2 * time.Second):
		return process.Stop("timed out", false), nil
	}
}

func (b *blockingBody) afterInterrupt(ctx *process.Context) (process.Command, error) {
	return process.Stop("interrupted", true), nil
}

func (b *blockingBody) StepByName(name string) (process.StepFunc, bool) {
	if name == "afterInterrupt" {
		return b.afterInterrupt, true
	}
	return nil, false
}

func TestPauseMidStepSuspendsBeforeNextState(t *testing.T) {
	body := &blockingBody{unblockOnInterrupt: make(chan struct{})}
	p, err := process.New(body, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()

	time.Sleep(10 * time.Millisecond)
	if !p.Pause("pausing mid-step") {
		t.Fatalf("Pause returned false")
	}

	select {
	case <-body.unblockOnInterrupt:
	case <-time.After(time.Second):
		t.Fatal("step never observed interruption")
	}

	deadline := time.Now().Add(time.Second)
	for !p.Paused() {
		if time.Now().After(deadline) {
			t.Fatal("process never entered paused")
		}
		time.Sleep(time.Millisecond)
	}
	if p.Label().IsTerminal() {
		t.Fatalf("process reached terminal state %s while paused", p.Label())
	}

	if !p.Play() {
		t.Fatalf("Play returned false")
	}
	result, err := waitFor(t, p)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != "interrupted" {
		t.Fatalf("result = %v, want %q", result, "interrupted")
	}
}

func TestKillWhileWaiting(t *testing.T) {
	// neverResumeBody waits on a future nothing ever completes, so the
	// process stays in Waiting until an external kill ends it.
	p, err := process.New(&neverResumeBody{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()

	time.Sleep(10 * time.Millisecond)
	if !p.Kill("killed while waiting") {
		t.Fatalf("Kill returned false")
	}

	_, err = waitFor(t, p)
	var killedErr *process.KilledError
	if !errors.As(err, &killedErr) {
		t.Fatalf("err = %v, want *process.KilledError", err)
	}
	if p.Label() != process.LabelKilled {
		t.Fatalf("label = %s, want killed", p.Label())
	}
}

// neverResumeBody waits forever (in test terms) on a future nothing
// completes, so only an external kill ends it.
type neverResumeBody struct{}

func (b *neverResumeBody) TypeID() string { return "process_test.neverResumeBody" }

func (b *neverResumeBody) Run(ctx *process.Context) (process.Command, error) {
	return process.Wait(nil, "waiting forever", nil), nil
}

func TestExceptionTransitionsToExcepted(t *testing.T) {
	wantErr := errors.New("boom")
	body := &erroringBody{err: wantErr}
	p, err := process.New(body, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()

	_, err = waitFor(t, p)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if p.Label() != process.LabelExcepted {
		t.Fatalf("label = %s, want excepted", p.Label())
	}
}

type erroringBody struct {
	err error
}

func (b *erroringBody) TypeID() string { return "process_test.erroringBody" }

func (b *erroringBody) Run(ctx *process.Context) (process.Command, error) {
	return process.Command{}, b.err
}

func TestOutputsAccumulateAndFireEvents(t *testing.T) {
	body := &outputBody{}
	var seen []process.EventKind
	p, err := process.New(body, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.AddListener(&process.ListenerFuncs{
		Func: func(kind process.EventKind, proc *process.Process, data any) {
			seen = append(seen, kind)
		},
	})
	p.Start()

	if _, err := waitFor(t, p); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	outputs := p.Outputs()
	if outputs["greeting"] != "hello" {
		t.Fatalf("outputs[greeting] = %v, want hello", outputs["greeting"])
	}

	foundOutput := false
	for _, k := range seen {
		if k == process.EventOutputEmitted {
			foundOutput = true
		}
	}
	if !foundOutput {
		t.Fatalf("never observed EventOutputEmitted, saw %v", seen)
	}
}

type outputBody struct{}

func (b *outputBody) TypeID() string { return "process_test.outputBody" }

func (b *outputBody) Run(ctx *process.Context) (process.Command, error) {
	if err := ctx.Proc.Out("greeting", "hello"); err != nil {
		return process.Command{}, err
	}
	return process.Stop(nil, true), nil
}
