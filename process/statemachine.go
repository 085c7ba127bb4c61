package process

import (
	"fmt"

	"github.com/kdwarn/plumgo/persistence"
)

// createdState is the initial state: constructed, inputs validated, not
// yet run.
type createdState struct {
	run StepFunc
}

func (s *createdState) Label() Label                       { return LabelCreated }
func (s *createdState) AllowedNextLabels() map[Label]bool   { return allowedNext[LabelCreated] }
func (s *createdState) Enter(p *Process)                    {}
func (s *createdState) Exit(p *Process)                     {}
func (s *createdState) Interrupt(i *Interruption)            {}

// Execute returns a Running state pointing at the process's top-level
// step function. Created never itself suspends or fails; a pre-run
// pause is funneled into a deferred pause after entering Running, per
// the decision to treat "Created -> Paused" as an illegal transition.
func (s *createdState) Execute(p *Process) (State, *Interruption, error) {
	return &runningState{step: s.run}, nil, nil
}

func (s *createdState) Save() (*persistence.Bundle, error) {
	b := persistence.NewBundle(string(LabelCreated))
	b.SetMethodField("run_fn", stepFuncName(s.run))
	return b, nil
}

func loadCreatedState(b *persistence.Bundle, p *Process) (State, error) {
	fn, err := resolveStepFunc(p, b.Field("run_fn").String())
	if err != nil {
		return nil, err
	}
	return &createdState{run: fn}, nil
}

// runningState represents a step being executed.
type runningState struct {
	step StepFunc
}

func (s *runningState) Label() Label                     { return LabelRunning }
func (s *runningState) AllowedNextLabels() map[Label]bool { return allowedNext[LabelRunning] }
func (s *runningState) Enter(p *Process)                  { p.fireEvent(EventRunning, nil) }
func (s *runningState) Exit(p *Process)                   {}

func (s *runningState) Interrupt(i *Interruption) {
	// Running observes interruption cooperatively through
	// Context.Interrupted rather than having an external party complete
	// anything on its behalf; nothing to do here beyond the executor's
	// own bookkeeping.
}

// Execute awaits the step function with its captured context. If a
// pause or kill was requested while the step was running, the step still
// gets to return its own command normally (Go's cooperative model has no
// way to abort a step that doesn't check Context.Interrupted itself);
// the step executor's generic beginStep/peekInterrupt/endStepping bracket around every
// Execute call is what actually detects and reports the interruption, so
// this Execute always returns a nil *Interruption itself. A kill always
// wins and forces Killed, while a pause lets the step's own computed
// next state be entered before the process suspends on it.
func (s *runningState) Execute(p *Process) (State, *Interruption, error) {
	ctx := &Context{Proc: p, Interrupted: p.currentInterrupt()}

	cmd, err := s.step(ctx)
	if err != nil {
		return &exceptedState{exception: err}, nil, nil
	}
	return commandToState(cmd, p), nil, nil
}

func (s *runningState) Save() (*persistence.Bundle, error) {
	b := persistence.NewBundle(string(LabelRunning))
	b.SetMethodField("step_fn", stepFuncName(s.step))
	return b, nil
}

func loadRunningState(b *persistence.Bundle, p *Process) (State, error) {
	fn, err := resolveStepFunc(p, b.Field("step_fn").String())
	if err != nil {
		return nil, err
	}
	return &runningState{step: fn}, nil
}

// commandToState maps a step's returned Command to the next State value,
// the step's returned Command.
func commandToState(cmd Command, p *Process) State {
	switch cmd.Kind {
	case CmdContinue:
		if cmd.NextStep == nil {
			// The zero Command: nothing to continue to, so it finishes
			// as Stop(nil, true).
			return &finishedState{result: cmd.Result, successful: true}
		}
		return &runningState{step: cmd.NextStep}
	case CmdWait:
		future := cmd.WaitFuture
		if future == nil {
			future = NewWaitingFuture()
		}
		return &waitingState{
			resumeStep: cmd.ResumeStep,
			message:    cmd.WaitMsg,
			data:       cmd.WaitData,
			future:     future,
		}
	case CmdKill:
		return &killedState{message: cmd.KillMsg}
	default: // CmdStop
		return &finishedState{result: cmd.Result, successful: cmd.Successful || cmd.Kind == CmdStop && cmd.Successful}
	}
}

// waitingState is suspended, resuming when its waiting-future completes.
type waitingState struct {
	resumeStep StepFunc
	message    string
	data       any
	future     *WaitingFuture
}

func (s *waitingState) Label() Label                     { return LabelWaiting }
func (s *waitingState) AllowedNextLabels() map[Label]bool { return allowedNext[LabelWaiting] }
func (s *waitingState) Enter(p *Process)                  { p.fireEvent(EventWaiting, map[string]any{"message": s.message}) }
func (s *waitingState) Exit(p *Process)                   {}

func (s *waitingState) Interrupt(i *Interruption) {
	s.future.CompleteInterrupted(i)
}

// Execute awaits the waiting-future. On normal completion with a nil
// "no value" sentinel it transitions to Running(resumeFn); otherwise
// Running(resumeFn, value). On interruption it rebuilds a fresh
// waiting-future and reports the interruption, so a subsequent play()
// re-enters the same logical wait.
func (s *waitingState) Execute(p *Process) (State, *Interruption, error) {
	value, interrupt := s.future.Wait()
	if interrupt != nil {
		s.future = NewWaitingFuture()
		return s, interrupt, nil
	}

	resume := s.resumeStep
	if resume == nil {
		// No explicit resume step: resuming re-enters this same logical
		// wait's caller by stopping with the resumed value, matching
		// S3's "step2(v) returns v" shape when callers supply resumeStep
		// explicitly; when they don't, the value itself is the result.
		return &finishedState{result: value, successful: true}, nil, nil
	}
	return &runningState{step: bindResumeValue(resume, value)}, nil, nil
}

// bindResumeValue wraps resume so its first invocation receives the
// value the waiting-future completed with, via the step's Context.
func bindResumeValue(resume StepFunc, value any) StepFunc {
	return func(ctx *Context) (Command, error) {
		ctx.ResumeValue = value
		return resume(ctx)
	}
}

func (s *waitingState) Save() (*persistence.Bundle, error) {
	b := persistence.NewBundle(string(LabelWaiting))
	if s.resumeStep != nil {
		b.SetMethodField("resume_fn", stepFuncName(s.resumeStep))
	}
	b.SetField("message", s.message)
	return b, nil
}

func loadWaitingState(b *persistence.Bundle, p *Process) (State, error) {
	var resume StepFunc
	if name := b.Field("resume_fn").String(); name != "" {
		fn, err := resolveStepFunc(p, name)
		if err != nil {
			return nil, err
		}
		resume = fn
	}
	return &waitingState{
		resumeStep: resume,
		message:    b.Field("message").String(),
		future:     NewWaitingFuture(),
	}, nil
}

// finishedState is terminal: the step function completed successfully
// or returned a typed unsuccessful result.
type finishedState struct {
	result     any
	successful bool
}

func (s *finishedState) Label() Label                     { return LabelFinished }
func (s *finishedState) AllowedNextLabels() map[Label]bool { return allowedNext[LabelFinished] }
func (s *finishedState) Interrupt(i *Interruption)         {}

func (s *finishedState) Enter(p *Process) {
	p.fireEvent(EventFinished, map[string]any{"result": s.result, "successful": s.successful})
	if hook, ok := p.body.(OnFinishedHook); ok {
		hook.OnFinished(p, s.result)
	}
	p.future.set(s.result, nil)
}

func (s *finishedState) Exit(p *Process) {}

func (s *finishedState) Execute(p *Process) (State, *Interruption, error) {
	panic("process: Execute called on terminal state finishedState")
}

func (s *finishedState) Save() (*persistence.Bundle, error) {
	b := persistence.NewBundle(string(LabelFinished))
	b.SetField("successful", s.successful)
	b.SetField("result", s.result)
	return b, nil
}

func loadFinishedState(b *persistence.Bundle, p *Process) (State, error) {
	return &finishedState{
		result:     b.Field("result").Value(),
		successful: b.Field("successful").Bool(),
	}, nil
}

// exceptedState is terminal: a step or hook raised an unhandled error.
type exceptedState struct {
	exception error
}

func (s *exceptedState) Label() Label                     { return LabelExcepted }
func (s *exceptedState) AllowedNextLabels() map[Label]bool { return allowedNext[LabelExcepted] }
func (s *exceptedState) Interrupt(i *Interruption)         {}

func (s *exceptedState) Enter(p *Process) {
	p.fireEvent(EventExcepted, map[string]any{"error": s.exception.Error()})
	if hook, ok := p.body.(OnExceptedHook); ok {
		hook.OnExcepted(p, s.exception)
	}
	if p.future.IsDone() {
		// Rare re-entrancy: a process that was already Finished moves to
		// Excepted (e.g. a cleanup callback raised). The terminal future
		// is reset to a fresh one before setting the exception.
		p.future.reset()
	}
	p.future.set(nil, s.exception)
}

func (s *exceptedState) Exit(p *Process) {}

func (s *exceptedState) Execute(p *Process) (State, *Interruption, error) {
	panic("process: Execute called on terminal state exceptedState")
}

func (s *exceptedState) Save() (*persistence.Bundle, error) {
	b := persistence.NewBundle(string(LabelExcepted))
	b.SetField("exception", s.exception.Error())
	return b, nil
}

func loadExceptedState(b *persistence.Bundle, p *Process) (State, error) {
	return &exceptedState{exception: fmt.Errorf("%s", b.Field("exception").String())}, nil
}

// killedState is terminal: the process was terminated by kill().
type killedState struct {
	message string
}

func (s *killedState) Label() Label                     { return LabelKilled }
func (s *killedState) AllowedNextLabels() map[Label]bool { return allowedNext[LabelKilled] }
func (s *killedState) Interrupt(i *Interruption)         {}

func (s *killedState) Enter(p *Process) {
	p.fireEvent(EventKilled, map[string]any{"message": s.message})
	if hook, ok := p.body.(OnKilledHook); ok {
		hook.OnKilled(p, s.message)
	}
	p.future.set(nil, &KilledError{Message: s.message})
}

func (s *killedState) Exit(p *Process) {}

func (s *killedState) Execute(p *Process) (State, *Interruption, error) {
	panic("process: Execute called on terminal state killedState")
}

func (s *killedState) Save() (*persistence.Bundle, error) {
	b := persistence.NewBundle(string(LabelKilled))
	b.SetField("message", s.message)
	return b, nil
}

func loadKilledState(b *persistence.Bundle, p *Process) (State, error) {
	return &killedState{message: b.Field("message").String()}, nil
}
