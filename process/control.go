package process

import "sync"

// Play resumes a paused process, or cancels a pause request that hasn't
// been applied yet because the current step hadn't yielded. Returns
// false if the process is terminal (nothing to play). Returns true if it
// is already playing with no pause pending (a no-op, reported as success
// rather than error). Idempotent: calling Play twice in a row is harmless.
func (p *Process) Play() bool {
	p.mu.Lock()
	if p.state.Label().IsTerminal() {
		p.mu.Unlock()
		return false
	}

	// Cancel a pause that was requested but not yet applied (the step it
	// interrupted hasn't yielded). Kill is never cancellable this way.
	if p.pendingInterrupt != nil && p.pendingInterrupt.interrupt.Kind == InterruptPause {
		pi := p.pendingInterrupt
		p.pendingInterrupt = nil
		p.mu.Unlock()
		close(pi.done)
		p.mu.Lock()
	}

	if !p.paused {
		p.mu.Unlock()
		return true
	}

	p.paused = false
	p.status = p.prePausedStatus
	ch := p.pausedCh
	p.pausedCh = nil
	p.mu.Unlock()

	if ch != nil {
		close(ch)
	}

	p.fireEvent(EventPlaying, nil)
	if hook, ok := p.body.(OnPlayingHook); ok {
		hook.OnPlaying(p)
	}
	return true
}

// Pause requests that the process suspend at its next suspension point:
// immediately if it is idle between steps, or after its current step
// yields and the resulting next state has been entered if one is
// in-flight. Returns false if the process is already terminal. Calling
// Pause again while one is already pending or applied returns true
// without creating a second interrupt action.
func (p *Process) Pause(msg string) bool {
	return p.requestInterrupt(InterruptPause, msg)
}

// Kill requests that the process terminate: immediately if idle between
// steps, or by force-completing a pending Waiting future, or by forcing
// the next computed state to Killed once the current step yields.
// Returns false if the process is already terminal.
func (p *Process) Kill(msg string) bool {
	return p.requestInterrupt(InterruptKill, msg)
}

// requestInterrupt implements the shared machinery behind Pause and
// Kill: at most one interrupt action may be outstanding at a time, and a
// second call while one is already pending observes the existing action
// rather than replacing it.
func (p *Process) requestInterrupt(kind InterruptionKind, msg string) bool {
	p.mu.Lock()
	if p.state.Label().IsTerminal() {
		p.mu.Unlock()
		return false
	}

	if p.pendingInterrupt != nil {
		// Already an action in flight; a later kill still wins over an
		// earlier pause by upgrading it in place.
		if kind == InterruptKill && p.pendingInterrupt.interrupt.Kind != InterruptKill {
			p.pendingInterrupt.interrupt = &Interruption{Kind: kind, Msg: msg}
		}
		p.mu.Unlock()
		return true
	}

	interrupt := &Interruption{Kind: kind, Msg: msg}
	pi := &pendingInterrupt{interrupt: interrupt, done: make(chan struct{})}
	p.pendingInterrupt = pi

	stepping := p.stepping
	interruptCh := p.currentInterruptCh
	state := p.state
	wasPaused := p.paused
	p.mu.Unlock()

	if stepping {
		// Mid-step: wake a cooperative step via Context.Interrupted and
		// let a suspended Waiting future resolve to the interruption. The
		// step executor applies the action once the current occupancy's
		// Execute returns.
		if interruptCh != nil {
			closeSafely(interruptCh)
		}
		state.Interrupt(interrupt)
		return true
	}

	// Idle between steps (or still sitting on an already-applied pause):
	// apply immediately rather than waiting for a step that isn't
	// running.
	if kind == InterruptKill {
		p.transitionTo(&killedState{message: msg})
	} else if !wasPaused {
		p.mu.Lock()
		p.paused = true
		p.prePausedStatus = p.status
		p.status = msg
		p.pausedCh = make(chan struct{})
		p.mu.Unlock()
		p.fireEvent(EventPaused, map[string]any{"message": msg})
		if hook, ok := p.body.(OnPausedHook); ok {
			hook.OnPaused(p, msg)
		}
	}

	p.clearPendingInterrupt()
	return true
}

// clearPendingInterrupt clears the outstanding interrupt action and
// releases anyone awaiting its completion through pendingInterrupt.done.
func (p *Process) clearPendingInterrupt() {
	p.mu.Lock()
	pi := p.pendingInterrupt
	p.pendingInterrupt = nil
	p.mu.Unlock()
	if pi != nil {
		close(pi.done)
	}
}

// beginStep marks the process as mid-step (covering both a Running
// state's step function and a Waiting state's blocking future-wait,
// since both run inside the single step-executor goroutine's call to
// Execute) and hands back a fresh interrupt channel for this occupancy's
// Context.Interrupted.
func (p *Process) beginStep() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepping = true
	p.currentInterruptCh = make(chan struct{})
	return p.currentInterruptCh
}

// currentInterrupt returns the interrupt channel allocated by the most
// recent beginStep, for a running step's Context.Interrupted.
func (p *Process) currentInterrupt() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentInterruptCh
}

// peekInterrupt reports whether an interrupt was requested during the
// occupancy that just ended, without clearing the mid-step flag: the
// step executor stays "stepping" through transitionTo too, so a second
// interrupt request racing the transition itself is still seen as
// mid-step rather than racing transitionTo from another goroutine.
func (p *Process) peekInterrupt() *Interruption {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingInterrupt == nil {
		return nil
	}
	return p.pendingInterrupt.interrupt
}

// endStepping clears the mid-step flag once a full loop iteration
// (Execute through transitionTo) has completed.
func (p *Process) endStepping() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepping = false
}

// applyInterrupt decides the actual next state once an interrupt has
// been reported alongside a step's ordinary next state: a kill always
// forces Killed, while a pause honors the computed next state and then
// suspends the process on it before its Execute runs.
func (p *Process) applyInterrupt(next State, i *Interruption) State {
	defer p.clearPendingInterrupt()

	if i.Kind == InterruptKill {
		return &killedState{message: i.Msg}
	}

	p.mu.Lock()
	p.paused = true
	p.prePausedStatus = p.status
	p.status = i.Msg
	p.pausedCh = make(chan struct{})
	p.mu.Unlock()

	p.fireEvent(EventPaused, map[string]any{"message": i.Msg})
	if hook, ok := p.body.(OnPausedHook); ok {
		hook.OnPaused(p, i.Msg)
	}
	return next
}

// awaitUnpaused blocks the step executor's goroutine between steps while
// the process is paused, returning once Play closes the paused channel.
func (p *Process) awaitUnpaused() {
	for {
		p.mu.Lock()
		if !p.paused {
			p.mu.Unlock()
			return
		}
		ch := p.pausedCh
		p.mu.Unlock()
		if ch == nil {
			return
		}
		<-ch
	}
}

var closeOnceGuard sync.Mutex

// closeSafely closes ch, tolerating a channel that a racing caller
// already closed. The per-occupancy interrupt channel is only ever
// closed by requestInterrupt, and only once per occupancy (beginStep
// allocates a fresh one each time), so in practice this never contends;
// the mutex exists purely to make a double-close safe instead of a
// panic if that invariant is ever violated under a future refactor.
func closeSafely(ch chan struct{}) {
	closeOnceGuard.Lock()
	defer closeOnceGuard.Unlock()
	select {
	case <-ch:
		// already closed
	default:
		close(ch)
	}
}
