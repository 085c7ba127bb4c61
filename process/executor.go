package process

import (
	"context"
	"time"
)

// Start launches the process's step executor on its own goroutine and
// returns immediately. Calling Start more than once is a no-op; the
// first call wins.
func (p *Process) Start() {
	p.startOnce.Do(func() {
		go p.runLoop()
	})
}

// Wait blocks until the process reaches a terminal state, returning its
// result or error exactly as Future().Result() would.
func (p *Process) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.future.Done():
		return p.future.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runLoop is the single per-process step executor: while the current
// state is non-terminal, it suspends on a pending pause, executes the
// state's work unit, applies any reported interruption, transitions to
// the resulting state, and repeats. Exactly one goroutine ever runs this
// loop for a given Process.
func (p *Process) runLoop() {
	if p.metrics != nil {
		p.metrics.IncrementInflightProcesses()
	}
	for {
		p.mu.Lock()
		cur := p.state
		p.mu.Unlock()

		if cur.Label().IsTerminal() {
			if p.metrics != nil {
				p.metrics.DecrementInflightProcesses()
			}
			p.runCleanups()
			return
		}

		p.awaitUnpaused()

		// "stepping" stays true from here through the end of transitionTo
		// below, not just across Execute: an interrupt request arriving
		// while the executor is mid-transition must still see a process
		// that's mid-step, or it would race transitionTo from another
		// goroutine instead of queuing as a pending interrupt action.
		p.beginStep()

		var timeoutTimer *time.Timer
		if p.stepTimeout > 0 {
			timeoutTimer = time.AfterFunc(p.stepTimeout, func() {
				p.requestInterrupt(InterruptKill, "step exceeded default step timeout")
			})
		}

		started := time.Now()
		next, interrupt, err := cur.Execute(p)
		if timeoutTimer != nil {
			timeoutTimer.Stop()
		}
		if fromStep := p.peekInterrupt(); interrupt == nil {
			interrupt = fromStep
		}
		p.recordStepLatency(cur.Label(), time.Since(started), err)

		if interrupt != nil {
			if p.metrics != nil {
				p.metrics.IncrementInterrupts(interrupt.Kind)
			}
			next = p.applyInterrupt(next, interrupt)
		}
		if err != nil {
			next = &exceptedState{exception: err}
		}

		p.transitionTo(next)
		p.endStepping()
	}
}

// transitionTo moves the process from its current state to next,
// validating the edge, running Exit on the outgoing state and Enter on
// the incoming one, firing the advisory state_changed broadcast, and
// persisting a checkpoint if an auto-persist Persister is configured. An
// illegal transition forces the process directly to Excepted instead of
// leaving it in an inconsistent state.
func (p *Process) transitionTo(next State) {
	p.mu.Lock()
	cur := p.state
	p.mu.Unlock()

	if err := checkTransition(cur, next.Label()); err != nil {
		next = &exceptedState{exception: NewProcessError(CodeTransitionFailed, err.Error(), err)}
	}

	cur.Exit(p)

	p.mu.Lock()
	p.state = next
	p.step++
	p.mu.Unlock()

	next.Enter(p)
	p.broadcastStateChange(cur.Label(), next.Label())
	p.autoPersist()
}

// recordStepLatency reports the wall-clock duration of the just-executed
// occupancy to the configured Metrics, labeled by the state it ran in
// and whether it errored.
func (p *Process) recordStepLatency(label Label, d time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.RecordStepLatency(label, d, outcome)
}

// autoPersist saves a checkpoint through the configured Persister when
// auto-persist is enabled, dropping (but counting) any failure rather
// than letting a storage hiccup crash the step executor. Callers wanting
// a guaranteed checkpoint should call Persist explicitly instead.
func (p *Process) autoPersist() {
	if p.persister == nil || !p.autoPersistEnabled {
		return
	}
	outcome := "ok"
	if err := p.Persist(context.Background(), ""); err != nil {
		outcome = "error"
	}
	if p.metrics != nil {
		p.metrics.IncrementCheckpoints(outcome)
	}
}
