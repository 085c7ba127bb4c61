package process

import (
	"fmt"

	"github.com/kdwarn/plumgo/persistence"
)

// Label identifies a lifecycle state variant. Labels are used both for
// the allowed-transition graph and as the discriminant recorded in a
// state's bundle.
type Label string

const (
	LabelCreated  Label = "created"
	LabelRunning  Label = "running"
	LabelWaiting  Label = "waiting"
	LabelFinished Label = "finished"
	LabelExcepted Label = "excepted"
	LabelKilled   Label = "killed"
)

// allowedNext is the directed transition graph: terminal states
// (finished, excepted, killed) have no outgoing edges.
var allowedNext = map[Label]map[Label]bool{
	LabelCreated: {LabelRunning: true, LabelKilled: true, LabelExcepted: true},
	LabelRunning: {
		LabelRunning: true, LabelWaiting: true, LabelFinished: true,
		LabelKilled: true, LabelExcepted: true,
	},
	LabelWaiting: {
		LabelRunning: true, LabelWaiting: true, LabelKilled: true,
		LabelExcepted: true, LabelFinished: true,
	},
	LabelFinished: {},
	LabelExcepted: {},
	LabelKilled:   {},
}

// IsTerminal reports whether label has no outgoing transitions.
func (l Label) IsTerminal() bool {
	next, ok := allowedNext[l]
	return ok && len(next) == 0
}

// State is a lifecycle state variant. Exactly one State is active for a
// Process at a time; it holds a non-owning back-reference to the
// process it belongs to, while the Process owns the State value. This
// mirrors the design note on re-architecting the cyclic
// process/state reference for a systems language: the state never
// outlives a transition, so a plain pointer back-reference (rather than
// a weak handle) is sufficient as long as transition_to drops the old
// state only after its Exit hook has run.
type State interface {
	// Label identifies this state variant.
	Label() Label

	// AllowedNextLabels returns the labels transition_to may target from
	// this state.
	AllowedNextLabels() map[Label]bool

	// Enter fires process-level entry side effects. Idempotent after the
	// first call within a single occupancy of this state.
	Enter(p *Process)

	// Exit fires process-level exit side effects, before the next
	// state's Enter runs.
	Exit(p *Process)

	// Execute performs this state's per-occupancy work unit and returns
	// the next state (or itself, for self-loops such as Running
	// returning another Running via Continue). An *Interruption return
	// signals that the step was interrupted; the step executor decides
	// how to action it through the interrupt protocol instead of unwinding a panic.
	Execute(p *Process) (State, *Interruption, error)

	// Interrupt delivers a pause/kill request to this state while it is
	// executing (principally relevant to Waiting, whose waiting-future
	// is completed with the interruption; Running states observe
	// interruption cooperatively via Context.Interrupted instead).
	Interrupt(i *Interruption)

	// Save serializes this state's variant-specific data into a nested
	// bundle. The returned bundle's class_name identifies the variant so
	// LoadState can reconstruct the right Go type.
	Save() (*persistence.Bundle, error)
}

// loadState reconstructs a State value from a nested bundle previously
// produced by Save, resolving the variant by its recorded class_name.
// Unlike the general-purpose saver registry (used for ProcessBody and
// other user-supplied savables), the six state variants are a closed set
// known to this package, so they are switched on directly rather than
// indirected through persistence.Registry.
func loadState(b *persistence.Bundle, p *Process) (State, error) {
	switch b.ClassName() {
	case string(LabelCreated):
		return loadCreatedState(b, p)
	case string(LabelRunning):
		return loadRunningState(b, p)
	case string(LabelWaiting):
		return loadWaitingState(b, p)
	case string(LabelFinished):
		return loadFinishedState(b, p)
	case string(LabelExcepted):
		return loadExceptedState(b, p)
	case string(LabelKilled):
		return loadKilledState(b, p)
	default:
		return nil, fmt.Errorf("process: unknown state class_name %q", b.ClassName())
	}
}

// checkTransition validates that a proposed move from 'from' to the
// label of 'to' is legal per the state graph (transition
// closure). Callers that violate this return ErrIllegalTransition, which
// the step executor turns into a transition_failed Excepted state rather
// than letting the process silently occupy an invalid label.
func checkTransition(from State, to Label) error {
	next := from.AllowedNextLabels()
	if !next[to] {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from.Label(), to)
	}
	return nil
}
