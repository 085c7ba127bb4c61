package emit

// Event represents an observability event emitted during process execution.
//
// Events provide insight into process lifecycle behavior:
//   - State entry/exit and transitions
//   - Control operations (play, pause, kill, resume, fail)
//   - Output emission
//   - Checkpoint save/load operations
//   - Broadcast notifications
//
// Events are emitted to an Emitter which can log them, forward them as
// OpenTelemetry spans, buffer them for inspection, or discard them.
type Event struct {
	// PID identifies the process that emitted this event.
	PID string

	// Step is a monotonically increasing counter of step-executor iterations
	// for the emitting process. Zero for events not tied to a specific step.
	Step int

	// StateLabel is the lifecycle state label active when the event fired
	// (e.g. "created", "running", "waiting", "finished", "excepted", "killed").
	// Empty for process-level events not tied to a state.
	StateLabel string

	// Msg is a short machine-stable event name, e.g. "state_entered",
	// "process_excepted", "checkpoint_saved".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys: "from", "to" (transition labels), "error", "checkpoint_tag",
	// "subject" (broadcast subject), "duration_ms".
	Meta map[string]interface{}
}
