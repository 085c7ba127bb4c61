// Package launch implements remote process control and launch/continue
// dispatch over a process.Communicator: the message shapes, the
// launcher that turns an incoming task into a running Process, and the
// controller that sends those messages from the calling side.
package launch

// Intent names a control-plane request sent directly to a running
// process's own RPC address (its PID).
type Intent string

const (
	IntentPlay   Intent = "play"
	IntentPause  Intent = "pause"
	IntentKill   Intent = "kill"
	IntentStatus Intent = "status"
)

// ControlMessage is the RPC body sent to a process's own PID to play,
// pause, kill it, or query its status. Message is only meaningful for
// Pause and Kill.
type ControlMessage struct {
	Intent  Intent
	Message string
}

// StatusReply is returned by a process's control handler in answer to
// an IntentStatus message.
type StatusReply struct {
	Label  string
	Status string
	Paused bool
}

// TaskKind names the action a Task message asks the launcher to take.
type TaskKind string

const (
	TaskLaunch   TaskKind = "launch"
	TaskContinue TaskKind = "continue"
	TaskCreate   TaskKind = "create"
)

// Task is the RPC body sent to a launcher's recipient address to
// create, launch (create + start), or continue (reload from a
// checkpoint) a process. Exactly one of the three argument fields is
// set, matching Kind.
type Task struct {
	Kind TaskKind

	Launch   *LaunchArgs
	Continue *ContinueArgs
	Create   *CreateArgs
}

// LaunchArgs asks the launcher to build a new process body via its
// registered ProcessFactory, start it, persist it if Persist is set,
// and (unless NoWait) wait for it to finish before replying.
type LaunchArgs struct {
	ProcessClass string
	InitArgs     []any
	InitKwargs   map[string]any
	Persist      bool
	NoWait       bool
}

// ContinueArgs asks the launcher to reload a previously persisted
// process from its checkpoint and resume its step executor.
type ContinueArgs struct {
	PID    string
	Tag    string
	NoWait bool
}

// CreateArgs asks the launcher to build and persist a new process body
// without starting its step executor, returning its PID.
type CreateArgs struct {
	ProcessClass string
	InitArgs     []any
	InitKwargs   map[string]any
	Persist      bool
}

// TaskReply is what a launcher's RPC handler replies with for every
// task kind: PID is always populated, Result only once the process
// being waited on reaches a terminal state.
type TaskReply struct {
	PID     string
	Result  any
	Waited  bool
}
