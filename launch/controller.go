package launch

import (
	"context"

	"github.com/kdwarn/plumgo/process"
)

// DefaultLauncherAddress is the conventional recipient id a Launcher is
// registered under, matching the address a RemoteController targets
// unless its LauncherAddress field is set.
const DefaultLauncherAddress = "launcher"

// RemoteController sends task and control messages to remote processes
// and a remote Launcher over a shared Communicator. It is the
// caller-side counterpart to Launcher and SubscribeControl: every
// method here is a thin RPC wrapper, blocking until the reply arrives
// or ctx is cancelled.
type RemoteController struct {
	Communicator    process.Communicator
	LauncherAddress string

	// Codec is the wire codec requests are encoded with and replies
	// decoded from. Nil defaults to JSONCodec; set YAMLCodec to talk to
	// a launcher configured the same way.
	Codec Codec
}

// NewRemoteController constructs a controller addressing the launcher
// at DefaultLauncherAddress using JSONCodec.
func NewRemoteController(c process.Communicator) *RemoteController {
	return &RemoteController{Communicator: c, LauncherAddress: DefaultLauncherAddress, Codec: JSONCodec}
}

func (c *RemoteController) launcherAddress() string {
	if c.LauncherAddress != "" {
		return c.LauncherAddress
	}
	return DefaultLauncherAddress
}

func (c *RemoteController) codec() Codec {
	if c.Codec != nil {
		return c.Codec
	}
	return JSONCodec
}

// call encodes req through the controller's codec, sends it to address,
// and decodes the reply envelope into resp.
func (c *RemoteController) call(ctx context.Context, address string, req, resp any) error {
	env, err := encode(c.codec(), req)
	if err != nil {
		return err
	}
	reply, err := c.Communicator.RPCSend(ctx, address, env)
	if err != nil {
		return err
	}
	replyEnv, ok := reply.(*envelope)
	if !ok {
		return process.NewProcessError(process.CodeCommunicatorError, "launch: reply was not a wire envelope", nil)
	}
	return decode(replyEnv, resp)
}

// Status requests a process's current label/status/paused snapshot.
func (c *RemoteController) Status(ctx context.Context, pid string) (*StatusReply, error) {
	var status StatusReply
	if err := c.call(ctx, pid, &ControlMessage{Intent: IntentStatus}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Pause requests that pid suspend with the given message.
func (c *RemoteController) Pause(ctx context.Context, pid, msg string) (bool, error) {
	var ok bool
	err := c.call(ctx, pid, &ControlMessage{Intent: IntentPause, Message: msg}, &ok)
	return ok, err
}

// Play requests that pid resume from a pause.
func (c *RemoteController) Play(ctx context.Context, pid string) (bool, error) {
	var ok bool
	err := c.call(ctx, pid, &ControlMessage{Intent: IntentPlay}, &ok)
	return ok, err
}

// Kill requests that pid terminate with the given message.
func (c *RemoteController) Kill(ctx context.Context, pid, msg string) (bool, error) {
	var ok bool
	err := c.call(ctx, pid, &ControlMessage{Intent: IntentKill, Message: msg}, &ok)
	return ok, err
}

// LaunchProcess asks the remote launcher to build, start, and
// (unless NoWait) wait on a new process.
func (c *RemoteController) LaunchProcess(ctx context.Context, args *LaunchArgs) (*TaskReply, error) {
	var reply TaskReply
	if err := c.call(ctx, c.launcherAddress(), &Task{Kind: TaskLaunch, Launch: args}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// CreateProcess asks the remote launcher to build and persist a new
// process without starting it.
func (c *RemoteController) CreateProcess(ctx context.Context, args *CreateArgs) (*TaskReply, error) {
	var reply TaskReply
	if err := c.call(ctx, c.launcherAddress(), &Task{Kind: TaskCreate, Create: args}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ContinueProcess asks the remote launcher to reload a persisted
// process and resume its step executor.
func (c *RemoteController) ContinueProcess(ctx context.Context, args *ContinueArgs) (*TaskReply, error) {
	var reply TaskReply
	if err := c.call(ctx, c.launcherAddress(), &Task{Kind: TaskContinue, Continue: args}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ExecuteProcess is create-then-continue in one call: it persists a new
// process and immediately continues it, so a durable communicator would
// let the process run to completion even across a restart of the
// calling process in between the two steps.
func (c *RemoteController) ExecuteProcess(ctx context.Context, className string, initArgs []any, initKwargs map[string]any) (*TaskReply, error) {
	created, err := c.CreateProcess(ctx, &CreateArgs{
		ProcessClass: className,
		InitArgs:     initArgs,
		InitKwargs:   initKwargs,
		Persist:      true,
	})
	if err != nil {
		return nil, err
	}

	return c.ContinueProcess(ctx, &ContinueArgs{PID: created.PID})
}
