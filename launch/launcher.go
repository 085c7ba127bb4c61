package launch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kdwarn/plumgo/persistence"
	"github.com/kdwarn/plumgo/process"
)

// Launcher turns incoming Task messages into running or persisted
// processes. It is registered as an RPC handler at a well-known
// recipient address (conventionally "launcher") so a RemoteController
// elsewhere can address it over the same Communicator every launched
// process uses for its own control-plane RPC.
type Launcher struct {
	// Registry resolves a Task's ProcessClass to a ProcessFactory for
	// launch and create tasks.
	Registry *Registry

	// Bodies resolves a persisted bundle's body type id back to a
	// zero-valued body instance for continue tasks; register the same
	// body types here that SaveState records via TypeID.
	Bodies *persistence.Registry

	// Persister stores and reloads checkpoints for launch(persist=true),
	// create, and continue tasks.
	Persister persistence.Persister

	// Communicator is wired into every process this launcher starts, and
	// used to subscribe each one's control-plane RPC handler.
	Communicator process.Communicator

	// ProcessOptions are applied to every process this launcher
	// constructs, ahead of the communicator/persister options derived
	// from the task itself (WithEmitter, WithMetrics, and similar).
	ProcessOptions []any

	// Codec is the wire codec task and control messages are encoded
	// with. Nil defaults to JSONCodec.
	Codec Codec
}

func (l *Launcher) codec() Codec {
	if l.Codec != nil {
		return l.Codec
	}
	return JSONCodec
}

// Subscribe registers HandleTask as an RPC handler on l.Communicator at
// DefaultLauncherAddress, the address a RemoteController targets by
// default.
func (l *Launcher) Subscribe() process.SubscriptionID {
	if l.Communicator == nil {
		return ""
	}
	return l.Communicator.AddRPCSubscriber(DefaultLauncherAddress, l.HandleTask)
}

// HandleTask implements process.RPCHandler, decoding body (expected to
// be a wire envelope carrying a *Task) and dispatching it to the
// launch, continue, or create handler. The reply is encoded back
// through the same codec the request arrived in.
func (l *Launcher) HandleTask(ctx context.Context, body any) (any, error) {
	env, ok := body.(*envelope)
	if !ok {
		return nil, &process.TaskRejectedError{Task: "unknown", Reason: "body is not a wire envelope"}
	}
	var task Task
	if err := decode(env, &task); err != nil {
		return nil, err
	}

	var reply *TaskReply
	var err error
	switch task.Kind {
	case TaskLaunch:
		reply, err = l.launch(ctx, task.Launch)
	case TaskContinue:
		reply, err = l.doContinue(ctx, task.Continue)
	case TaskCreate:
		reply, err = l.create(ctx, task.Create)
	default:
		return nil, &process.TaskRejectedError{Task: string(task.Kind), Reason: "unrecognized task kind"}
	}
	if err != nil {
		return nil, err
	}
	return encode(l.codec(), reply)
}

func (l *Launcher) launch(ctx context.Context, args *LaunchArgs) (*TaskReply, error) {
	if args == nil {
		return nil, &process.TaskRejectedError{Task: string(TaskLaunch), Reason: "missing launch args"}
	}
	if args.Persist && l.Persister == nil {
		return nil, &process.TaskRejectedError{Task: string(TaskLaunch), Reason: "cannot persist process, no persister configured"}
	}

	body, err := l.Registry.Build(args.ProcessClass, args.InitArgs, args.InitKwargs)
	if err != nil {
		return nil, err
	}

	p, err := process.New(body, args.InitKwargs, l.processOptions(args.Persist)...)
	if err != nil {
		return nil, err
	}
	SubscribeControl(p, l.Communicator, l.codec())
	p.Start()

	if args.NoWait {
		return &TaskReply{PID: p.PID().String()}, nil
	}

	result, err := p.Wait(ctx)
	return &TaskReply{PID: p.PID().String(), Result: result, Waited: true}, err
}

func (l *Launcher) create(ctx context.Context, args *CreateArgs) (*TaskReply, error) {
	if args == nil {
		return nil, &process.TaskRejectedError{Task: string(TaskCreate), Reason: "missing create args"}
	}
	if args.Persist && l.Persister == nil {
		return nil, &process.TaskRejectedError{Task: string(TaskCreate), Reason: "cannot persist process, no persister configured"}
	}

	body, err := l.Registry.Build(args.ProcessClass, args.InitArgs, args.InitKwargs)
	if err != nil {
		return nil, err
	}

	p, err := process.New(body, args.InitKwargs, l.processOptions(args.Persist)...)
	if err != nil {
		return nil, err
	}

	if args.Persist {
		if err := p.Persist(ctx, ""); err != nil {
			return nil, process.NewProcessError(process.CodePersistenceError, "launch: persisting newly created process", err)
		}
	}

	return &TaskReply{PID: p.PID().String()}, nil
}

func (l *Launcher) doContinue(ctx context.Context, args *ContinueArgs) (*TaskReply, error) {
	if args == nil {
		return nil, &process.TaskRejectedError{Task: string(TaskContinue), Reason: "missing continue args"}
	}
	if l.Persister == nil {
		return nil, process.ErrNoPersister
	}

	id := persistence.CheckpointID{PID: args.PID, Tag: args.Tag}
	bundle, err := l.Persister.LoadCheckpoint(ctx, id)
	if err != nil {
		return nil, err
	}

	bodyTypeID := bundle.ObjectLoader()
	loadable, err := l.Bodies.NewByID(bodyTypeID)
	if err != nil {
		return nil, process.NewProcessError(process.CodePersistenceError, "launch: resolving body type for continue", err)
	}
	body, ok := loadable.(process.ProcessBody)
	if !ok {
		return nil, process.NewProcessError(process.CodePersistenceError, "launch: registered body type does not implement process.ProcessBody", nil)
	}

	p, err := process.LoadProcess(ctx, l.Persister, id, body, l.processOptions(true)...)
	if err != nil {
		return nil, err
	}
	SubscribeControl(p, l.Communicator, l.codec())
	p.Start()

	if args.NoWait {
		return &TaskReply{PID: p.PID().String()}, nil
	}

	result, err := p.Wait(ctx)
	return &TaskReply{PID: p.PID().String(), Result: result, Waited: true}, err
}

// LaunchMany starts every entry in argsList concurrently and, for those
// without NoWait set, waits for all of them to finish before returning.
// It is the bulk counterpart to HandleTask's single-task launch path:
// a caller driving a fleet of nowait-false launches directly (rather
// than one Task RPC at a time) gets them run on their own goroutines
// instead of serially, with the first failure cancelling the group via
// errgroup's shared context.
func (l *Launcher) LaunchMany(ctx context.Context, argsList []*LaunchArgs) ([]*TaskReply, error) {
	replies := make([]*TaskReply, len(argsList))

	g, gctx := errgroup.WithContext(ctx)
	for i, args := range argsList {
		i, args := i, args
		g.Go(func() error {
			reply, err := l.launch(gctx, args)
			if err != nil {
				return err
			}
			replies[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return replies, nil
}

func (l *Launcher) processOptions(persist bool) []any {
	opts := make([]any, 0, len(l.ProcessOptions)+2)
	opts = append(opts, l.ProcessOptions...)
	if l.Communicator != nil {
		opts = append(opts, process.WithCommunicator(l.Communicator))
	}
	if persist && l.Persister != nil {
		opts = append(opts, process.WithPersister(l.Persister), process.WithAutoPersist(true))
	}
	return opts
}
