package launch_test

import (
	"context"
	"testing"
	"time"

	"github.com/kdwarn/plumgo/comm"
	"github.com/kdwarn/plumgo/launch"
	"github.com/kdwarn/plumgo/persistence"
	"github.com/kdwarn/plumgo/process"
)

type greeterBody struct {
	greeting string
}

func (b *greeterBody) TypeID() string { return "launch_test.greeterBody" }

func (b *greeterBody) Run(ctx *process.Context) (process.Command, error) {
	return process.Stop(b.greeting, true), nil
}

func (b *greeterBody) SaveState() (*persistence.Bundle, error) {
	bundle := persistence.NewBundle(b.TypeID())
	bundle.SetField("greeting", b.greeting)
	return bundle, nil
}

func (b *greeterBody) LoadState(bundle *persistence.Bundle, ctx *persistence.LoadContext) error {
	b.greeting = bundle.Field("greeting").String()
	return nil
}

func newGreeterRegistry() *launch.Registry {
	reg := launch.NewRegistry()
	reg.Register("greeter", func(initArgs []any, initKwargs map[string]any) (process.ProcessBody, error) {
		greeting := "hello"
		if v, ok := initKwargs["greeting"].(string); ok {
			greeting = v
		}
		return &greeterBody{greeting: greeting}, nil
	})
	return reg
}

func newBodyRegistry() *persistence.Registry {
	reg := persistence.NewRegistry()
	reg.Register("launch_test.greeterBody", func() persistence.Loadable { return &greeterBody{} })
	return reg
}

func TestLaunchWaitsAndReturnsResult(t *testing.T) {
	c := comm.NewInMemory()
	persister := persistence.NewMemoryPersister()
	l := &launch.Launcher{
		Registry:     newGreeterRegistry(),
		Bodies:       newBodyRegistry(),
		Persister:    persister,
		Communicator: c,
	}
	l.Subscribe()

	ctrl := launch.NewRemoteController(c)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := ctrl.LaunchProcess(ctx, &launch.LaunchArgs{
		ProcessClass: "greeter",
		InitKwargs:   map[string]any{"greeting": "hi there"},
	})
	if err != nil {
		t.Fatalf("LaunchProcess: %v", err)
	}
	if reply.Result != "hi there" {
		t.Fatalf("result = %v, want %q", reply.Result, "hi there")
	}
}

func TestCreateThenContinueResumesFromCheckpoint(t *testing.T) {
	c := comm.NewInMemory()
	persister := persistence.NewMemoryPersister()
	l := &launch.Launcher{
		Registry:     newGreeterRegistry(),
		Bodies:       newBodyRegistry(),
		Persister:    persister,
		Communicator: c,
	}
	l.Subscribe()

	ctrl := launch.NewRemoteController(c)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	created, err := ctrl.CreateProcess(ctx, &launch.CreateArgs{
		ProcessClass: "greeter",
		InitKwargs:   map[string]any{"greeting": "resumed greeting"},
		Persist:      true,
	})
	if err != nil {
		t.Fatalf("CreateProcess: %v", err)
	}
	if created.PID == "" {
		t.Fatalf("created.PID is empty")
	}

	continued, err := ctrl.ContinueProcess(ctx, &launch.ContinueArgs{PID: created.PID})
	if err != nil {
		t.Fatalf("ContinueProcess: %v", err)
	}
	if continued.Result != "resumed greeting" {
		t.Fatalf("result = %v, want %q", continued.Result, "resumed greeting")
	}
}

func TestRemoteControllerStatusAfterNoWaitLaunch(t *testing.T) {
	c := comm.NewInMemory()
	l := &launch.Launcher{
		Registry:     newGreeterRegistry(),
		Bodies:       newBodyRegistry(),
		Communicator: c,
	}
	l.Subscribe()

	ctrl := launch.NewRemoteController(c)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := ctrl.LaunchProcess(ctx, &launch.LaunchArgs{
		ProcessClass: "greeter",
		InitKwargs:   map[string]any{"greeting": "slow"},
		NoWait:       true,
	})
	if err != nil {
		t.Fatalf("LaunchProcess: %v", err)
	}

	status, err := ctrl.Status(ctx, reply.PID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Label == "" {
		t.Fatalf("status.Label is empty")
	}
}

func TestLaunchManyRunsConcurrentlyAndCollectsResults(t *testing.T) {
	c := comm.NewInMemory()
	persister := persistence.NewMemoryPersister()
	l := &launch.Launcher{
		Registry:     newGreeterRegistry(),
		Bodies:       newBodyRegistry(),
		Persister:    persister,
		Communicator: c,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	argsList := []*launch.LaunchArgs{
		{ProcessClass: "greeter", InitKwargs: map[string]any{"greeting": "one"}},
		{ProcessClass: "greeter", InitKwargs: map[string]any{"greeting": "two"}},
		{ProcessClass: "greeter", InitKwargs: map[string]any{"greeting": "three"}},
	}

	replies, err := l.LaunchMany(ctx, argsList)
	if err != nil {
		t.Fatalf("LaunchMany: %v", err)
	}
	if len(replies) != len(argsList) {
		t.Fatalf("got %d replies, want %d", len(replies), len(argsList))
	}
	want := []string{"one", "two", "three"}
	for i, reply := range replies {
		if reply.Result != want[i] {
			t.Fatalf("replies[%d].Result = %v, want %q", i, reply.Result, want[i])
		}
	}
}

func TestLaunchManyPropagatesAFailure(t *testing.T) {
	c := comm.NewInMemory()
	l := &launch.Launcher{
		Registry:     newGreeterRegistry(),
		Bodies:       newBodyRegistry(),
		Communicator: c,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	argsList := []*launch.LaunchArgs{
		{ProcessClass: "greeter", InitKwargs: map[string]any{"greeting": "fine"}},
		{ProcessClass: "greeter", Persist: true},
	}

	if _, err := l.LaunchMany(ctx, argsList); err == nil {
		t.Fatalf("expected an error from the persist-without-persister entry")
	}
}

func TestLaunchWithoutPersisterRejectsPersistRequest(t *testing.T) {
	c := comm.NewInMemory()
	l := &launch.Launcher{
		Registry:     newGreeterRegistry(),
		Bodies:       newBodyRegistry(),
		Communicator: c,
	}
	l.Subscribe()

	ctrl := launch.NewRemoteController(c)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ctrl.LaunchProcess(ctx, &launch.LaunchArgs{
		ProcessClass: "greeter",
		Persist:      true,
	})
	if err == nil {
		t.Fatalf("expected an error requesting persist with no persister configured")
	}
}
