package comm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kdwarn/plumgo/comm"
	"github.com/kdwarn/plumgo/process"
)

func TestRPCSendRoundTrips(t *testing.T) {
	c := comm.NewInMemory()
	c.AddRPCSubscriber("worker-1", func(ctx context.Context, body any) (any, error) {
		return "echo:" + body.(string), nil
	})

	reply, err := c.RPCSend(context.Background(), "worker-1", "hello")
	if err != nil {
		t.Fatalf("RPCSend: %v", err)
	}
	if reply != "echo:hello" {
		t.Fatalf("reply = %v, want echo:hello", reply)
	}
}

func TestRPCSendUnknownRecipient(t *testing.T) {
	c := comm.NewInMemory()
	_, err := c.RPCSend(context.Background(), "nobody", "hi")
	var transportErr *process.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want *process.TransportError", err)
	}
	if transportErr.Kind != process.TransportChannelInvalid {
		t.Fatalf("kind = %v, want TransportChannelInvalid", transportErr.Kind)
	}
}

func TestBroadcastSendFansOutToAllSubscribers(t *testing.T) {
	c := comm.NewInMemory()
	var mu sync.Mutex
	var seen []string

	for _, name := range []string{"a", "b", "c"} {
		name := name
		c.AddBroadcastSubscriber(func(body any, sender, subject, correlationID string) {
			mu.Lock()
			seen = append(seen, name+":"+body.(string))
			mu.Unlock()
		})
	}

	ok, err := c.BroadcastSend(context.Background(), "tick", "scheduler", "heartbeat", "")
	if err != nil {
		t.Fatalf("BroadcastSend: %v", err)
	}
	if !ok {
		t.Fatalf("BroadcastSend returned false")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("seen = %v, want 3 entries", seen)
	}
}

func TestCloseStopsRPCAndToleratesBroadcast(t *testing.T) {
	c := comm.NewInMemory()
	c.AddRPCSubscriber("worker", func(ctx context.Context, body any) (any, error) {
		return nil, nil
	})
	c.Close()

	_, err := c.RPCSend(context.Background(), "worker", "x")
	var transportErr *process.TransportError
	if !errors.As(err, &transportErr) || transportErr.Kind != process.TransportConnectionClosed {
		t.Fatalf("err = %v, want TransportConnectionClosed", err)
	}

	ok, err := c.BroadcastSend(context.Background(), "x", "s", "subj", "")
	if err != nil {
		t.Fatalf("BroadcastSend after close: %v", err)
	}
	if ok {
		t.Fatalf("BroadcastSend after close returned true, want false")
	}
}

func TestRemoveSubscriberStopsDelivery(t *testing.T) {
	c := comm.NewInMemory()
	var calls int
	var mu sync.Mutex
	id := c.AddBroadcastSubscriber(func(body any, sender, subject, correlationID string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	c.BroadcastSend(context.Background(), "1", "s", "", "")
	c.RemoveBroadcastSubscriber(id)
	c.BroadcastSend(context.Background(), "2", "s", "", "")

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
