// Package comm provides transport implementations of the
// process.Communicator contract.
package comm

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kdwarn/plumgo/process"
)

// InMemory is a process.Communicator backed by direct goroutine calls
// instead of a wire protocol: RPCSend invokes the recipient's registered
// handler synchronously (on the caller's goroutine, under ctx), and
// BroadcastSend fans out to every broadcast subscriber in its own
// goroutine and returns once all of them have returned. It is meant
// for single-process deployments, tests, and as a reference
// implementation for a real broker-backed Communicator.
type InMemory struct {
	mu          sync.RWMutex
	rpc         map[process.SubscriptionID]rpcEntry
	broadcast   map[process.SubscriptionID]process.BroadcastHandler
	nextID      uint64
	closed      bool
}

type rpcEntry struct {
	recipientID string
	fn          process.RPCHandler
}

// NewInMemory constructs a ready-to-use InMemory communicator.
func NewInMemory() *InMemory {
	return &InMemory{
		rpc:       make(map[process.SubscriptionID]rpcEntry),
		broadcast: make(map[process.SubscriptionID]process.BroadcastHandler),
	}
}

func (c *InMemory) allocID() process.SubscriptionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return process.SubscriptionID(formatSubID(c.nextID))
}

func formatSubID(n uint64) string {
	const digits = "0123456789"
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n%10]
		n /= 10
	}
	return "sub-" + string(buf[i:])
}

// RPCSend looks up the handler registered for recipientID and invokes it
// synchronously. A recipient with no registered handler yields a
// *process.TransportError with TransportChannelInvalid.
func (c *InMemory) RPCSend(ctx context.Context, recipientID string, body any) (any, error) {
	c.mu.RLock()
	closed := c.closed
	var handler process.RPCHandler
	for _, e := range c.rpc {
		if e.recipientID == recipientID {
			handler = e.fn
			break
		}
	}
	c.mu.RUnlock()

	if closed {
		return nil, &process.TransportError{Kind: process.TransportConnectionClosed}
	}
	if handler == nil {
		return nil, &process.TransportError{Kind: process.TransportChannelInvalid}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return handler(ctx, body)
}

// BroadcastSend fans body out to every broadcast subscriber on its own
// goroutine, returning once every handler has finished, so a slow
// subscriber delays the sender. Returns false rather than an error if the
// communicator has been closed, matching the tolerant-broadcast contract.
func (c *InMemory) BroadcastSend(ctx context.Context, body any, sender, subject, correlationID string) (bool, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false, nil
	}
	handlers := make([]process.BroadcastHandler, 0, len(c.broadcast))
	for _, fn := range c.broadcast {
		handlers = append(handlers, fn)
	}
	c.mu.RUnlock()

	var g errgroup.Group
	for _, fn := range handlers {
		fn := fn
		g.Go(func() error {
			fn(body, sender, subject, correlationID)
			return nil
		})
	}
	// Handlers never return an error (BroadcastHandler has no error
	// result); errgroup is used here purely for its goroutine
	// bookkeeping (no concurrency limit is set), the same role
	// sync.WaitGroup played before.
	_ = g.Wait()
	return true, nil
}

func (c *InMemory) AddRPCSubscriber(id string, fn process.RPCHandler) process.SubscriptionID {
	subID := c.allocID()
	c.mu.Lock()
	c.rpc[subID] = rpcEntry{recipientID: id, fn: fn}
	c.mu.Unlock()
	return subID
}

func (c *InMemory) AddBroadcastSubscriber(fn process.BroadcastHandler) process.SubscriptionID {
	subID := c.allocID()
	c.mu.Lock()
	c.broadcast[subID] = fn
	c.mu.Unlock()
	return subID
}

func (c *InMemory) RemoveRPCSubscriber(id process.SubscriptionID) {
	c.mu.Lock()
	delete(c.rpc, id)
	c.mu.Unlock()
}

func (c *InMemory) RemoveBroadcastSubscriber(id process.SubscriptionID) {
	c.mu.Lock()
	delete(c.broadcast, id)
	c.mu.Unlock()
}

// Close marks the communicator closed: further RPCSend calls fail with
// TransportConnectionClosed and BroadcastSend becomes a no-op. Existing
// subscriptions are left registered (Close does not unregister them) so
// a reopened communicator isn't meaningful; construct a fresh InMemory
// instead.
func (c *InMemory) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

var _ process.Communicator = (*InMemory)(nil)
