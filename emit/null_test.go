package emit

import (
	"context"
	"testing"
)

func TestNullEmitterDiscardsEvents(t *testing.T) {
	e := NewNullEmitter()

	// Must not panic and must not retain any state.
	e.Emit(Event{PID: "p1", Msg: "state_entered"})

	if err := e.EmitBatch(context.Background(), []Event{{PID: "p1"}}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
