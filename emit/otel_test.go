package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestOTelEmitterEmitDoesNotPanic(t *testing.T) {
	tracer := otel.Tracer("plumgo-test")
	e := NewOTelEmitter(tracer)

	e.Emit(Event{
		PID:        "p1",
		Step:       1,
		StateLabel: "running",
		Msg:        "state_entered",
		Meta:       map[string]interface{}{"from": "created", "to": "running"},
	})
}

func TestOTelEmitterEmitRecordsError(t *testing.T) {
	tracer := otel.Tracer("plumgo-test")
	e := NewOTelEmitter(tracer)

	e.Emit(Event{
		PID:  "p1",
		Msg:  "process_excepted",
		Meta: map[string]interface{}{"error": "boom"},
	})
}

func TestOTelEmitterEmitBatch(t *testing.T) {
	tracer := otel.Tracer("plumgo-test")
	e := NewOTelEmitter(tracer)

	events := []Event{
		{PID: "p1", Msg: "state_entered"},
		{PID: "p1", Msg: "state_exited"},
	}
	if err := e.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := e.EmitBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error on empty batch: %v", err)
	}
}

func TestOTelEmitterFlushWithNoopProvider(t *testing.T) {
	tracer := otel.Tracer("plumgo-test")
	e := NewOTelEmitter(tracer)

	// The default global provider is a no-op that doesn't implement
	// ForceFlush; Flush should return nil rather than erroring.
	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("expected nil error from noop provider, got %v", err)
	}
}
