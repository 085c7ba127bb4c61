package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	e.Emit(Event{PID: "p1", Step: 3, StateLabel: "running", Msg: "state_entered"})

	out := buf.String()
	if !strings.Contains(out, "[state_entered]") {
		t.Fatalf("expected msg prefix in output, got %q", out)
	}
	if !strings.Contains(out, "pid=p1") || !strings.Contains(out, "step=3") || !strings.Contains(out, "state=running") {
		t.Fatalf("missing fields in text output: %q", out)
	}
}

func TestLogEmitterTextWithMeta(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	e.Emit(Event{PID: "p1", Msg: "process_excepted", Meta: map[string]interface{}{"error": "boom"}})

	if !strings.Contains(buf.String(), `meta={"error":"boom"}`) {
		t.Fatalf("expected meta in output, got %q", buf.String())
	}
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)

	e.Emit(Event{PID: "p1", Step: 1, StateLabel: "waiting", Msg: "state_entered"})

	var decoded struct {
		PID        string `json:"pid"`
		Step       int    `json:"step"`
		StateLabel string `json:"state_label"`
		Msg        string `json:"msg"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON output: %v", err)
	}
	if decoded.PID != "p1" || decoded.Step != 1 || decoded.StateLabel != "waiting" || decoded.Msg != "state_entered" {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}

func TestLogEmitterDefaultsToStdoutWhenNilWriter(t *testing.T) {
	e := NewLogEmitter(nil, false)
	if e.writer == nil {
		t.Fatal("expected writer to default to os.Stdout, got nil")
	}
}

func TestLogEmitterEmitBatch(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	events := []Event{
		{PID: "p1", Msg: "state_entered"},
		{PID: "p1", Msg: "state_exited"},
	}
	if err := e.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
}

func TestLogEmitterEmitBatchEmpty(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	if err := e.EmitBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty batch, got %q", buf.String())
	}
}

func TestLogEmitterFlushIsNoop(t *testing.T) {
	e := NewLogEmitter(&bytes.Buffer{}, false)
	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
