package emit

import (
	"sync"
	"testing"
)

func TestBufferedEmitterGetHistory(t *testing.T) {
	e := NewBufferedEmitter()

	e.Emit(Event{PID: "p1", Step: 0, StateLabel: "created", Msg: "state_entered"})
	e.Emit(Event{PID: "p1", Step: 1, StateLabel: "running", Msg: "state_entered"})
	e.Emit(Event{PID: "p2", Step: 0, StateLabel: "created", Msg: "state_entered"})

	history := e.GetHistory("p1")
	if len(history) != 2 {
		t.Fatalf("expected 2 events for p1, got %d", len(history))
	}
	if history[0].Step != 0 || history[1].Step != 1 {
		t.Fatalf("expected events in emission order, got %+v", history)
	}

	if got := e.GetHistory("unknown"); len(got) != 0 {
		t.Fatalf("expected empty slice for unknown pid, got %+v", got)
	}
}

func TestBufferedEmitterGetHistoryWithFilter(t *testing.T) {
	e := NewBufferedEmitter()

	e.Emit(Event{PID: "p1", Step: 0, StateLabel: "running", Msg: "state_entered"})
	e.Emit(Event{PID: "p1", Step: 1, StateLabel: "running", Msg: "process_excepted"})
	e.Emit(Event{PID: "p1", Step: 2, StateLabel: "excepted", Msg: "state_entered"})

	filtered := e.GetHistoryWithFilter("p1", HistoryFilter{Msg: "process_excepted"})
	if len(filtered) != 1 || filtered[0].Step != 1 {
		t.Fatalf("expected single matching event, got %+v", filtered)
	}

	min, max := 1, 2
	stepFiltered := e.GetHistoryWithFilter("p1", HistoryFilter{MinStep: &min, MaxStep: &max})
	if len(stepFiltered) != 2 {
		t.Fatalf("expected 2 events in step range, got %d", len(stepFiltered))
	}

	labelFiltered := e.GetHistoryWithFilter("p1", HistoryFilter{StateLabel: "excepted"})
	if len(labelFiltered) != 1 || labelFiltered[0].Step != 2 {
		t.Fatalf("expected single excepted-state event, got %+v", labelFiltered)
	}
}

func TestBufferedEmitterClear(t *testing.T) {
	e := NewBufferedEmitter()

	e.Emit(Event{PID: "p1", Msg: "state_entered"})
	e.Emit(Event{PID: "p2", Msg: "state_entered"})

	e.Clear("p1")
	if len(e.GetHistory("p1")) != 0 {
		t.Fatal("expected p1 history to be cleared")
	}
	if len(e.GetHistory("p2")) != 1 {
		t.Fatal("expected p2 history to survive targeted clear")
	}

	e.Clear("")
	if len(e.GetHistory("p2")) != 0 {
		t.Fatal("expected all history cleared")
	}
}

func TestBufferedEmitterConcurrentAccess(t *testing.T) {
	e := NewBufferedEmitter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e.Emit(Event{PID: "p1", Step: n, Msg: "state_entered"})
		}(i)
	}
	wg.Wait()

	if len(e.GetHistory("p1")) != 50 {
		t.Fatalf("expected 50 events, got %d", len(e.GetHistory("p1")))
	}
}
