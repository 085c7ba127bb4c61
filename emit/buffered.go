package emit

import (
	"context"
	"sync"
)

// BufferedEmitter implements Emitter by storing events in memory (T169-T172).
//
// This emitter captures all events and provides query capabilities for
// execution history analysis. Events are organized by PID for efficient
// retrieval and filtering.
//
// Features:
//   - Thread-safe concurrent access
//   - Query by PID with optional filtering
//   - Filter by state label, message, step range
//   - Clear events by pid or all events
//
// Use cases:
//   - Development and debugging
//   - Testing and validation
//   - Real-time monitoring dashboards
//   - Post-execution analysis
//
// Warning: This emitter stores all events in memory. For production
// deployments with long-running workflows or high event volume, consider
// using a persistent storage backend or implement event rotation/cleanup.
//
// Example usage:
//
//	// Create buffered emitter for testing
//	emitter := emit.NewBufferedEmitter()
//	proc, _ := process.New(body, nil, process.WithEmitter(emitter))
//
//	// Run the process
//	proc.Start()
//	<-proc.Future().Done()
//
//	// Query execution history
//	allEvents := emitter.GetHistory(proc.PID().String())
//	errorEvents := emitter.GetHistoryWithFilter(proc.PID().String(), emit.HistoryFilter{Msg: "process_excepted"})
//
//	// Clean up
//	emitter.Clear(proc.PID().String())
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // pid -> events
}

// HistoryFilter specifies criteria for filtering execution history (T171, T172).
//
// All filter fields are optional. When multiple fields are set, they are
// combined with AND logic (all conditions must match).
//
// Fields:
//   - StateLabel: Filter by specific state label
//   - Msg: Filter by message type (e.g., "process_waiting", "process_excepted")
//   - MinStep: Filter events with step >= MinStep (nil = no lower bound)
//   - MaxStep: Filter events with step <= MaxStep (nil = no upper bound)
//
// Example usage:
//
//	// Get all excepted events
//	filter := emit.HistoryFilter{
//		Msg: "process_excepted",
//	}
//	errors := emitter.GetHistoryWithFilter("7f2e-...-pid", filter)
//
//	// Get events from steps 5-10
//	minStep, maxStep := 5, 10
//	filter := emit.HistoryFilter{
//		MinStep: &minStep,
//		MaxStep: &maxStep,
//	}
//	stepEvents := emitter.GetHistoryWithFilter("7f2e-...-pid", filter)
type HistoryFilter struct {
	StateLabel string // Filter by state label (empty = no filter)
	Msg     string // Filter by message (empty = no filter)
	MinStep *int   // Minimum step number (nil = no filter)
	MaxStep *int   // Maximum step number (nil = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter (T169).
//
// Returns a BufferedEmitter that stores all events in memory and provides
// query capabilities. Safe for concurrent use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer (T169).
//
// Events are organized by PID for efficient retrieval. This method is
// thread-safe and can be called concurrently from multiple goroutines.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.PID] = append(b.events[event.PID], event)
}

// EmitBatch stores events in order, exactly as repeated Emit calls would.
func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		b.Emit(event)
	}
	return nil
}

// Flush is a no-op: events are stored as soon as they are emitted.
func (b *BufferedEmitter) Flush(_ context.Context) error { return nil }

// GetHistory retrieves all events for a specific PID (T170).
//
// Returns events in the order they were emitted. Returns an empty slice
// if no events exist for the given pid.
//
// This method is thread-safe and returns a copy of the events to prevent
// concurrent modification issues.
//
// Example:
//
//	events := emitter.GetHistory("7f2e-...-pid")
//	for _, event := range events {
//		fmt.Printf("[%s] %s: %s\n", event.PID, event.StateLabel, event.Msg)
//	}
func (b *BufferedEmitter) GetHistory(pid string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[pid]
	if events == nil {
		return []Event{} // Return empty slice instead of nil
	}

	// Return a copy to prevent external modification
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// GetHistoryWithFilter retrieves filtered events for a specific PID (T171, T172).
//
// Applies the provided filter criteria to select matching events. All filter
// conditions must match for an event to be included (AND logic).
//
// Returns events in the order they were emitted. Returns an empty slice if
// no events match the filter.
//
// This method is thread-safe and returns a copy of the events.
//
// Example:
//
//	// Get excepted events
//	filter := emit.HistoryFilter{
//		Msg: "process_excepted",
//	}
//	errors := emitter.GetHistoryWithFilter("7f2e-...-pid", filter)
//
//	// Get events from steps 10-20
//	minStep, maxStep := 10, 20
//	filter := emit.HistoryFilter{
//		MinStep: &minStep,
//		MaxStep: &maxStep,
//	}
//	stepEvents := emitter.GetHistoryWithFilter("7f2e-...-pid", filter)
func (b *BufferedEmitter) GetHistoryWithFilter(pid string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[pid]
	if events == nil {
		return []Event{}
	}

	// If filter is empty, return all events
	if filter.StateLabel == "" && filter.Msg == "" && filter.MinStep == nil && filter.MaxStep == nil {
		result := make([]Event, len(events))
		copy(result, events)
		return result
	}

	// Apply filters
	var result []Event
	for _, event := range events {
		if !b.matchesFilter(event, filter) {
			continue
		}
		result = append(result, event)
	}

	if result == nil {
		return []Event{} // Return empty slice instead of nil
	}
	return result
}

// matchesFilter checks if an event matches the filter criteria.
func (b *BufferedEmitter) matchesFilter(event Event, filter HistoryFilter) bool {
	// Filter by StateLabel
	if filter.StateLabel != "" && event.StateLabel != filter.StateLabel {
		return false
	}

	// Filter by Msg
	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}

	// Filter by MinStep
	if filter.MinStep != nil && event.Step < *filter.MinStep {
		return false
	}

	// Filter by MaxStep
	if filter.MaxStep != nil && event.Step > *filter.MaxStep {
		return false
	}

	return true
}

// Clear removes stored events (T170).
//
// If pid is non-empty, clears only events for that specific run.
// If pid is empty, clears all stored events across all runs.
//
// This method is thread-safe and can be called concurrently.
//
// Example:
//
//	// Clear specific run
//	emitter.Clear("7f2e-...-pid")
//
//	// Clear all runs
//	emitter.Clear("")
func (b *BufferedEmitter) Clear(pid string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pid == "" {
		// Clear all events
		b.events = make(map[string][]Event)
	} else {
		// Clear specific pid
		delete(b.events, pid)
	}
}
