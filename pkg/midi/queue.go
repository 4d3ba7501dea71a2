package midi

import "sync"

// EventQueue collects events in arrival order. Safe for concurrent use.
type EventQueue struct {
	events []Event
	mu     sync.Mutex
	limit  int
	lost   uint64
}

// NewEventQueue creates a queue holding at most limit events; 0 means unbounded.
func NewEventQueue(limit int) *EventQueue {
	return &EventQueue{
		events: make([]Event, 0, 128),
		limit:  limit,
	}
}

// Add appends an event. When the queue is full the event is counted as lost.
func (q *EventQueue) Add(event Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.events) >= q.limit {
		q.lost++
		return false
	}
	q.events = append(q.events, event)
	return true
}

// Drain returns all queued events and empties the queue.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	out := make([]Event, len(q.events))
	copy(out, q.events)
	q.events = q.events[:0]
	return out
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Lost returns how many events were refused because the queue was full.
func (q *EventQueue) Lost() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lost
}

// Clear discards all queued events.
func (q *EventQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = q.events[:0]
}
