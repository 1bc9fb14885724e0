package sim

import "container/heap"

// EventQueue holds scheduled intervention events in deterministic order:
// day, then type priority (nets before treatment), then timeline sequence.
type EventQueue struct {
	events eventHeap
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Len is the number of pending events.
func (q *EventQueue) Len() int { return len(q.events) }

// Schedule adds an event.
func (q *EventQueue) Schedule(e Event) {
	heap.Push(&q.events, e)
}

// PopDue removes and returns, in order, every event due on or before day.
func (q *EventQueue) PopDue(day int64) []Event {
	var due []Event
	for len(q.events) > 0 && q.events[0].Timestamp() <= day {
		due = append(due, heap.Pop(&q.events).(Event))
	}
	return due
}

// NextDay returns the day of the earliest pending event.
func (q *EventQueue) NextDay() (int64, bool) {
	if len(q.events) == 0 {
		return 0, false
	}
	return q.events[0].Timestamp(), true
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	ei, ej := h[i], h[j]
	if ei.Timestamp() != ej.Timestamp() {
		return ei.Timestamp() < ej.Timestamp()
	}
	if ei.Priority() != ej.Priority() {
		return ei.Priority() < ej.Priority()
	}
	return ei.Seq() < ej.Seq()
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
