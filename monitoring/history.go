package monitoring

import (
	"sync"

	"github.com/sarchlab/stallscope/blocking"
)

// DefaultHistoryCapacity is the number of events a History keeps when no
// capacity is given.
const DefaultHistoryCapacity = 256

// A History keeps the most recent blocked events. Record is called on the
// event loop goroutine while the monitor reads from its own goroutines.
type History struct {
	sync.Mutex

	capacity int
	events   []blocking.BlockedEvent
	next     int
	total    int
}

// NewHistory creates a History that keeps up to capacity events.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}

	return &History{
		capacity: capacity,
		events:   make([]blocking.BlockedEvent, 0, capacity),
	}
}

// Record adds an event, dropping the oldest one if the History is full.
func (h *History) Record(evt blocking.BlockedEvent) {
	h.Lock()
	defer h.Unlock()

	h.total++

	if len(h.events) < h.capacity {
		h.events = append(h.events, evt)
		return
	}

	h.events[h.next] = evt
	h.next = (h.next + 1) % h.capacity
}

// Events returns the kept events, oldest first.
func (h *History) Events() []blocking.BlockedEvent {
	h.Lock()
	defer h.Unlock()

	out := make([]blocking.BlockedEvent, 0, len(h.events))
	out = append(out, h.events[h.next:]...)
	out = append(out, h.events[:h.next]...)

	return out
}

// Get returns the event at index, counting from the oldest kept event.
func (h *History) Get(index int) (blocking.BlockedEvent, bool) {
	h.Lock()
	defer h.Unlock()

	if index < 0 || index >= len(h.events) {
		return blocking.BlockedEvent{}, false
	}

	return h.events[(h.next+index)%len(h.events)], true
}

// Total returns how many events have been recorded, including dropped ones.
func (h *History) Total() int {
	h.Lock()
	defer h.Unlock()

	return h.total
}
