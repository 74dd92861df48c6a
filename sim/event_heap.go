package sim

import (
	"container/heap"
	"time"
)

// Scheduled item priorities at equal instants: external events are delivered
// before hooks, which only run once the instant is quiescent.
const (
	priorityEvent = 0
	priorityHook  = 1
)

// scheduledItem is either an external event awaiting delivery or a hook.
type scheduledItem struct {
	at       time.Duration
	priority int
	seq      uint64
	event    Event
	hook     func(now time.Duration)
}

// EventHeap is a priority queue with deterministic ordering.
// Ordering: instant → priority → insertion sequence.
type EventHeap struct {
	items   []scheduledItem
	nextSeq uint64
}

// NewEventHeap creates an empty event heap.
func NewEventHeap() *EventHeap {
	h := &EventHeap{}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *EventHeap) Len() int {
	return len(h.items)
}

// Less implements heap.Interface with deterministic ordering
func (h *EventHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.at != b.at {
		return a.at < b.at
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

// Swap implements heap.Interface
func (h *EventHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

// Push implements heap.Interface
func (h *EventHeap) Push(x any) {
	h.items = append(h.items, x.(scheduledItem))
}

// Pop implements heap.Interface
func (h *EventHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[0 : n-1]
	return item
}

// ScheduleEvent adds an external event, delivered at ev.Time.
func (h *EventHeap) ScheduleEvent(ev Event) {
	h.nextSeq++
	heap.Push(h, scheduledItem{at: ev.Time, priority: priorityEvent, seq: h.nextSeq, event: ev})
}

// ScheduleHook adds a callback run once every transition at instant at is done.
func (h *EventHeap) ScheduleHook(at time.Duration, fn func(now time.Duration)) {
	h.nextSeq++
	heap.Push(h, scheduledItem{at: at, priority: priorityHook, seq: h.nextSeq, hook: fn})
}

// peek returns the next item without removing it.
func (h *EventHeap) peek() (scheduledItem, bool) {
	if len(h.items) == 0 {
		return scheduledItem{}, false
	}
	return h.items[0], true
}

// popNext removes and returns the next item.
func (h *EventHeap) popNext() scheduledItem {
	return heap.Pop(h).(scheduledItem)
}

// NextTime returns the instant of the earliest item, or Infinity when empty.
func (h *EventHeap) NextTime() time.Duration {
	if it, ok := h.peek(); ok {
		return it.at
	}
	return Infinity
}
