package sim

import (
	"container/heap"
	"time"
)

// ScheduledKind is what a scheduled event does when it comes due.
type ScheduledKind uint8

const (
	ScheduleDetonate ScheduledKind = iota
)

// ScheduledEvent fires at simulated time At. Seq breaks ties in insertion
// order so processing is replayable.
type ScheduledEvent struct {
	At     time.Duration
	Seq    uint64
	Kind   ScheduledKind
	Target ID
}

type eventHeap []ScheduledEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].At != h[j].At {
		return h[i].At < h[j].At
	}
	return h[i].Seq < h[j].Seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(ScheduledEvent)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Scheduler is the simulated-time event list used in place of wall-clock
// timers.
type Scheduler struct {
	events eventHeap
	seq    uint64
}

// Schedule queues an event.
func (s *Scheduler) Schedule(at time.Duration, kind ScheduledKind, target ID) {
	s.seq++
	heap.Push(&s.events, ScheduledEvent{At: at, Seq: s.seq, Kind: kind, Target: target})
}

// Due pops every event with At <= now, in (At, Seq) order.
func (s *Scheduler) Due(now time.Duration) []ScheduledEvent {
	var due []ScheduledEvent
	for len(s.events) > 0 && s.events[0].At <= now {
		due = append(due, heap.Pop(&s.events).(ScheduledEvent))
	}
	return due
}

// Pending returns the number of queued events.
func (s *Scheduler) Pending() int { return len(s.events) }
