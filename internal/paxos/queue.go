package paxos

import "container/list"

// ValueQueue is the FIFO of client-submitted values awaiting a slot
// (spec §3, §4.1). Re-enqueued values (lost-the-vote retries, retired
// instances that carried our value to a different outcome) are appended
// at the tail, never re-prioritized.
//
// The queue is unbounded here; admission control belongs to the network
// driver boundary, not the core (spec §4.1).
type ValueQueue struct {
	l *list.List
}

// NewValueQueue returns an empty queue.
func NewValueQueue() *ValueQueue {
	return &ValueQueue{l: list.New()}
}

// PushBack enqueues a value at the tail.
func (q *ValueQueue) PushBack(v Value) {
	q.l.PushBack(v)
}

// PopFront removes and returns the head value, or (nil, false) if empty.
func (q *ValueQueue) PopFront() (Value, bool) {
	front := q.l.Front()
	if front == nil {
		return nil, false
	}
	q.l.Remove(front)
	return front.Value.(Value), true
}

// Empty reports whether the queue has no pending values.
func (q *ValueQueue) Empty() bool {
	return q.l.Len() == 0
}

// Len reports the number of pending values, mainly for metrics/tests.
func (q *ValueQueue) Len() int {
	return q.l.Len()
}
