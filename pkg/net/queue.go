package net

// Queue is a first-in first-out queue of T. It is not synchronized: a queue
// shared between the application goroutine and the interrupt service
// goroutine must be guarded by the owner's lock around Push/Pop/Len.
type Queue[T any] struct {
	entries []T
}

// Push appends v to the tail of the queue.
func (q *Queue[T]) Push(v T) {
	q.entries = append(q.entries, v)
}

// Pop removes and returns the entry at the head of the queue.
// ok is false if the queue is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	if len(q.entries) == 0 {
		return
	}
	var zero T
	v, q.entries[0] = q.entries[0], zero
	q.entries = q.entries[1:]
	return v, true
}

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int {
	return len(q.entries)
}
