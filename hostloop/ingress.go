// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"sync"
)

// chunkSize is the number of tasks per node in the ChunkedIngress linked list.
const chunkSize = 128

// ChunkedIngress is a chunked linked-list FIFO queue of callbacks.
//
// Thread Safety: This struct is NOT thread-safe.
// The caller must provide external synchronization (the Loop's mutex).
type ChunkedIngress struct { // betteralign:ignore
	head   *chunk
	tail   *chunk
	length int
}

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

// chunk is a fixed-size node, with read/write cursors for O(1) push/pop.
type chunk struct {
	tasks   [chunkSize]func()
	next    *chunk
	readPos int
	pos     int
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk clears and recycles an exhausted chunk. Slots are cleared so
// that pooled chunks do not retain closures.
func returnChunk(c *chunk) {
	clear(c.tasks[:c.pos])
	c.pos = 0
	c.readPos = 0
	c.next = nil
	chunkPool.Put(c)
}

// NewChunkedIngress creates a new, empty queue.
func NewChunkedIngress() *ChunkedIngress {
	return &ChunkedIngress{}
}

// Push adds a task to the back of the queue.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *ChunkedIngress) Push(task func()) {
	if q.tail == nil {
		q.tail = newChunk()
		q.head = q.tail
	}
	if q.tail.pos == len(q.tail.tasks) {
		next := newChunk()
		q.tail.next = next
		q.tail = next
	}
	q.tail.tasks[q.tail.pos] = task
	q.tail.pos++
	q.length++
}

// Pop removes and returns the task at the front of the queue, or false if
// the queue is empty.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *ChunkedIngress) Pop() (func(), bool) {
	if q.length == 0 {
		return nil, false
	}

	if q.head.readPos >= q.head.pos {
		old := q.head
		q.head = q.head.next
		returnChunk(old)
	}

	task := q.head.tasks[q.head.readPos]
	q.head.tasks[q.head.readPos] = nil
	q.head.readPos++
	q.length--

	if q.length == 0 {
		// single chunk remains, reuse it from the start
		q.head.pos = 0
		q.head.readPos = 0
		for c := q.head.next; c != nil; {
			next := c.next
			returnChunk(c)
			c = next
		}
		q.head.next = nil
		q.tail = q.head
	}

	return task, true
}

// PopBatch moves up to limit tasks into buf, returning the number moved.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *ChunkedIngress) PopBatch(buf []func(), limit int) int {
	limit = min(limit, len(buf))
	n := 0
	for n < limit {
		task, ok := q.Pop()
		if !ok {
			break
		}
		buf[n] = task
		n++
	}
	return n
}

// Clear discards every queued task.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *ChunkedIngress) Clear() {
	for c := q.head; c != nil; {
		next := c.next
		returnChunk(c)
		c = next
	}
	q.head = nil
	q.tail = nil
	q.length = 0
}

// Length returns the queue length.
//
// CALLER MUST HOLD EXTERNAL MUTEX.
func (q *ChunkedIngress) Length() int {
	return q.length
}
