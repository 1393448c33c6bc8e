// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"slices"
	"sync"
	"sync/atomic"
)

// cellState models the lifecycle of a Result Channel.
//
//	cellEmpty (0) → cellFilling (1)   [Send, CAS]
//	cellFilling (1) → cellFilled (2)  [Send, after the value is written]
//	cellFilled (2) → cellConsumed (3) [take, CAS]
//	cellConsumed (3) → (terminal)
//
// cellFilling exists only so that the value write happens-before any
// reader observing cellFilled.
type cellState = uint32

const (
	cellEmpty cellState = iota
	cellFilling
	cellFilled
	cellConsumed
)

// cell is the shared state behind a Sender/Receiver pair.
type cell[T any] struct {
	value  T
	ready  chan struct{}
	wakers []waker
	nextID uint64
	mu     sync.Mutex
	state  atomic.Uint32
}

type waker struct {
	fn func()
	id uint64
}

// Sender is the producing end of a Result Channel. Exactly one value may be
// sent; later sends are discarded.
type Sender[T any] struct {
	c *cell[T]
}

// Receiver is the consuming end of a Result Channel. The value may be taken
// exactly once.
type Receiver[T any] struct {
	c *cell[T]
}

// NewChannel returns the two ends of a new, empty, single-value Result
// Channel. Ownership of each end is expected to be transferred to exactly
// one party: the Sender to the scheduled work, the Receiver to whoever joins
// on it (typically via a JoinHandle).
func NewChannel[T any]() (*Sender[T], *Receiver[T]) {
	c := &cell[T]{ready: make(chan struct{})}
	return &Sender[T]{c: c}, &Receiver[T]{c: c}
}

// Send delivers v, returning true if this was the first send. Any later send
// is a harmless no-op, returning false.
//
// Thread Safety: Safe to call concurrently.
func (x *Sender[T]) Send(v T) bool {
	c := x.c
	if !c.state.CompareAndSwap(cellEmpty, cellFilling) {
		return false
	}
	c.value = v
	c.state.Store(cellFilled)
	close(c.ready)

	c.mu.Lock()
	wakers := c.wakers
	c.wakers = nil
	c.mu.Unlock()

	for _, w := range wakers {
		w.fn()
	}
	return true
}

// Done returns a channel that is closed once a value has been sent.
func (x *Receiver[T]) Done() <-chan struct{} {
	return x.c.ready
}

// Ready reports whether a value has been sent (it may have already been
// consumed).
func (x *Receiver[T]) Ready() bool {
	return x.c.state.Load() >= cellFilled
}

// Consumed reports whether the value has already been taken.
func (x *Receiver[T]) Consumed() bool {
	return x.c.state.Load() == cellConsumed
}

// take transitions the cell to consumed, returning the value.
func (x *Receiver[T]) take() (v T, err error) {
	c := x.c
	switch {
	case c.state.CompareAndSwap(cellFilled, cellConsumed):
		v, c.value = c.value, v
		return v, nil
	case c.state.Load() == cellConsumed:
		return v, ErrAlreadyJoined
	default:
		return v, ErrPending
	}
}

// subscribe registers wake to be called once a value is sent. It returns
// false, without registering, if a value has already been sent. Otherwise,
// the returned cancel func removes wake, and must be called once the caller
// stops waiting, so that repeated waits on a pending channel do not
// accumulate wakers. Calling cancel after the send is a no-op.
func (x *Receiver[T]) subscribe(wake func()) (cancel func(), ok bool) {
	c := x.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Load() >= cellFilled {
		return nil, false
	}
	c.nextID++
	id := c.nextID
	c.wakers = append(c.wakers, waker{fn: wake, id: id})
	return func() { x.unsubscribe(id) }, true
}

func (x *Receiver[T]) unsubscribe(id uint64) {
	c := x.c
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.wakers {
		if w.id == id {
			c.wakers = slices.Delete(c.wakers, i, i+1)
			return
		}
	}
}

// waiting returns the number of registered wakers.
func (x *Receiver[T]) waiting() int {
	c := x.c
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.wakers)
}
