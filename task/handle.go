// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"context"
)

// JoinHandle yields the output of a spawned unit of work.
//
// Lifecycle: Pending → Ready (the work completes, exactly once) → Consumed
// (the first successful Wait, Poll or Await). Retrieving the result a second
// time is a logic error, reported as [ErrAlreadyJoined].
//
// If the paired work never completes (host teardown, a panic, or an idle
// period that never arrives) the handle stays Pending forever.
type JoinHandle[T any] struct {
	rx *Receiver[T]
}

// NewJoinHandle wraps the consuming end of a Result Channel.
func NewJoinHandle[T any](rx *Receiver[T]) *JoinHandle[T] {
	return &JoinHandle[T]{rx: rx}
}

// Done returns a channel that is closed once the result is ready.
func (h *JoinHandle[T]) Done() <-chan struct{} {
	return h.rx.Done()
}

// Ready reports whether the work has completed.
func (h *JoinHandle[T]) Ready() bool {
	return h.rx.Ready()
}

// Poll returns the result without blocking. While the work is incomplete it
// returns [ErrPending]; once the result has been retrieved, it returns
// [ErrAlreadyJoined].
func (h *JoinHandle[T]) Poll() (T, error) {
	return h.rx.take()
}

// Wait blocks until the result is available or ctx is done.
//
// Wait must not be called from the host thread (e.g. from within a
// callback run by the host loop), since that would prevent the work from
// ever completing. Use [Await] from within spawned tasks.
func (h *JoinHandle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.rx.Done():
		return h.rx.take()
	default:
	}
	select {
	case <-h.rx.Done():
		return h.rx.take()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Await suspends co until h is ready, and returns the result. It panics
// with [ErrAlreadyJoined] if the result has already been retrieved.
func Await[T any](co *Co, h *JoinHandle[T]) T {
	co.enter()
	for {
		cancel, ok := h.rx.subscribe(co.wake)
		if !ok {
			break
		}
		co.park()
		cancel()
	}
	v, err := h.rx.take()
	if err != nil {
		panic(err)
	}
	return v
}
