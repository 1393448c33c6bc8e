// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"fmt"
	"runtime/debug"
)

// Spawn schedules fn to run as a task on the host's microtask queue, and
// returns a handle to its output.
//
// fn never runs before Spawn returns, even if it would complete without
// suspending. If the host refuses the submission (it has torn down), the
// returned handle never resolves, and no error is reported.
//
// If fn panics, the handle never resolves, and the panic is re-raised on the
// host thread as a [*PanicError].
func Spawn[T any](host Host, fn func(co *Co) T) *JoinHandle[T] {
	tx, rx := NewChannel[T]()
	spawnInto(host, tx, fn)
	return NewJoinHandle(rx)
}

func spawnInto[T any](host Host, tx *Sender[T], fn func(co *Co) T) {
	co := newCo(host, func(co *Co) {
		tx.Send(fn(co))
	})
	co.wake()
}

// SpawnIdle schedules fn to run once, the next time the host is idle, and
// returns a handle to its output.
//
// There is no upper bound on when fn runs: a host that never goes idle
// leaves the handle pending forever. The only error is a host that cannot
// run idle callbacks at all, see [ErrUnsupported].
func SpawnIdle[T any](host Host, fn func() T) (*JoinHandle[T], error) {
	ih, ok := host.(IdleHost)
	if !ok {
		return nil, unsupported(host, "run idle callbacks")
	}
	tx, rx := NewChannel[T]()
	if err := ih.SubmitIdle(func() { tx.Send(fn()) }); err != nil {
		getLogger().Debug().
			Err(err).
			Log("task: host rejected idle callback, handle will not resolve")
	}
	return NewJoinHandle(rx), nil
}

// SpawnPriority schedules fn according to p: [PriorityHigh] uses [Spawn],
// and [PriorityLow] uses [SpawnIdle]. The priority only affects submission.
func SpawnPriority[T any](host Host, p Priority, fn func() T) (*JoinHandle[T], error) {
	switch p {
	case PriorityHigh:
		return Spawn(host, func(*Co) T { return fn() }), nil
	case PriorityLow:
		return SpawnIdle(host, fn)
	default:
		return nil, fmt.Errorf("task: invalid priority: %s", p)
	}
}

// Go runs fn on a new goroutine, for blocking work that must not run on the
// host thread. The output is delivered from a host microtask, so completion
// is always observed on the host thread.
//
// As with [Spawn], a panic in fn is re-raised on the host thread, and the
// handle never resolves. If fn exits via [runtime.Goexit], or the host has
// torn down by the time fn returns, the handle never resolves.
func Go[T any](host Host, fn func() T) *JoinHandle[T] {
	tx, rx := NewChannel[T]()
	go func() {
		completed := false
		defer func() {
			if completed {
				return
			}
			if r := recover(); r != nil {
				perr := &PanicError{Value: r, Stack: debug.Stack()}
				if err := host.SubmitMicrotask(func() { panic(perr) }); err != nil {
					getLogger().Err().
						Err(perr).
						Log("task: background work panicked after host teardown")
				}
				return
			}
			getLogger().Warning().
				Log("task: background work exited without returning")
		}()

		v := fn()
		completed = true

		if err := host.SubmitMicrotask(func() { tx.Send(v) }); err != nil {
			getLogger().Debug().
				Err(err).
				Log("task: host rejected completion, handle will not resolve")
		}
	}()
	return NewJoinHandle(rx)
}
