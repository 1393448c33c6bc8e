// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported indicates that a Host lacks a capability required by
	// the operation, e.g. SpawnIdle on a Host that is not an IdleHost.
	// It reflects a misconfigured environment, and is returned immediately.
	ErrUnsupported = errors.New("task: host capability unsupported")

	// ErrAlreadyJoined is returned (or panicked, by Await) on an attempt to
	// retrieve the result of a JoinHandle more than once.
	ErrAlreadyJoined = errors.New("task: join handle already consumed")

	// ErrPending is returned by JoinHandle.Poll while the result is not
	// yet available.
	ErrPending = errors.New("task: result pending")

	// ErrTimeout is returned by AwaitTimeout if the timer wins the race.
	ErrTimeout = errors.New("task: timed out")
)

// PanicError wraps a value recovered from a panicking task. It is
// re-panicked on the host thread, so that the host's own panic handling
// applies. The paired JoinHandle never resolves.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task: panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
