// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"errors"
)

var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("hostloop: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("hostloop: loop has been terminated")

	// ErrLoopOverloaded is reported via the overload callback, when work
	// remains queued after a phase exhausted its budget.
	ErrLoopOverloaded = errors.New("hostloop: loop is overloaded")

	// ErrReentrantRun is returned when Run() is called from within the loop itself.
	ErrReentrantRun = errors.New("hostloop: cannot call Run() from within the loop")
)
