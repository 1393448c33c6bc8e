// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"fmt"
	"time"
)

type (
	// Host is the minimum capability required of a host event loop: the
	// ability to queue a function for the next microtask tick.
	//
	// SubmitMicrotask must never call fn synchronously, and must be safe
	// to call from any goroutine. A non-nil error indicates that the host
	// has torn down, and fn will never run.
	Host interface {
		SubmitMicrotask(fn func()) error
	}

	// IdleHost is a Host that can run callbacks when it is otherwise idle.
	// There is no upper bound on when (or if) the callback fires.
	IdleHost interface {
		Host
		SubmitIdle(fn func()) error
	}

	// FrameHost is a Host that can run a callback once, before the next
	// animation frame is produced.
	FrameHost interface {
		Host
		RequestAnimationFrame(fn func(ts time.Time)) (uint64, error)
	}

	// TimerHost is a Host that can run a callback once a delay elapses.
	// Cancelling a timer that has already fired is not an error.
	TimerHost interface {
		Host
		ScheduleTimer(delay time.Duration, fn func()) (uint64, error)
		CancelTimer(id uint64) error
	}

	// Terminator may be implemented by a Host in order to report teardown.
	// Tasks suspended on a host that has terminated are discarded, rather
	// than leaked.
	Terminator interface {
		Done() <-chan struct{}
	}
)

// Priority selects which phase of the host loop a unit of work is
// scheduled into. It is only consulted at submission time.
type Priority uint8

const (
	// PriorityHigh schedules onto the next microtask tick.
	PriorityHigh Priority = iota
	// PriorityLow schedules onto the next idle period.
	PriorityLow
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityLow:
		return "Low"
	default:
		return fmt.Sprintf("Priority(%d)", uint8(p))
	}
}

func unsupported(host Host, capability string) error {
	return fmt.Errorf("%w: %T cannot %s", ErrUnsupported, host, capability)
}

func hostDone(host Host) <-chan struct{} {
	if t, ok := host.(Terminator); ok {
		return t.Done()
	}
	return nil
}
