// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"sync/atomic"
	"time"
)

// Phase identifies a phase of a loop tick.
type Phase uint8

const (
	// PhaseTimers runs expired timers.
	PhaseTimers Phase = iota
	// PhaseMacrotasks runs a batch of submitted macrotasks.
	PhaseMacrotasks
	// PhaseMicrotasks is a microtask checkpoint.
	PhaseMicrotasks
	// PhaseFrame runs the animation frame callbacks.
	PhaseFrame
	// PhaseIdle runs idle callbacks.
	PhaseIdle
)

// String returns the lowercase name of the phase, suitable as a label.
func (p Phase) String() string {
	switch p {
	case PhaseTimers:
		return "timers"
	case PhaseMacrotasks:
		return "macrotasks"
	case PhaseMicrotasks:
		return "microtasks"
	case PhaseFrame:
		return "frame"
	case PhaseIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Metrics receives measurements from the loop goroutine. Implementations
// must be fast, and must not call back into the loop.
type Metrics interface {
	// RecordPhase records a completed phase, that ran n callbacks.
	RecordPhase(phase Phase, n int, d time.Duration)
	// RecordPanic records a recovered callback panic.
	RecordPanic(phase Phase)
	// RecordQueueDepth records the depth of the queue feeding a phase, as
	// observed at the start of the phase.
	RecordQueueDepth(phase Phase, depth int)
}

// Stats is a snapshot of a loop's cumulative counters.
type Stats struct {
	Ticks          uint64
	Timers         uint64
	Macrotasks     uint64
	Microtasks     uint64
	Frames         uint64
	IdleCallbacks  uint64
	Panics         uint64
	Overloads      uint64
	SuppressedLogs uint64
}

type loopCounters struct {
	ticks          atomic.Uint64
	timersRun      atomic.Uint64
	macrotasks     atomic.Uint64
	microtasksRun  atomic.Uint64
	framesRun      atomic.Uint64
	idleCallbacks  atomic.Uint64
	panics         atomic.Uint64
	overloads      atomic.Uint64
	suppressedLogs atomic.Uint64
}

// Stats returns a snapshot of the loop's counters.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:          l.ticks.Load(),
		Timers:         l.timersRun.Load(),
		Macrotasks:     l.macrotasks.Load(),
		Microtasks:     l.microtasksRun.Load(),
		Frames:         l.framesRun.Load(),
		IdleCallbacks:  l.idleCallbacks.Load(),
		Panics:         l.panics.Load(),
		Overloads:      l.overloads.Load(),
		SuppressedLogs: l.suppressedLogs.Load(),
	}
}

func (l *Loop) recordPhase(phase Phase, n int, start time.Time) {
	if l.opts.metrics != nil && n > 0 {
		l.opts.metrics.RecordPhase(phase, n, time.Since(start))
	}
}

func (l *Loop) recordQueueDepth(phase Phase, depth int) {
	if l.opts.metrics != nil {
		l.opts.metrics.RecordQueueDepth(phase, depth)
	}
}
