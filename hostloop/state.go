// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// LoopState represents the current state of the host loop.
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)         [Run()]
//	StateRunning (3) → StateSleeping (2)      [sleep() via CAS]
//	StateSleeping (2) → StateRunning (3)      [sleep() wake via CAS]
//	StateAwake|Running|Sleeping → StateTerminating (4) [Shutdown(), Close()]
//	StateAwake (0) → StateTerminated (1)      [Shutdown(), Close(), never run]
//	StateTerminating (4) → StateTerminated (1) [termination complete]
//	StateTerminated (1) → (terminal)
//
// Use TryTransition (CAS) for the temporary states (Running, Sleeping), and
// Store only for the irreversible StateTerminated.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has stopped, and rejects all work.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is blocked waiting for work.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is actively processing work.
	StateRunning LoopState = 3
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine, padded to its own cache line.
type FastState struct { // betteralign:ignore
	_ cpu.CacheLinePad
	v atomic.Uint64
	_ cpu.CacheLinePad
}

// NewFastState creates a new state machine in the Awake state.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *FastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state, without validation.
func (s *FastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *FastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny attempts to transition from any of validFrom to the target,
// returning the state it transitioned from.
func (s *FastState) TransitionAny(validFrom []LoopState, to LoopState) (LoopState, bool) {
	for {
		current := s.Load()
		valid := false
		for _, from := range validFrom {
			if current == from {
				valid = true
				break
			}
		}
		if !valid {
			return current, false
		}
		if s.TryTransition(current, to) {
			return current, true
		}
	}
}

// CanAcceptWork returns true if the loop can accept new work. Work is still
// accepted while terminating, so that in-flight work can be drained.
func (s *FastState) CanAcceptWork() bool {
	return s.Load() != StateTerminated
}
