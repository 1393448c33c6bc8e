// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package tasktest provides a deterministic, manually pumped host, for
// testing code built on the task package.
//
// Nothing runs until the test pumps the host, from the test goroutine:
//
//	host := tasktest.New()
//	h := task.Spawn(host, func(co *task.Co) int { return 12 })
//	host.RunMicrotasks()
//	v, err := h.Poll()
//
// Timers use a virtual clock, advanced by [Host.Advance].
package tasktest

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrTerminated is returned by every submission method, after Terminate.
var ErrTerminated = errors.New("tasktest: host terminated")

// Epoch is the initial value of the virtual clock.
var Epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

type (
	// Host implements every host capability consumed by the task package,
	// with explicit, single-goroutine pumping. Submissions are safe from any
	// goroutine, but the Run* methods and Advance must not be called
	// concurrently.
	Host struct {
		mu         sync.Mutex
		now        time.Time
		done       chan struct{}
		microtasks []func()
		idle       []func()
		frames     []frame
		timers     []timer
		nextID     uint64
		terminated bool
	}

	// Pending summarizes queued work.
	Pending struct {
		Microtasks int
		Idle       int
		Frames     int
		Timers     int
	}

	// MicrotaskOnly exposes only the microtask capability of a Host, e.g.
	// to exercise handling of unsupported capabilities.
	MicrotaskOnly struct {
		Host *Host
	}

	frame struct {
		fn func(ts time.Time)
		id uint64
	}

	timer struct {
		at  time.Time
		fn  func()
		id  uint64
		seq uint64
	}
)

// New returns a host with no queued work, and the clock at Epoch.
func New() *Host {
	return &Host{
		now:  Epoch,
		done: make(chan struct{}),
	}
}

// SubmitMicrotask queues fn to run on the next RunMicrotasks.
func (x *Host) SubmitMicrotask(fn func()) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.terminated {
		return ErrTerminated
	}
	x.microtasks = append(x.microtasks, fn)
	return nil
}

// SubmitIdle queues fn to run on the next RunIdle.
func (x *Host) SubmitIdle(fn func()) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.terminated {
		return ErrTerminated
	}
	x.idle = append(x.idle, fn)
	return nil
}

// RequestAnimationFrame queues fn to run on the next RunFrame.
func (x *Host) RequestAnimationFrame(fn func(ts time.Time)) (uint64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.terminated {
		return 0, ErrTerminated
	}
	x.nextID++
	x.frames = append(x.frames, frame{fn: fn, id: x.nextID})
	return x.nextID, nil
}

// CancelAnimationFrame removes a queued frame callback, if present.
func (x *Host) CancelAnimationFrame(id uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.frames = slices.DeleteFunc(x.frames, func(f frame) bool { return f.id == id })
}

// ScheduleTimer queues fn to run once the virtual clock has advanced by d.
func (x *Host) ScheduleTimer(d time.Duration, fn func()) (uint64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.terminated {
		return 0, ErrTerminated
	}
	x.nextID++
	x.timers = append(x.timers, timer{at: x.now.Add(max(d, 0)), fn: fn, id: x.nextID, seq: x.nextID})
	return x.nextID, nil
}

// CancelTimer removes a pending timer. Unknown IDs are ignored.
func (x *Host) CancelTimer(id uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.timers = slices.DeleteFunc(x.timers, func(t timer) bool { return t.id == id })
	return nil
}

// Done is closed by Terminate.
func (x *Host) Done() <-chan struct{} {
	return x.done
}

// Terminate discards all queued work, and rejects any further submissions.
// Tasks suspended on the host are discarded, their handles never resolve.
func (x *Host) Terminate() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.terminated {
		return
	}
	x.terminated = true
	x.microtasks = nil
	x.idle = nil
	x.frames = nil
	x.timers = nil
	close(x.done)
}

// Now returns the virtual clock.
func (x *Host) Now() time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.now
}

// Pending returns the amount of queued work.
func (x *Host) Pending() Pending {
	x.mu.Lock()
	defer x.mu.Unlock()
	return Pending{
		Microtasks: len(x.microtasks),
		Idle:       len(x.idle),
		Frames:     len(x.frames),
		Timers:     len(x.timers),
	}
}

// Step runs the single oldest microtask, returning false if there were none.
// Panics propagate to the caller, the microtask is consumed regardless.
func (x *Host) Step() bool {
	x.mu.Lock()
	if len(x.microtasks) == 0 {
		x.mu.Unlock()
		return false
	}
	fn := x.microtasks[0]
	x.microtasks[0] = nil
	x.microtasks = x.microtasks[1:]
	x.mu.Unlock()
	fn()
	return true
}

// RunMicrotasks runs microtasks until the queue is empty, including any
// queued while running, returning the number run.
func (x *Host) RunMicrotasks() (n int) {
	for x.Step() {
		n++
	}
	return n
}

// RunIdle runs the idle callbacks queued at the time of the call, with a
// microtask checkpoint before each, returning the number run.
func (x *Host) RunIdle() (n int) {
	x.RunMicrotasks()
	x.mu.Lock()
	batch := x.idle
	x.idle = nil
	x.mu.Unlock()
	for _, fn := range batch {
		fn()
		n++
		x.RunMicrotasks()
	}
	return n
}

// RunFrame runs the animation frame callbacks queued at the time of the
// call, passing ts, followed by a microtask checkpoint. Callbacks requested
// during the frame run on the next RunFrame.
func (x *Host) RunFrame(ts time.Time) (n int) {
	x.mu.Lock()
	batch := x.frames
	x.frames = nil
	x.mu.Unlock()
	for _, f := range batch {
		f.fn(ts)
		n++
	}
	x.RunMicrotasks()
	return n
}

// Advance moves the virtual clock forward by d, firing due timers in
// deadline order (ties in scheduling order), each followed by a microtask
// checkpoint. It returns the number of timers fired.
func (x *Host) Advance(d time.Duration) (n int) {
	x.RunMicrotasks()
	x.mu.Lock()
	target := x.now.Add(d)
	x.mu.Unlock()
	for {
		x.mu.Lock()
		i := x.nextTimerLocked(target)
		if i < 0 {
			x.now = target
			x.mu.Unlock()
			return n
		}
		t := x.timers[i]
		x.timers = slices.Delete(x.timers, i, i+1)
		x.now = t.at
		x.mu.Unlock()

		t.fn()
		n++
		x.RunMicrotasks()
	}
}

func (x *Host) nextTimerLocked(limit time.Time) int {
	best := -1
	for i, t := range x.timers {
		if t.at.After(limit) {
			continue
		}
		if best < 0 || t.at.Before(x.timers[best].at) || (t.at.Equal(x.timers[best].at) && t.seq < x.timers[best].seq) {
			best = i
		}
	}
	return best
}

// SubmitMicrotask delegates to the wrapped Host.
func (x MicrotaskOnly) SubmitMicrotask(fn func()) error {
	return x.Host.SubmitMicrotask(fn)
}
