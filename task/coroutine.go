// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"runtime"
	"runtime/debug"
	"sync/atomic"
)

type yieldKind uint8

const (
	yieldParked yieldKind = iota
	yieldReturned
	yieldPanicked
	yieldExited
)

type yieldEvent struct {
	value any
	stack []byte
	kind  yieldKind
}

// Co is the execution context of a spawned task. It is passed to the task
// function, and must not be retained or used from any other goroutine.
//
// Each task runs on its own goroutine, but never concurrently with the host
// thread: resuming a task blocks the host (within a microtask) until the
// task suspends or returns. This keeps the host single-threaded, from the
// point of view of everything it runs.
//
// State Machine:
//
//	new → queued        [wake: SubmitMicrotask(step)]
//	queued → running    [step, on the host thread]
//	running → parked    [park: Await, Yield, Sleep, AwaitTimeout]
//	parked → queued     [wake, from whatever the task awaits]
//	running → finished  [task function returned, panicked, or exited]
//	parked → discarded  [host Done() closed]
type Co struct {
	host   Host
	run    func(co *Co)
	done   <-chan struct{}
	resume chan struct{}
	yield  chan yieldEvent
	gone   chan struct{}

	queued  atomic.Bool
	running atomic.Bool

	// host thread only
	started  bool
	finished bool

	// task goroutine only
	torn bool
}

func newCo(host Host, run func(co *Co)) *Co {
	return &Co{
		host:   host,
		run:    run,
		done:   hostDone(host),
		resume: make(chan struct{}),
		yield:  make(chan yieldEvent),
		gone:   make(chan struct{}),
	}
}

// Host returns the host the task is running on, e.g. for nested spawns.
func (co *Co) Host() Host {
	return co.host
}

// Done returns a channel that is closed when the host has terminated, or
// nil if the host does not implement [Terminator].
func (co *Co) Done() <-chan struct{} {
	return co.done
}

// Yield suspends the task until the next microtask tick, allowing other
// queued microtasks (including other tasks) to run.
func (co *Co) Yield() {
	co.enter()
	co.wake()
	co.park()
}

// enter guards against use of a Co outside of its running task.
func (co *Co) enter() {
	if co == nil || !co.running.Load() {
		panic("task: Co used outside of its running task")
	}
}

// wake queues the task to be resumed on the next microtask tick. Multiple
// wakes before the task is resumed are coalesced.
//
// Thread Safety: Safe to call concurrently.
func (co *Co) wake() {
	if !co.queued.CompareAndSwap(false, true) {
		return
	}
	if err := co.host.SubmitMicrotask(co.step); err != nil {
		// queued stays set: the host is gone, and so is this task
		getLogger().Debug().
			Err(err).
			Log("task: host rejected microtask, task will not resume")
	}
}

// step resumes the task, and blocks until it yields. Must only be called by
// the host, as a microtask.
func (co *Co) step() {
	co.queued.Store(false)
	if co.finished {
		return
	}

	co.running.Store(true)
	if !co.started {
		co.started = true
		go co.main()
	} else {
		select {
		case co.resume <- struct{}{}:
		case <-co.gone:
			co.running.Store(false)
			co.finished = true
			return
		}
	}
	ev := <-co.yield
	co.running.Store(false)

	switch ev.kind {
	case yieldParked:
	case yieldReturned:
		co.finished = true
	case yieldExited:
		co.finished = true
		getLogger().Warning().
			Log("task: task goroutine exited without returning")
	case yieldPanicked:
		co.finished = true
		panic(&PanicError{Value: ev.value, Stack: ev.stack})
	}
}

// park hands control back to the host, and blocks until resumed. If the
// host terminates first, the task goroutine exits, without completing.
func (co *Co) park() {
	co.yield <- yieldEvent{kind: yieldParked}
	select {
	case <-co.resume:
	case <-co.done:
		co.torn = true
		close(co.gone)
		runtime.Goexit()
	}
}

// main is the task goroutine.
func (co *Co) main() {
	returned := false
	defer func() {
		r := recover()
		if co.torn {
			return
		}
		switch {
		case r != nil:
			co.yield <- yieldEvent{kind: yieldPanicked, value: r, stack: debug.Stack()}
		case !returned:
			// runtime.Goexit, e.g. t.FailNow
			co.yield <- yieldEvent{kind: yieldExited}
		}
	}()
	co.run(co)
	returned = true
	co.yield <- yieldEvent{kind: yieldReturned}
}
