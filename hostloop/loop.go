// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
)

// shutdownDrainLimit bounds the callbacks run while draining, on Shutdown.
// Work that keeps re-queueing itself past this point is discarded.
const shutdownDrainLimit = 1 << 16

var loopIDCounter atomic.Uint64

// Loop is a single-threaded host event loop, modelled on a browser's.
//
// Each tick runs, in order: expired timers, a budgeted batch of macrotasks,
// a microtask checkpoint, idle callbacks whose timeout elapsed, an animation
// frame (if one is due), then an idle period (if there is nothing else to
// do). It then sleeps until woken by new work, or the next deadline.
//
// All callbacks run on the goroutine calling Run. Submission methods are
// safe to call from any goroutine, and return [ErrLoopTerminated] once the
// loop has terminated.
type Loop struct { // betteralign:ignore
	_ [0]func()

	opts       *loopOptions
	state      *FastState
	logLimiter *catrate.Limiter

	mu         sync.Mutex
	external   *ChunkedIngress
	microtasks *ChunkedIngress
	idle       []*idleRequest
	frames     []frameRequest
	timers     timerHeap
	timerIndex map[uint64]*timer
	nextID     uint64

	// loop goroutine only
	lastFrame  time.Time
	batchBuf   []func()
	sleepTimer *time.Timer

	wakeCh          chan struct{}
	loopDone        chan struct{}
	wakePending     atomic.Uint32
	discard         atomic.Bool
	loopGoroutineID atomic.Uint64

	id uint64

	loopCounters
}

// New creates a new, unstarted loop.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	sleepTimer := time.NewTimer(time.Hour)
	sleepTimer.Stop()

	return &Loop{
		opts:       cfg,
		state:      NewFastState(),
		logLimiter: newLogLimiter(),
		external:   NewChunkedIngress(),
		microtasks: NewChunkedIngress(),
		timerIndex: make(map[uint64]*timer),
		batchBuf:   make([]func(), cfg.tickBudget),
		sleepTimer: sleepTimer,
		wakeCh:     make(chan struct{}, 1),
		loopDone:   make(chan struct{}),
		id:         loopIDCounter.Add(1),
	}, nil
}

// ID returns the unique identifier of the loop, within the process.
func (l *Loop) ID() uint64 {
	return l.id
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// Done returns a channel that is closed once the loop has terminated, and
// will accept no further work.
func (l *Loop) Done() <-chan struct{} {
	return l.loopDone
}

// Run runs the event loop on the calling goroutine, and blocks until it
// terminates (via Shutdown, Close, or ctx cancellation). Cancelling ctx
// behaves like Shutdown, returning ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		switch l.state.Load() {
		case StateTerminating, StateTerminated:
			return ErrLoopTerminated
		default:
			return ErrLoopAlreadyRunning
		}
	}

	return l.run(ctx)
}

// Shutdown gracefully terminates the loop: queued macrotasks and microtasks
// are drained (bounded), while pending timers, frames and idle callbacks are
// discarded. It blocks until termination completes, or ctx is done.
//
// Shutdown must not be called from loop callbacks or tasks running on the
// loop, since it waits for them. Use Close instead.
func (l *Loop) Shutdown(ctx context.Context) error {
	from, ok := l.state.TransitionAny([]LoopState{StateAwake, StateRunning, StateSleeping}, StateTerminating)
	switch {
	case ok && from == StateAwake:
		l.terminate()
		return nil
	case ok:
		l.signal()
	case from == StateTerminated:
		return ErrLoopTerminated
	}

	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the loop without draining queued work, and without
// waiting. It is safe to call from loop callbacks.
func (l *Loop) Close() error {
	l.discard.Store(true)
	from, ok := l.state.TransitionAny([]LoopState{StateAwake, StateRunning, StateSleeping}, StateTerminating)
	switch {
	case ok && from == StateAwake:
		l.terminate()
	case ok:
		l.signal()
	case from == StateTerminated:
		return ErrLoopTerminated
	}
	return nil
}

// Submit queues fn as a macrotask.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) Submit(fn func()) error {
	return l.submit(l.external, fn)
}

// SubmitMicrotask queues fn to run at the next microtask checkpoint. It is
// never run synchronously.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) SubmitMicrotask(fn func()) error {
	return l.submit(l.microtasks, fn)
}

func (l *Loop) submit(q *ChunkedIngress, fn func()) error {
	l.mu.Lock()
	if !l.state.CanAcceptWork() {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	q.Push(fn)
	l.mu.Unlock()

	l.wakeIfSleeping()
	return nil
}

// wakeIfSleeping wakes the loop, if it is blocked in sleep. The loop
// re-checks its queues after transitioning to sleeping, so work pushed
// before this check is never missed.
func (l *Loop) wakeIfSleeping() {
	if l.state.Load() == StateSleeping {
		l.signal()
	}
}

// signal unconditionally wakes the loop, deduplicated until it is consumed.
func (l *Loop) signal() {
	if l.wakePending.CompareAndSwap(0, 1) {
		select {
		case l.wakeCh <- struct{}{}:
		default:
		}
	}
}

func (l *Loop) run(ctx context.Context) error {
	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)

	l.logger().Debug().
		Uint64("loop_id", l.id).
		Log("hostloop: running")

	for {
		if err := ctx.Err(); err != nil {
			l.state.TransitionAny([]LoopState{StateRunning, StateSleeping}, StateTerminating)
			l.shutdown()
			return err
		}
		if l.state.Load() == StateTerminating {
			l.shutdown()
			return nil
		}
		l.tick(ctx)
	}
}

// tick is a single iteration of the event loop.
func (l *Loop) tick(ctx context.Context) {
	l.ticks.Add(1)
	now := time.Now()

	l.runTimers(now)
	l.processExternal()
	l.drainMicrotasks()
	l.runIdleTimeouts(now)
	l.runFrame()

	if l.state.Load() != StateRunning {
		return
	}

	if !l.hasUrgentWork() && l.lockedLen(func() int { return len(l.idle) }) > 0 {
		l.runIdle()
	}

	l.sleep(ctx)
}

// processExternal runs up to the tick budget of macrotasks.
func (l *Loop) processExternal() int {
	l.mu.Lock()
	depth := l.external.Length()
	n := l.external.PopBatch(l.batchBuf, l.opts.tickBudget)
	remaining := l.external.Length()
	l.mu.Unlock()

	l.recordQueueDepth(PhaseMacrotasks, depth)
	start := time.Now()
	for i := range n {
		fn := l.batchBuf[i]
		l.batchBuf[i] = nil
		l.safeExecute(PhaseMacrotasks, fn)
		if l.opts.strictMicrotaskOrdering {
			l.drainMicrotasks()
		}
	}
	l.macrotasks.Add(uint64(n))
	l.recordPhase(PhaseMacrotasks, n, start)

	if remaining > 0 {
		l.overloads.Add(1)
		if l.opts.onOverload != nil {
			l.opts.onOverload(ErrLoopOverloaded)
		}
		l.errorBuilder(logCategoryOverload).
			Int("remaining", remaining).
			Err(ErrLoopOverloaded).
			Log("hostloop: macrotask budget exhausted")
	}

	return n
}

// drainMicrotasks runs a microtask checkpoint, including microtasks queued
// during the checkpoint, up to the microtask budget.
func (l *Loop) drainMicrotasks() int {
	start := time.Now()
	n := 0
	for n < l.opts.microtaskBudget {
		l.mu.Lock()
		fn, ok := l.microtasks.Pop()
		l.mu.Unlock()
		if !ok {
			break
		}
		l.safeExecute(PhaseMicrotasks, fn)
		n++
	}
	l.microtasksRun.Add(uint64(n))
	l.recordPhase(PhaseMicrotasks, n, start)
	return n
}

// hasUrgentWork reports whether anything other than idle callbacks is
// ready to run.
func (l *Loop) hasUrgentWork() bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.external.Length() > 0 || l.microtasks.Length() > 0 {
		return true
	}
	if len(l.timers) > 0 && !l.timers[0].when.After(now) {
		return true
	}
	if next, ok := l.nextFrameLocked(); ok && !next.After(now) {
		return true
	}
	return false
}

// nextDeadlineLocked returns the earliest of the next timer, frame, and
// idle timeout.
func (l *Loop) nextDeadlineLocked() (next time.Time, ok bool) {
	consider := func(t time.Time, valid bool) {
		if valid && (!ok || t.Before(next)) {
			next, ok = t, true
		}
	}
	if len(l.timers) > 0 {
		consider(l.timers[0].when, true)
	}
	consider(l.nextFrameLocked())
	consider(l.nextIdleTimeoutLocked())
	return next, ok
}

func (l *Loop) lockedLen(fn func() int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}

// sleep blocks until new work is submitted, the next deadline, or ctx is
// done. It returns immediately if there is work to do.
func (l *Loop) sleep(ctx context.Context) {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}
	defer l.state.TryTransition(StateSleeping, StateRunning)

	l.mu.Lock()
	busy := l.external.Length() > 0 || l.microtasks.Length() > 0 || len(l.idle) > 0
	next, hasNext := l.nextDeadlineLocked()
	l.mu.Unlock()
	if busy {
		return
	}

	var timeout <-chan time.Time
	if hasNext {
		d := time.Until(next)
		if d <= 0 {
			return
		}
		l.sleepTimer.Reset(d)
		defer l.sleepTimer.Stop()
		timeout = l.sleepTimer.C
	}

	select {
	case <-l.wakeCh:
		l.wakePending.Store(0)
	case <-timeout:
	case <-ctx.Done():
	}
}

// shutdown drains (unless discarding) then terminates the loop.
func (l *Loop) shutdown() {
	drained := 0
	for !l.discard.Load() && drained < shutdownDrainLimit {
		l.mu.Lock()
		if l.external.Length() == 0 && l.microtasks.Length() == 0 {
			l.terminateLocked()
			l.mu.Unlock()
			close(l.loopDone)
			l.logTerminated(drained)
			return
		}
		l.mu.Unlock()
		drained += l.processExternal()
		drained += l.drainMicrotasks()
	}

	if drained >= shutdownDrainLimit {
		l.errorBuilder(logCategoryShutdown).
			Int("drained", drained).
			Log("hostloop: shutdown drain limit reached, discarding remaining work")
	}
	l.terminate()
	l.logTerminated(drained)
}

func (l *Loop) logTerminated(drained int) {
	l.logger().Debug().
		Uint64("loop_id", l.id).
		Int("drained", drained).
		Bool("discarded", l.discard.Load()).
		Log("hostloop: terminated")
}

// terminate transitions to StateTerminated, discarding all queued work.
func (l *Loop) terminate() {
	l.mu.Lock()
	l.terminateLocked()
	l.mu.Unlock()
	close(l.loopDone)
}

func (l *Loop) terminateLocked() {
	l.state.Store(StateTerminated)
	l.external.Clear()
	l.microtasks.Clear()
	l.idle = nil
	l.frames = nil
	l.timers = nil
	clear(l.timerIndex)
}

// safeExecute runs fn, recovering and logging any panic.
func (l *Loop) safeExecute(phase Phase, fn func()) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			if l.opts.metrics != nil {
				l.opts.metrics.RecordPanic(phase)
			}
			b := l.errorBuilder(logCategoryPanic).Str("phase", phase.String())
			if err, ok := r.(error); ok {
				b = b.Err(err)
			} else {
				b = b.Any("panic", r)
			}
			b.Log("hostloop: callback panicked")
		}
	}()

	fn()
}

// isLoopThread checks if we're on the loop goroutine.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}
