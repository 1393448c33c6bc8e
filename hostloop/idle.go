// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"time"
)

// IdleDeadline is passed to idle callbacks, after the DOM type of the same
// name.
type IdleDeadline struct {
	deadline   time.Time
	didTimeout bool
}

// TimeRemaining returns the time left in the current idle period, which is
// zero once the period has elapsed, or if the callback timed out.
func (d IdleDeadline) TimeRemaining() time.Duration {
	return max(time.Until(d.deadline), 0)
}

// DidTimeout reports whether the callback is running because its timeout
// elapsed, rather than because the loop was idle.
func (d IdleDeadline) DidTimeout() bool {
	return d.didTimeout
}

// IdleOption configures an idle callback request.
type IdleOption interface {
	applyIdle(*idleRequest)
}

type idleOptionImpl struct {
	applyIdleFunc func(*idleRequest)
}

func (o *idleOptionImpl) applyIdle(r *idleRequest) {
	o.applyIdleFunc(r)
}

// WithIdleTimeout forces the callback to run once d has elapsed, even if
// the loop has not been idle. Non-positive values are ignored.
func WithIdleTimeout(d time.Duration) IdleOption {
	return &idleOptionImpl{func(r *idleRequest) {
		if d > 0 {
			r.timeoutAt = time.Now().Add(d)
		}
	}}
}

type idleRequest struct {
	timeoutAt time.Time
	fn        func(IdleDeadline)
	id        uint64
}

// RequestIdleCallback schedules fn to run once, during a future idle period:
// when the loop has no macrotasks, microtasks, due timers or due frames.
// There is no upper bound on when that happens, unless [WithIdleTimeout] is
// used.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) RequestIdleCallback(fn func(deadline IdleDeadline), opts ...IdleOption) (uint64, error) {
	r := &idleRequest{fn: fn}
	for _, opt := range opts {
		if opt != nil {
			opt.applyIdle(r)
		}
	}

	l.mu.Lock()
	if !l.state.CanAcceptWork() {
		l.mu.Unlock()
		return 0, ErrLoopTerminated
	}
	l.nextID++
	r.id = l.nextID
	l.idle = append(l.idle, r)
	l.mu.Unlock()

	l.wakeIfSleeping()
	return r.id, nil
}

// CancelIdleCallback cancels a pending idle callback. Unknown IDs are
// ignored.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) CancelIdleCallback(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.CanAcceptWork() {
		return ErrLoopTerminated
	}
	for i, r := range l.idle {
		if r.id == id {
			l.idle = append(l.idle[:i:i], l.idle[i+1:]...)
			break
		}
	}
	return nil
}

// SubmitIdle schedules fn as an idle callback, ignoring the deadline.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) SubmitIdle(fn func()) error {
	_, err := l.RequestIdleCallback(func(IdleDeadline) { fn() })
	return err
}

// popIdle removes the oldest idle request, if timedOutAt is zero, otherwise
// the oldest request whose timeout is at or before timedOutAt.
func (l *Loop) popIdle(timedOutAt time.Time) *idleRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.idle {
		if !timedOutAt.IsZero() && (r.timeoutAt.IsZero() || r.timeoutAt.After(timedOutAt)) {
			continue
		}
		l.idle = append(l.idle[:i:i], l.idle[i+1:]...)
		return r
	}
	return nil
}

// nextIdleTimeoutLocked returns the earliest idle timeout, if any.
func (l *Loop) nextIdleTimeoutLocked() (next time.Time, ok bool) {
	for _, r := range l.idle {
		if !r.timeoutAt.IsZero() && (!ok || r.timeoutAt.Before(next)) {
			next, ok = r.timeoutAt, true
		}
	}
	return next, ok
}

// runIdleTimeouts runs idle callbacks whose timeout has elapsed.
func (l *Loop) runIdleTimeouts(now time.Time) {
	for {
		r := l.popIdle(now)
		if r == nil {
			return
		}
		l.safeExecute(PhaseIdle, func() { r.fn(IdleDeadline{deadline: now, didTimeout: true}) })
		l.idleCallbacks.Add(1)
		l.drainMicrotasks()
	}
}

// runIdle runs an idle period: idle callbacks, oldest first, until the
// deadline passes or other work arrives. Callbacks requested during the
// period run in a later one.
func (l *Loop) runIdle() {
	start := time.Now()
	deadline := start.Add(l.opts.idleBudget)

	l.mu.Lock()
	if next, ok := l.nextDeadlineLocked(); ok && next.Before(deadline) {
		deadline = next
	}
	pending := len(l.idle)
	l.mu.Unlock()

	l.recordQueueDepth(PhaseIdle, pending)
	n := 0
	for n < pending && time.Now().Before(deadline) {
		r := l.popIdle(time.Time{})
		if r == nil {
			break
		}
		l.safeExecute(PhaseIdle, func() { r.fn(IdleDeadline{deadline: deadline}) })
		n++
		l.drainMicrotasks()
		if l.hasUrgentWork() {
			break
		}
	}
	l.idleCallbacks.Add(uint64(n))
	l.recordPhase(PhaseIdle, n, start)
}
