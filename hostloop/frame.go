// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"slices"
	"time"
)

type frameRequest struct {
	fn func(ts time.Time)
	id uint64
}

// RequestAnimationFrame schedules fn to run once, before the next animation
// frame. Every callback requested before a frame starts receives the same
// timestamp. Callbacks requested during a frame run in the following one.
//
// Frames are only produced while callbacks are pending, no more often than
// the frame interval, see [WithFrameInterval].
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) RequestAnimationFrame(fn func(ts time.Time)) (uint64, error) {
	l.mu.Lock()
	if !l.state.CanAcceptWork() {
		l.mu.Unlock()
		return 0, ErrLoopTerminated
	}
	l.nextID++
	id := l.nextID
	l.frames = append(l.frames, frameRequest{fn: fn, id: id})
	l.mu.Unlock()

	l.wakeIfSleeping()
	return id, nil
}

// CancelAnimationFrame cancels a pending frame callback. Unknown IDs are
// ignored.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) CancelAnimationFrame(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.CanAcceptWork() {
		return ErrLoopTerminated
	}
	l.frames = slices.DeleteFunc(l.frames, func(f frameRequest) bool { return f.id == id })
	return nil
}

// nextFrameLocked returns the time of the next frame, or false if there are
// no pending frame callbacks.
func (l *Loop) nextFrameLocked() (time.Time, bool) {
	if len(l.frames) == 0 {
		return time.Time{}, false
	}
	if l.lastFrame.IsZero() {
		return time.Time{}, true
	}
	return l.lastFrame.Add(l.opts.frameInterval), true
}

// runFrame runs the pending frame callbacks, if a frame is due.
func (l *Loop) runFrame() {
	now := time.Now()

	l.mu.Lock()
	next, ok := l.nextFrameLocked()
	if !ok || now.Before(next) {
		l.mu.Unlock()
		return
	}
	batch := l.frames
	l.frames = nil
	l.lastFrame = now
	l.mu.Unlock()

	l.recordQueueDepth(PhaseFrame, len(batch))
	for _, f := range batch {
		l.safeExecute(PhaseFrame, func() { f.fn(now) })
	}
	l.framesRun.Add(1)
	l.recordPhase(PhaseFrame, len(batch), now)

	l.drainMicrotasks()
}
