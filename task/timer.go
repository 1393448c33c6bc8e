// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"time"
)

// Sleep suspends co for at least d, using the host's timers. The only error
// is the host failing to schedule the timer, e.g. [ErrUnsupported].
func Sleep(co *Co, d time.Duration) error {
	co.enter()
	th, ok := co.host.(TimerHost)
	if !ok {
		return unsupported(co.host, "schedule timers")
	}
	tx, rx := NewChannel[struct{}]()
	if _, err := th.ScheduleTimer(d, func() { tx.Send(struct{}{}) }); err != nil {
		return err
	}
	Await(co, NewJoinHandle(rx))
	return nil
}

// AwaitTimeout is [Await], bounded by a timer. If the timer fires first, it
// returns [ErrTimeout], and h remains joinable. If both are ready, the
// result wins. Unlike Await, retrieving a consumed handle is reported as
// [ErrAlreadyJoined], rather than a panic.
func AwaitTimeout[T any](co *Co, h *JoinHandle[T], d time.Duration) (T, error) {
	co.enter()
	var zero T
	th, ok := co.host.(TimerHost)
	if !ok {
		return zero, unsupported(co.host, "schedule timers")
	}

	if !h.rx.Ready() {
		tx, timer := NewChannel[struct{}]()
		id, err := th.ScheduleTimer(d, func() { tx.Send(struct{}{}) })
		if err != nil {
			return zero, err
		}
		for !h.rx.Ready() && !timer.Ready() {
			cancelResult, ok := h.rx.subscribe(co.wake)
			if !ok {
				break
			}
			cancelTimer, ok := timer.subscribe(co.wake)
			if !ok {
				cancelResult()
				break
			}
			co.park()
			cancelResult()
			cancelTimer()
		}
		if !h.rx.Ready() {
			return zero, ErrTimeout
		}
		if !timer.Ready() {
			_ = th.CancelTimer(id)
		}
	}

	return h.rx.take()
}
