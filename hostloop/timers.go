// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"container/heap"
	"time"
)

// timer represents a scheduled callback.
type timer struct {
	when  time.Time
	fn    func()
	id    uint64
	index int
}

// timerHeap is a min-heap of timers, ordered by deadline, then by ID (i.e.
// scheduling order).
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].id < h[j].id
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// ScheduleTimer schedules fn to run on the loop, once delay has elapsed. A
// negative delay is treated as zero. Timers with equal deadlines run in
// scheduling order.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) (uint64, error) {
	l.mu.Lock()
	if !l.state.CanAcceptWork() {
		l.mu.Unlock()
		return 0, ErrLoopTerminated
	}
	l.nextID++
	t := &timer{
		when: time.Now().Add(max(delay, 0)),
		fn:   fn,
		id:   l.nextID,
	}
	heap.Push(&l.timers, t)
	l.timerIndex[t.id] = t
	l.mu.Unlock()

	l.wakeIfSleeping()
	return t.id, nil
}

// CancelTimer cancels a pending timer. Cancelling a timer that has already
// fired, or was never scheduled, is a no-op.
//
// Thread Safety: Safe to call concurrently.
func (l *Loop) CancelTimer(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.CanAcceptWork() {
		return ErrLoopTerminated
	}
	if t, ok := l.timerIndex[id]; ok {
		delete(l.timerIndex, id)
		heap.Remove(&l.timers, t.index)
	}
	return nil
}

// popExpiredTimer removes and returns the earliest timer due at now.
func (l *Loop) popExpiredTimer(now time.Time) *timer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.timers) == 0 || l.timers[0].when.After(now) {
		return nil
	}
	t := heap.Pop(&l.timers).(*timer)
	delete(l.timerIndex, t.id)
	return t
}

// runTimers executes all timers that were due at the start of the tick.
func (l *Loop) runTimers(now time.Time) {
	l.recordQueueDepth(PhaseTimers, l.lockedLen(func() int { return len(l.timers) }))
	start := time.Now()
	n := 0
	for {
		t := l.popExpiredTimer(now)
		if t == nil {
			break
		}
		l.safeExecute(PhaseTimers, t.fn)
		n++
		if l.opts.strictMicrotaskOrdering {
			l.drainMicrotasks()
		}
	}
	l.timersRun.Add(uint64(n))
	l.recordPhase(PhaseTimers, n, start)
}
