// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"time"
)

// AnimationLoop drives a per-frame step function, one iteration at a time.
// It has no clock and no frame-rate control: every iteration is explicitly
// requested, via Render or RenderNextFrame.
//
// The step function is shared by all iterations, and may be async (suspend
// via co). Iterations are not serialized: if the caller starts a new
// iteration before the previous one completes, both may be in flight.
type AnimationLoop[I, O any] struct {
	host Host
	step func(co *Co, in I) O
}

// NewAnimationLoop returns a driver that runs step on host.
func NewAnimationLoop[I, O any](host Host, step func(co *Co, in I) O) *AnimationLoop[I, O] {
	if step == nil {
		panic("task: nil animation step")
	}
	return &AnimationLoop[I, O]{host: host, step: step}
}

// Render starts exactly one iteration, with the given input, as a task on
// the host's microtask queue. It never re-invokes itself.
func (x *AnimationLoop[I, O]) Render(in I) *JoinHandle[O] {
	return Spawn(x.host, func(co *Co) O {
		return x.step(co, in)
	})
}

// RenderNextFrame starts exactly one iteration, from the host's next
// animation frame callback. The input is computed from the frame timestamp.
// Re-arming for subsequent frames is the caller's job.
//
// The error is either [ErrUnsupported], or the host refusing the request.
func (x *AnimationLoop[I, O]) RenderNextFrame(input func(ts time.Time) I) (*JoinHandle[O], error) {
	fh, ok := x.host.(FrameHost)
	if !ok {
		return nil, unsupported(x.host, "request animation frames")
	}
	tx, rx := NewChannel[O]()
	if _, err := fh.RequestAnimationFrame(func(ts time.Time) {
		in := input(ts)
		spawnInto(x.host, tx, func(co *Co) O {
			return x.step(co, in)
		})
	}); err != nil {
		return nil, err
	}
	return NewJoinHandle(rx), nil
}
