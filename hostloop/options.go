// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

const (
	// DefaultFrameInterval is the minimum time between animation frames, 60Hz.
	DefaultFrameInterval = time.Second / 60

	// DefaultIdleBudget bounds the duration of an idle period, as in browsers.
	DefaultIdleBudget = 50 * time.Millisecond

	// DefaultTickBudget is the maximum number of macrotasks run per tick.
	DefaultTickBudget = 1024

	// DefaultMicrotaskBudget is the maximum number of microtasks run per
	// checkpoint. Remaining microtasks run on the next checkpoint, so a task
	// that yields forever cannot starve timers, frames, or shutdown.
	DefaultMicrotaskBudget = 1024
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger                  *logiface.Logger[logiface.Event]
	metrics                 Metrics
	onOverload              func(error)
	frameInterval           time.Duration
	idleBudget              time.Duration
	tickBudget              int
	microtaskBudget         int
	strictMicrotaskOrdering bool
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithStrictMicrotaskOrdering sets whether microtasks should be drained
// after each macrotask and timer callback, for strict ordering.
// When disabled (default), microtasks are drained once per batch.
func WithStrictMicrotaskOrdering(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.strictMicrotaskOrdering = enabled
		return nil
	}}
}

// WithFrameInterval sets the minimum time between animation frames.
func WithFrameInterval(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return fmt.Errorf("hostloop: invalid frame interval: %s", d)
		}
		opts.frameInterval = d
		return nil
	}}
}

// WithIdleBudget sets the maximum duration of an idle period, reported to
// idle callbacks via [IdleDeadline].
func WithIdleBudget(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d <= 0 {
			return fmt.Errorf("hostloop: invalid idle budget: %s", d)
		}
		opts.idleBudget = d
		return nil
	}}
}

// WithTickBudget sets the maximum number of macrotasks run per tick.
func WithTickBudget(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return fmt.Errorf("hostloop: invalid tick budget: %d", n)
		}
		opts.tickBudget = n
		return nil
	}}
}

// WithMicrotaskBudget sets the maximum number of microtasks run per
// microtask checkpoint.
func WithMicrotaskBudget(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return fmt.Errorf("hostloop: invalid microtask budget: %d", n)
		}
		opts.microtaskBudget = n
		return nil
	}}
}

// WithLogger sets the structured logger for the loop. If unset (or nil),
// the package-level logger is used, see [SetLogger].
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics sets a metrics sink, e.g. the Prometheus exporter. A nil
// value disables metrics.
func WithMetrics(metrics Metrics) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metrics = metrics
		return nil
	}}
}

// WithOnOverload sets a callback, called on the loop goroutine with
// [ErrLoopOverloaded] whenever macrotasks remain after the tick budget.
func WithOnOverload(fn func(error)) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.onOverload = fn
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		frameInterval:   DefaultFrameInterval,
		idleBudget:      DefaultIdleBudget,
		tickBudget:      DefaultTickBudget,
		microtaskBudget: DefaultMicrotaskBudget,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
