// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostloop

import (
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Log categories, each rate limited independently.
const (
	logCategoryPanic    = "panic"
	logCategoryOverload = "overload"
	logCategoryShutdown = "shutdown"
)

var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

// SetLogger sets the package-level logger, used by loops that were not
// configured using [WithLogger]. A nil logger (the default) disables logging.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

func getGlobalLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

// newLogLimiter returns the limiter for repetitive loop errors, e.g. a
// callback panicking every frame.
func newLogLimiter() *catrate.Limiter {
	return catrate.NewLimiter(map[time.Duration]int{
		time.Second: 10,
		time.Minute: 100,
	})
}

// logger returns the effective logger, which may be nil.
func (l *Loop) logger() *logiface.Logger[logiface.Event] {
	if l.opts.logger != nil {
		return l.opts.logger
	}
	return getGlobalLogger()
}

// errorBuilder returns a builder at error level, or nil if there is no
// logger, or the category is currently rate limited. Only rate limited logs
// count as suppressed.
func (l *Loop) errorBuilder(category string) *logiface.Builder[logiface.Event] {
	logger := l.logger()
	if logger == nil {
		return nil
	}
	if _, ok := l.logLimiter.Allow(category); !ok {
		l.suppressedLogs.Add(1)
		return nil
	}
	return logger.Err().
		Uint64("loop_id", l.id).
		Str("category", category)
}
