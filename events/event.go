// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

// Event represents an event dispatched by [EventTarget.DispatchEvent].
//
// Thread Safety:
// Event is NOT safe for concurrent access. An Event should only be used
// from the goroutine that calls DispatchEvent.
type Event struct { //nolint:govet // betteralign:ignore
	// Type is the name of the event (e.g., "load", "DOMContentLoaded").
	Type string

	// Target is the EventTarget on which the event was dispatched.
	Target *EventTarget

	// DefaultPrevented is true if PreventDefault() was called.
	DefaultPrevented bool

	// Cancelable indicates whether the event can be canceled.
	Cancelable bool

	immediatePropagationStopped bool

	detail any
}

// NewEvent creates a new, non-cancelable Event with the specified type.
func NewEvent(eventType string) *Event {
	return &Event{Type: eventType}
}

// NewCustomEvent creates a new, non-cancelable Event that carries detail,
// accessible via [Event.Detail].
func NewCustomEvent(eventType string, detail any) *Event {
	return &Event{Type: eventType, detail: detail}
}

// PreventDefault marks the event as having its default action canceled.
// It only has effect if the event is Cancelable.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.DefaultPrevented = true
	}
}

// StopImmediatePropagation prevents any further listeners from being called.
func (e *Event) StopImmediatePropagation() {
	e.immediatePropagationStopped = true
}

// IsImmediatePropagationStopped returns true if StopImmediatePropagation was called.
func (e *Event) IsImmediatePropagationStopped() bool {
	return e.immediatePropagationStopped
}

// Detail returns the custom detail data associated with the event.
func (e *Event) Detail() any {
	return e.detail
}
