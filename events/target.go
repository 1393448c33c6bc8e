// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

import (
	"sync"
)

// ListenerFunc is a callback for [EventTarget.AddEventListener].
type ListenerFunc func(event *Event)

// ListenerID uniquely identifies a registered listener, for removal. Go
// function values cannot be compared, so listeners are removed by ID.
type ListenerID uint64

type listenerEntry struct { //nolint:govet // betteralign:ignore
	id       ListenerID
	listener ListenerFunc
	once     bool
}

// EventTarget provides DOM-style event dispatching.
//
// Thread Safety:
// EventTarget is safe for concurrent use from multiple goroutines. For
// DOM-style semantics, where events are dispatched synchronously, it should
// only be dispatched on from the host thread.
//
// Usage:
//
//	target := events.NewEventTarget()
//
//	id := target.AddEventListener("load", func(e *events.Event) {
//	    fmt.Println("loaded", e.Type)
//	})
//
//	target.DispatchEvent(events.NewEvent("load"))
//
//	target.RemoveEventListenerByID("load", id)
type EventTarget struct {
	listeners      map[string][]listenerEntry
	nextListenerID ListenerID
	mu             sync.Mutex
}

// NewEventTarget creates a new EventTarget with no listeners.
func NewEventTarget() *EventTarget {
	return &EventTarget{
		listeners:      make(map[string][]listenerEntry),
		nextListenerID: 1,
	}
}

// AddEventListener registers a listener for events of the specified type,
// returning an ID that may be used to remove it. A nil listener is ignored,
// and returns 0.
//
// Thread Safety: Safe to call concurrently.
func (et *EventTarget) AddEventListener(eventType string, listener ListenerFunc) ListenerID {
	return et.addListener(eventType, listener, false)
}

// AddEventListenerOnce registers a listener that is removed before it is
// first called, equivalent to { once: true } in the DOM. It will be called
// at most once, even if events are dispatched concurrently.
//
// Thread Safety: Safe to call concurrently.
func (et *EventTarget) AddEventListenerOnce(eventType string, listener ListenerFunc) ListenerID {
	return et.addListener(eventType, listener, true)
}

func (et *EventTarget) addListener(eventType string, listener ListenerFunc, once bool) ListenerID {
	if listener == nil {
		return 0
	}

	et.mu.Lock()
	defer et.mu.Unlock()

	id := et.nextListenerID
	et.nextListenerID++

	et.listeners[eventType] = append(et.listeners[eventType], listenerEntry{
		id:       id,
		listener: listener,
		once:     once,
	})
	return id
}

// RemoveEventListenerByID removes a listener by its ID, returning true if
// it was found.
//
// Thread Safety: Safe to call concurrently.
func (et *EventTarget) RemoveEventListenerByID(eventType string, id ListenerID) bool {
	et.mu.Lock()
	defer et.mu.Unlock()
	return et.removeLocked(eventType, id)
}

func (et *EventTarget) removeLocked(eventType string, id ListenerID) bool {
	entries := et.listeners[eventType]
	for i, entry := range entries {
		if entry.id == id {
			entries = append(entries[:i:i], entries[i+1:]...)
			if len(entries) == 0 {
				delete(et.listeners, eventType)
			} else {
				et.listeners[eventType] = entries
			}
			return true
		}
	}
	return false
}

// DispatchEvent calls every listener registered for event.Type, in
// registration order, synchronously. Listeners added during dispatch are
// not called for that event. Panics propagate to the caller.
//
// It returns false if the event is cancelable and a listener called
// PreventDefault. A nil event is ignored.
//
// Thread Safety: Safe to call concurrently.
func (et *EventTarget) DispatchEvent(event *Event) bool {
	if event == nil {
		return true
	}

	event.Target = et

	et.mu.Lock()
	snapshot := make([]listenerEntry, len(et.listeners[event.Type]))
	copy(snapshot, et.listeners[event.Type])
	et.mu.Unlock()

	for _, entry := range snapshot {
		if event.immediatePropagationStopped {
			break
		}
		if entry.once {
			// claim it, another dispatch may have won
			et.mu.Lock()
			claimed := et.removeLocked(event.Type, entry.id)
			et.mu.Unlock()
			if !claimed {
				continue
			}
		}
		entry.listener(event)
	}

	return !event.Cancelable || !event.DefaultPrevented
}

// HasEventListeners returns true if there are any listeners for the event type.
//
// Thread Safety: Safe to call concurrently.
func (et *EventTarget) HasEventListeners(eventType string) bool {
	return et.ListenerCount(eventType) > 0
}

// ListenerCount returns the number of listeners for the event type.
//
// Thread Safety: Safe to call concurrently.
func (et *EventTarget) ListenerCount(eventType string) int {
	et.mu.Lock()
	defer et.mu.Unlock()
	return len(et.listeners[eventType])
}

// RemoveAllEventListeners removes all listeners for the specified event type.
// If eventType is empty, removes all listeners for all event types.
//
// Thread Safety: Safe to call concurrently.
func (et *EventTarget) RemoveAllEventListeners(eventType string) {
	et.mu.Lock()
	defer et.mu.Unlock()
	if eventType == "" {
		et.listeners = make(map[string][]listenerEntry)
	} else {
		delete(et.listeners, eventType)
	}
}
