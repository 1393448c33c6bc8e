// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

import (
	"sync"
)

// DOMContentLoaded is the type of the event dispatched by [Document.MarkReady].
const DOMContentLoaded = "DOMContentLoaded"

// Document is an EventTarget with a one-way ready state, after the DOM's
// document.readyState.
type Document struct {
	*EventTarget
	mu    sync.Mutex
	ready bool
}

// NewDocument returns a Document that is not yet ready.
func NewDocument() *Document {
	return &Document{EventTarget: NewEventTarget()}
}

// IsReady reports whether MarkReady has been called.
func (d *Document) IsReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// MarkReady transitions the document to ready, and dispatches a
// DOMContentLoaded event. Only the first call has any effect, returning true.
func (d *Document) MarkReady() bool {
	d.mu.Lock()
	if d.ready {
		d.mu.Unlock()
		return false
	}
	d.ready = true
	d.mu.Unlock()
	d.DispatchEvent(NewEvent(DOMContentLoaded))
	return true
}

// OnReady calls fn exactly once: immediately (with a nil event) if the
// document is already ready, otherwise from the DOMContentLoaded dispatch.
func (d *Document) OnReady(fn ListenerFunc) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	if d.ready {
		d.mu.Unlock()
		fn(nil)
		return
	}
	// registered under mu, so MarkReady cannot dispatch in between
	d.AddEventListenerOnce(DOMContentLoaded, fn)
	d.mu.Unlock()
}
