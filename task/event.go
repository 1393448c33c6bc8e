// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package task

import (
	"github.com/Maurimura7/localghost/events"
)

// NextEvent returns a handle that resolves with the next event of the given
// type dispatched on target. The listener detaches itself after firing.
func NextEvent(target *events.EventTarget, eventType string) *JoinHandle[*events.Event] {
	tx, rx := NewChannel[*events.Event]()
	target.AddEventListenerOnce(eventType, func(event *events.Event) {
		tx.Send(event)
	})
	return NewJoinHandle(rx)
}

// DocumentReady returns a handle that resolves once doc is ready. If it
// already is, the handle is ready immediately, with a nil event.
func DocumentReady(doc *events.Document) *JoinHandle[*events.Event] {
	tx, rx := NewChannel[*events.Event]()
	doc.OnReady(func(event *events.Event) {
		tx.Send(event)
	})
	return NewJoinHandle(rx)
}
