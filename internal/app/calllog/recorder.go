/*
Package calllog records call lifecycle events for later inspection.

The hub hands events to a Recorder from its event loop, so Record must never block.
*/
package calllog

import (
	"context"
	"time"
)

// Kind names a call lifecycle transition.
type Kind string

const (
	KindStarted  Kind = "call-started"
	KindAccepted Kind = "call-accepted"
	KindRejected Kind = "call-rejected"
	KindInvited  Kind = "participant-invited"
	KindEnded    Kind = "call-ended"
)

// Event is one recorded transition.
type Event struct {
	Kind     Kind
	RoomID   string
	Actor    string
	Target   string
	CallType string
	At       time.Time
}

// Recorder accepts call events without blocking the caller.
type Recorder interface {
	// Record queues e. Events that cannot be queued are dropped.
	Record(e Event)

	// Close flushes queued events and releases resources.
	Close(ctx context.Context) error
}

// Nop discards every event. It is used when no database is configured.
type Nop struct{}

func (Nop) Record(Event) {}

func (Nop) Close(context.Context) error { return nil }
