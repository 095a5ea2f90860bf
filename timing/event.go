package timing

import (
	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/id"
)

// Event is a unit of work scheduled at a virtual time.
type Event interface {
	// Time is the virtual time at which the engine dispatches the event.
	Time() VTime

	// Handler receives the event when it is dispatched.
	Handler() Handler

	// IsSecondary reports whether the event waits for every primary event
	// carrying the same timestamp to run first.
	IsSecondary() bool
}

// HookPosBeforeEvent fires right before an event reaches its handler.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent fires once the handler has returned.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// EventBase carries the fields shared by all concrete events. Embed it to
// satisfy Event.
type EventBase struct {
	ID        string
	time      VTime
	handler   Handler
	secondary bool
}

// NewEventBase returns a primary EventBase due at t.
func NewEventBase(t VTime, handler Handler) *EventBase {
	e := new(EventBase)
	e.ID = id.Generate()
	e.time = t
	e.handler = handler
	e.secondary = false

	return e
}

// NewSecondaryEventBase returns an EventBase in the secondary class.
func NewSecondaryEventBase(t VTime, handler Handler) *EventBase {
	e := NewEventBase(t, handler)
	e.secondary = true

	return e
}

// Time returns the dispatch time.
func (e EventBase) Time() VTime {
	return e.time
}

// Handler returns the receiver of the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true for events built with NewSecondaryEventBase.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// Handler consumes events. An event belongs to exactly one handler, and the
// handler only mutates its own state while processing it.
type Handler interface {
	Handle(e Event) error
}
