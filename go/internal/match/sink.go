package match

import (
	"github.com/mcdev12/songduel/go/internal/events"
)

// Event is an outcome emitted by a Room.
type Event struct {
	Type    events.Type
	To      string // Optional: if set, only this player receives the event
	Payload any
}

// Broadcast reports whether the event targets the whole room
func (e Event) Broadcast() bool {
	return e.To == ""
}

// EventSink receives the events of every room it is attached to.
//
// Emit is called while the room holds its lock so that events keep the order
// of the transitions that produced them. Implementations must not block and
// must not call back into the Room.
type EventSink interface {
	Emit(code string, ev Event)
}

// SinkFunc adapts a function to EventSink
type SinkFunc func(code string, ev Event)

func (f SinkFunc) Emit(code string, ev Event) {
	f(code, ev)
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(code string, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(code, ev)
		}
	}
}

type nopSink struct{}

func (nopSink) Emit(string, Event) {}
