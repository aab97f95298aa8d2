package press

import (
	"time"

	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// Event is one classified key event.
type Event struct {
	Kind     protocol.Event
	UUID     string
	Slot     int
	DeviceID string
	At       time.Time

	// Held is how long the key was down. It is set on keyUp and singleTap
	// when the matching press is known, and on longPress.
	Held time.Duration
}

// Message converts the event to its WebSocket envelope.
func (e Event) Message() protocol.Message {
	return protocol.ButtonMessage(e.Kind, e.UUID)
}

// Sink receives classified events. Emit must not block for long; it is
// called from device callbacks and timer goroutines.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Sinks fans an event out to every member in order.
type Sinks []Sink

// Emit implements Sink.
func (s Sinks) Emit(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Emit(e)
		}
	}
}
