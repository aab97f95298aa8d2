package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names an envelope kind.
type Event string

// Events carried over the WebSocket.
const (
	EventConnected Event = "connected"
	EventStatus    Event = "status"
	EventKeyDown   Event = "keyDown"
	EventKeyUp     Event = "keyUp"
	EventSingleTap Event = "singleTap"
	EventLongPress Event = "longPress"
)

// Valid reports whether e is one of the protocol's events.
func (e Event) Valid() bool {
	switch e {
	case EventConnected, EventStatus, EventKeyDown, EventKeyUp, EventSingleTap, EventLongPress:
		return true
	}
	return false
}

// IsButtonEvent reports whether e carries a button UUID.
func (e Event) IsButtonEvent() bool {
	switch e {
	case EventKeyDown, EventKeyUp, EventSingleTap, EventLongPress:
		return true
	}
	return false
}

// Payload is the closed set of envelope argument types:
// Empty, Status and ButtonRef.
type Payload interface {
	payload()
}

// Empty is the {} payload of a connected event.
type Empty struct{}

// Status carries the snapshot of a status event.
type Status struct {
	Info Info
}

// ButtonRef carries the UUID of a key event.
type ButtonRef struct {
	UUID string
}

func (Empty) payload()     {}
func (Status) payload()    {}
func (ButtonRef) payload() {}

// Message is one WebSocket envelope.
type Message struct {
	Event Event
	Args  Payload
}

// Connected returns the handshake message sent first on every session.
func Connected() Message {
	return Message{Event: EventConnected, Args: Empty{}}
}

// StatusMessage wraps a snapshot in a status event.
func StatusMessage(info Info) Message {
	return Message{Event: EventStatus, Args: Status{Info: info}}
}

// ButtonMessage builds a keyDown, keyUp, singleTap or longPress event.
func ButtonMessage(event Event, uuid string) Message {
	return Message{Event: event, Args: ButtonRef{UUID: uuid}}
}

type envelope struct {
	Event Event           `json:"event"`
	Args  json.RawMessage `json:"args"`
}

// Encode serializes m as {"event": ..., "args": ...}.
// The payload variant must match the event.
func Encode(m Message) ([]byte, error) {
	var args any
	switch p := m.Args.(type) {
	case Empty:
		if m.Event != EventConnected {
			return nil, fmt.Errorf("%w: %s with empty args", ErrPayloadMismatch, m.Event)
		}
		args = struct{}{}
	case Status:
		if m.Event != EventStatus {
			return nil, fmt.Errorf("%w: %s with status args", ErrPayloadMismatch, m.Event)
		}
		if p.Info.Devices == nil {
			p.Info.Devices = []Device{}
		}
		if p.Info.Buttons == nil {
			p.Info.Buttons = Buttons{}
		}
		args = p.Info
	case ButtonRef:
		if !m.Event.IsButtonEvent() {
			return nil, fmt.Errorf("%w: %s with button args", ErrPayloadMismatch, m.Event)
		}
		args = p.UUID
	default:
		if !m.Event.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, m.Event)
		}
		return nil, fmt.Errorf("%w: %s has no args", ErrPayloadMismatch, m.Event)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding %s args: %w", m.Event, err)
	}
	return json.Marshal(envelope{Event: m.Event, Args: raw})
}

// Decode parses an envelope. Errors wrap ErrMalformed, ErrMissingKey or
// ErrUnknownEvent and never panic on hostile input.
func Decode(data []byte) (Message, error) {
	if err := requireKeys(data, "message", "event", "args"); err != nil {
		return Message{}, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: message: %v", ErrMalformed, err)
	}
	if !env.Event.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	switch {
	case env.Event == EventConnected:
		if !isEmptyObject(env.Args) {
			return Message{}, fmt.Errorf("%w: connected args must be {}", ErrMalformed)
		}
		return Connected(), nil

	case env.Event == EventStatus:
		var info Info
		if err := json.Unmarshal(env.Args, &info); err != nil {
			if isProtocolError(err) {
				return Message{}, err
			}
			return Message{}, fmt.Errorf("%w: status args: %v", ErrMalformed, err)
		}
		return StatusMessage(info), nil

	default:
		var uuid string
		if err := json.Unmarshal(env.Args, &uuid); err != nil {
			return Message{}, fmt.Errorf("%w: %s args must be a uuid string", ErrMalformed, env.Event)
		}
		if uuid == "" {
			return Message{}, fmt.Errorf("%w: %s args is empty", ErrMalformed, env.Event)
		}
		return ButtonMessage(env.Event, uuid), nil
	}
}

func isEmptyObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	err := json.Unmarshal(raw, &obj)
	return err == nil && obj != nil && len(obj) == 0
}

func isProtocolError(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrMissingKey) || errors.Is(err, ErrUnknownEvent)
}
