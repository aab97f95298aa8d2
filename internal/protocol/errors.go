package protocol

import "errors"

var (
	// ErrMalformed is returned when a payload is not valid JSON or has the
	// wrong JSON type for a field.
	ErrMalformed = errors.New("protocol: malformed payload")

	// ErrMissingKey is returned when a documented key is absent.
	ErrMissingKey = errors.New("protocol: missing key")

	// ErrUnknownEvent is returned for an event name outside the protocol.
	ErrUnknownEvent = errors.New("protocol: unknown event")

	// ErrPayloadMismatch is returned by Encode when a message's payload
	// variant does not match its event.
	ErrPayloadMismatch = errors.New("protocol: payload does not match event")
)
