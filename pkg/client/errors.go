package client

import "errors"

var (
	// ErrUnexpectedStatus is returned for an HTTP status the call does not expect.
	ErrUnexpectedStatus = errors.New("client: unexpected http status")

	// ErrUnknownButton is returned when the server does not know the UUID.
	ErrUnknownButton = errors.New("client: unknown button")

	// ErrRejected is returned when the server refuses an icon (422).
	ErrRejected = errors.New("client: icon rejected")

	// ErrResponseTooLarge is returned when an icon response exceeds the size limit.
	ErrResponseTooLarge = errors.New("client: response too large")

	// ErrNotSVG is returned when an icon response is not image/svg+xml.
	ErrNotSVG = errors.New("client: response is not svg")
)
