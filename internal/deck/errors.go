package deck

import "errors"

var (
	// ErrDeviceOffline is returned when the deck owning a slot is not
	// attached or stopped responding.
	ErrDeviceOffline = errors.New("deck: device offline")

	// ErrRender is returned when an icon cannot be rasterized for a deck.
	ErrRender = errors.New("deck: icon cannot be rendered")

	// ErrKeyOutOfRange is returned for a key index the device does not have.
	ErrKeyOutOfRange = errors.New("deck: key out of range")
)
