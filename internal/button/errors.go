package button

import "errors"

// Domain errors for the button package.
//
//	if errors.Is(err, button.ErrButtonNotFound) {
//	    // 404
//	}
var (
	// ErrButtonNotFound is returned when no button exists for a slot or UUID.
	ErrButtonNotFound = errors.New("button: not found")

	// ErrButtonExists is returned when creating a button for an occupied slot.
	ErrButtonExists = errors.New("button: slot already exists")

	// ErrUUIDTaken is returned when a UUID is already assigned to another slot.
	ErrUUIDTaken = errors.New("button: uuid already taken")

	// ErrUUIDExhausted is returned when no free UUID was found within the
	// allocation attempt limit.
	ErrUUIDExhausted = errors.New("button: could not allocate unique uuid")

	// ErrInvalidButton is returned when a new record is missing identity fields.
	ErrInvalidButton = errors.New("button: invalid")

	// ErrStateNotFound is returned when no press state is stored for a slot.
	ErrStateNotFound = errors.New("button: state not found")

	// ErrDeckMismatch is returned when a known deck reports a different key
	// count than the one it was allocated with.
	ErrDeckMismatch = errors.New("button: deck key count changed")
)
