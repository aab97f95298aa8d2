package button

import (
	"time"

	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// Position is a key's grid coordinate within its deck: X is the column,
// Y the row, both zero-based from the top-left key.
type Position struct {
	X int
	Y int
}

// PositionOf maps a key index to its (column, row) on a deck with the
// given number of columns.
func PositionOf(key, columns int) Position {
	if columns <= 0 {
		return Position{X: key}
	}
	return Position{X: key % columns, Y: key / columns}
}

// Button is the persisted record of one physical key.
//
// Slot is the primary key. UUID, DeviceID and Position are fixed when the
// record is created; only SVG changes afterwards.
type Button struct {
	Slot     int
	UUID     string
	DeviceID string
	Position Position
	SVG      string
}

// Protocol converts the record to its wire form.
func (b *Button) Protocol() protocol.Button {
	return protocol.Button{
		UUID:     b.UUID,
		Device:   b.DeviceID,
		Position: protocol.Position{XPos: b.Position.X, YPos: b.Position.Y},
		SVG:      b.SVG,
	}
}

// State is the last observed press transition of a slot.
type State struct {
	Slot      int
	Pressed   bool
	UpdatedAt time.Time
}

// Deck records the slot range allocated to a device serial.
// Slots SlotBase through SlotBase+KeyCount-1 belong to the deck.
type Deck struct {
	Serial   string
	SlotBase int
	KeyCount int
}

// Slot returns the slot of key index key on the deck.
func (d Deck) Slot(key int) int {
	return d.SlotBase + key
}

// Key returns the key index of slot on the deck, and false when the slot
// lies outside the deck's range.
func (d Deck) Key(slot int) (int, bool) {
	key := slot - d.SlotBase
	if key < 0 || key >= d.KeyCount {
		return 0, false
	}
	return key, true
}

// DefaultSVG is the icon given to a newly discovered key.
const DefaultSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="72" height="72" viewBox="0 0 72 72">` +
	`<rect width="72" height="72" fill="#1e1e1e"/>` +
	`<circle cx="36" cy="36" r="6" fill="#5a5a5a"/>` +
	`</svg>`
