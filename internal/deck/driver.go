package deck

import (
	"context"
	"strings"

	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// Info is what a driver reports about an attached deck.
type Info struct {
	Serial   string
	TypeName string
	Columns  int
	Rows     int
	KeyCount int
}

// Descriptor converts the info to its wire form.
func (i Info) Descriptor() protocol.Device {
	return protocol.Device{
		ID:   i.Serial,
		Name: i.TypeName,
		Type: TypeCode(i.TypeName),
		Size: protocol.Size{Columns: i.Columns, Rows: i.Rows},
	}
}

// ImageFormat describes the key image a device accepts.
type ImageFormat struct {
	// Format is the encoding, for example "JPEG", "BMP" or "SVG".
	Format   string
	Width    int
	Height   int
	FlipH    bool
	FlipV    bool
	Rotation int
}

// KeyCallback receives raw key transitions. key is the zero-based key index.
type KeyCallback func(key int, pressed bool)

// Device is one attached deck as seen through its driver.
type Device interface {
	Info() Info
	Open() error
	Close() error
	Reset() error

	// SetKeyCallback registers the raw transition callback. nil removes it.
	SetKeyCallback(cb KeyCallback)

	// SetKeyImage writes an already rasterized image to a key.
	SetKeyImage(key int, image []byte) error

	// KeyStates returns the live pressed state of every key.
	KeyStates() ([]bool, error)

	ImageFormat() ImageFormat
}

// Driver enumerates attached decks.
type Driver interface {
	Enumerate(ctx context.Context) ([]Device, error)
}

// Rasterizer converts SVG text into a device image.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg string, format ImageFormat) ([]byte, error)
}

// Device type codes as reported in /sd/info.
const (
	TypeStreamDeck      = 0
	TypeStreamDeckMini  = 1
	TypeStreamDeckXL    = 2
	TypeStreamDeckPedal = 5
	TypeStreamDeckPlus  = 7
	TypeStreamDeckNeo   = 9
)

// TypeCode maps a driver type name such as "Stream Deck XL" to its
// numeric device type.
func TypeCode(typeName string) int {
	name := strings.ToLower(typeName)
	switch {
	case strings.Contains(name, "mini"):
		return TypeStreamDeckMini
	case strings.Contains(name, "xl"):
		return TypeStreamDeckXL
	case strings.Contains(name, "pedal"):
		return TypeStreamDeckPedal
	case strings.Contains(name, "+"), strings.Contains(name, "plus"):
		return TypeStreamDeckPlus
	case strings.Contains(name, "neo"):
		return TypeStreamDeckNeo
	default:
		return TypeStreamDeck
	}
}
