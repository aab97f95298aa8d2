package deck

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/streamdeck-api/internal/infrastructure/config"
)

// virtualImageSize is the key edge length reported by virtual decks.
const virtualImageSize = 72

// VirtualDeck is an in-process deck. It accepts SVG key images and lets
// callers simulate key presses and unplugging.
type VirtualDeck struct {
	info Info

	mu       sync.Mutex
	open     bool
	unplug   bool
	pressed  []bool
	images   map[int][]byte
	callback KeyCallback
}

// NewVirtualDeck creates a deck with a columns x rows key grid.
func NewVirtualDeck(serial, typeName string, columns, rows int) *VirtualDeck {
	if typeName == "" {
		typeName = "Stream Deck"
	}
	n := columns * rows
	return &VirtualDeck{
		info: Info{
			Serial:   serial,
			TypeName: typeName,
			Columns:  columns,
			Rows:     rows,
			KeyCount: n,
		},
		pressed: make([]bool, n),
		images:  make(map[int][]byte),
	}
}

// Info implements Device.
func (d *VirtualDeck) Info() Info { return d.info }

// ImageFormat implements Device.
func (d *VirtualDeck) ImageFormat() ImageFormat {
	return ImageFormat{Format: "SVG", Width: virtualImageSize, Height: virtualImageSize}
}

// Open implements Device.
func (d *VirtualDeck) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unplug {
		return ErrDeviceOffline
	}
	d.open = true
	return nil
}

// Close implements Device.
func (d *VirtualDeck) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.callback = nil
	return nil
}

// Reset implements Device. It blanks every key image.
func (d *VirtualDeck) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	d.images = make(map[int][]byte)
	return nil
}

// SetKeyCallback implements Device.
func (d *VirtualDeck) SetKeyCallback(cb KeyCallback) {
	d.mu.Lock()
	d.callback = cb
	d.mu.Unlock()
}

// SetKeyImage implements Device.
func (d *VirtualDeck) SetKeyImage(key int, image []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	if key < 0 || key >= d.info.KeyCount {
		return fmt.Errorf("%w: %d", ErrKeyOutOfRange, key)
	}
	d.images[key] = append([]byte(nil), image...)
	return nil
}

// KeyStates implements Device.
func (d *VirtualDeck) KeyStates() ([]bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	return append([]bool(nil), d.pressed...), nil
}

// Image returns the last image written to key, or nil.
func (d *VirtualDeck) Image(key int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.images[key]
}

// Press simulates a key transition. The callback runs on the caller's
// goroutine, as hardware drivers run it on their reader goroutine.
func (d *VirtualDeck) Press(key int, pressed bool) error {
	d.mu.Lock()
	if err := d.usable(); err != nil {
		d.mu.Unlock()
		return err
	}
	if key < 0 || key >= d.info.KeyCount {
		d.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrKeyOutOfRange, key)
	}
	d.pressed[key] = pressed
	cb := d.callback
	d.mu.Unlock()

	if cb != nil {
		cb(key, pressed)
	}
	return nil
}

// SetUnplugged simulates removing (true) or reinserting (false) the deck.
func (d *VirtualDeck) SetUnplugged(unplugged bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unplug = unplugged
	if unplugged {
		d.open = false
		for i := range d.pressed {
			d.pressed[i] = false
		}
	}
}

func (d *VirtualDeck) usable() error {
	if d.unplug || !d.open {
		return ErrDeviceOffline
	}
	return nil
}

// VirtualDriver enumerates a fixed set of virtual decks, skipping any that
// are unplugged.
type VirtualDriver struct {
	decks []*VirtualDeck
}

// NewVirtualDriver creates a driver over decks.
func NewVirtualDriver(decks ...*VirtualDeck) *VirtualDriver {
	return &VirtualDriver{decks: decks}
}

// NewVirtualDriverFromConfig creates one virtual deck per configured entry.
func NewVirtualDriverFromConfig(cfgs []config.VirtualDeckConfig) *VirtualDriver {
	decks := make([]*VirtualDeck, 0, len(cfgs))
	for _, c := range cfgs {
		decks = append(decks, NewVirtualDeck(c.Serial, c.Type, c.Columns, c.Rows))
	}
	return NewVirtualDriver(decks...)
}

// Deck returns the virtual deck with the given serial, or nil.
func (v *VirtualDriver) Deck(serial string) *VirtualDeck {
	for _, d := range v.decks {
		if d.info.Serial == serial {
			return d
		}
	}
	return nil
}

// Enumerate implements Driver.
func (v *VirtualDriver) Enumerate(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(v.decks))
	for _, d := range v.decks {
		d.mu.Lock()
		present := !d.unplug
		d.mu.Unlock()
		if present {
			out = append(out, d)
		}
	}
	return out, nil
}
