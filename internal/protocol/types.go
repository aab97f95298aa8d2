package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Application describes the server process. It is fixed at startup.
type Application struct {
	Font            string `json:"font"`
	Language        string `json:"language"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	Version         string `json:"version"`
}

// Size is a device's key grid.
type Size struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Device describes one attached deck. ID is the hardware serial.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
	Size Size   `json:"size"`
}

// Position is a key's (column, row) within its device.
type Position struct {
	XPos int `json:"x"`
	YPos int `json:"y"`
}

// Button is the public view of a key: its stable UUID, owning device,
// grid position and current SVG icon.
type Button struct {
	UUID     string   `json:"uuid"`
	Device   string   `json:"device"`
	Position Position `json:"position"`
	SVG      string   `json:"svg"`
}

// Buttons maps slot index to button. It marshals with keys in ascending
// numeric order ("2" before "10"), unlike a plain map[int]Button.
type Buttons map[int]Button

// Info is the snapshot served by /sd/info and carried by status events.
type Info struct {
	Devices     []Device    `json:"devices"`
	Application Application `json:"application"`
	Buttons     Buttons     `json:"buttons"`
}

// Slots returns the button slots in ascending order.
func (b Buttons) Slots() []int {
	slots := make([]int, 0, len(b))
	for slot := range b {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}

// MarshalJSON implements json.Marshaler.
func (b Buttons) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, slot := range b.Slots() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(slot))
		buf.WriteString(`":`)
		enc, err := json.Marshal(b[slot])
		if err != nil {
			return nil, fmt.Errorf("encoding button %d: %w", slot, err)
		}
		buf.Write(enc)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Keys must be decimal integers.
func (b *Buttons) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: buttons: %v", ErrMalformed, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: buttons is null", ErrMalformed)
	}
	out := make(Buttons, len(raw))
	for key, value := range raw {
		slot, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: button key %q is not a slot index", ErrMalformed, key)
		}
		var btn Button
		if err := json.Unmarshal(value, &btn); err != nil {
			return err
		}
		out[slot] = btn
	}
	*b = out
	return nil
}

// requireKeys checks that data is a JSON object containing every key.
func requireKeys(data []byte, what string, keys ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, what, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: %s is null", ErrMalformed, what)
	}
	for _, k := range keys {
		if _, ok := raw[k]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingKey, what, k)
		}
	}
	return nil
}

// The alias types below drop the UnmarshalJSON methods so each decoder can
// delegate field decoding back to encoding/json after checking keys.

// UnmarshalJSON implements json.Unmarshaler.
func (a *Application) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "application", "font", "language", "platform", "platformVersion", "version"); err != nil {
		return err
	}
	type plain Application
	return decodeInto(data, (*plain)(a), "application")
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Size) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "size", "columns", "rows"); err != nil {
		return err
	}
	type plain Size
	return decodeInto(data, (*plain)(s), "size")
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Device) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "device", "id", "name", "type", "size"); err != nil {
		return err
	}
	type plain Device
	return decodeInto(data, (*plain)(d), "device")
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Position) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "position", "x", "y"); err != nil {
		return err
	}
	type plain Position
	return decodeInto(data, (*plain)(p), "position")
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Button) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "button", "uuid", "device", "position", "svg"); err != nil {
		return err
	}
	type plain Button
	return decodeInto(data, (*plain)(b), "button")
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Info) UnmarshalJSON(data []byte) error {
	if err := requireKeys(data, "info", "devices", "application", "buttons"); err != nil {
		return err
	}
	type plain Info
	return decodeInto(data, (*plain)(i), "info")
}

// decodeInto unmarshals data into v, passing protocol errors from nested
// decoders through and classifying everything else as ErrMalformed.
func decodeInto(data []byte, v any, what string) error {
	if err := json.Unmarshal(data, v); err != nil {
		if isProtocolError(err) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrMalformed, what, err)
	}
	return nil
}
