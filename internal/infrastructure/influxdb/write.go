package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementButtonEvents is the measurement holding one point per
// classified button event.
const MeasurementButtonEvents = "button_events"

// ButtonEvent is one classified key event as recorded in InfluxDB.
type ButtonEvent struct {
	UUID     string
	DeviceID string
	Slot     int
	Event    string
	At       time.Time

	// Held is the press duration; it is recorded as button_hold_ms when
	// non-zero.
	Held time.Duration
}

// WriteButtonEvent queues a point for e. Tags are uuid, device and event;
// fields are slot, count (always 1, for sum() queries) and button_hold_ms.
func (c *Client) WriteButtonEvent(e ButtonEvent) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(buttonEventPoint(e))
}

func buttonEventPoint(e ButtonEvent) *write.Point {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	fields := map[string]any{
		"slot":  e.Slot,
		"count": 1,
	}
	if e.Held > 0 {
		fields["button_hold_ms"] = e.Held.Milliseconds()
	}

	return write.NewPoint(
		MeasurementButtonEvents,
		map[string]string{
			"uuid":   e.UUID,
			"device": e.DeviceID,
			"event":  e.Event,
		},
		fields,
		at,
	)
}
