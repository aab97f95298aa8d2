package relay

import (
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/influxdb"
	"github.com/nerrad567/streamdeck-api/internal/press"
)

// EventWriter records button events, as influxdb.Client does.
type EventWriter interface {
	WriteButtonEvent(e influxdb.ButtonEvent)
}

// Telemetry is a press.Sink that records every event through an EventWriter.
type Telemetry struct {
	w EventWriter
}

// NewTelemetry wraps w.
func NewTelemetry(w EventWriter) *Telemetry {
	return &Telemetry{w: w}
}

// Emit implements press.Sink. Writes are batched by the writer and do not block.
func (t *Telemetry) Emit(e press.Event) {
	t.w.WriteButtonEvent(influxdb.ButtonEvent{
		UUID:     e.UUID,
		DeviceID: e.DeviceID,
		Slot:     e.Slot,
		Event:    string(e.Kind),
		At:       e.At,
		Held:     e.Held,
	})
}
