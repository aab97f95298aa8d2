// Package influxdb records button activity in InfluxDB v2.
//
// Every classified event becomes a point in the button_events measurement,
// tagged with the button UUID, owning device and event name. keyUp,
// singleTap and longPress points carry the hold time in button_hold_ms.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteButtonEvent(influxdb.ButtonEvent{UUID: "brave-otter-01", Event: "keyDown"})
package influxdb
