// Package mqtt provides the MQTT broker connection used by the event relay.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and restored subscriptions
//   - Publishing with QoS and size limits
//   - Topic naming under a configurable prefix (see Topics)
//   - A retained presence message on {prefix}/discovery, with a Last Will so
//     consumers see the server go offline even when it crashes
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetAnnouncement(map[string]any{"host": "deck.local", "port": 6153})
//	err = client.PublishJSON(client.Topics().Event(uuid), event, false)
//
// Tests that need a broker expect one at 127.0.0.1:1883 and skip when it
// is not reachable.
package mqtt
