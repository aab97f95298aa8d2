// Package api implements the Stream Deck HTTP API and WebSocket event
// stream.
//
// This package provides:
//   - GET /sd/info, the device and button snapshot
//   - GET and POST /sd/icon/{uuid}, reading and replacing key icons
//   - GET / upgraded to a WebSocket carrying button and status events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Event stream
//
// Every session receives {"event":"connected","args":{}} before anything
// else. Button events (keyDown, keyUp, singleTap, longPress) carry the
// button UUID; status events carry the full snapshot and are sent after
// icon changes and deck attach or detach. The Hub fans events out to all
// sessions. A session whose send queue is full is dropped; the others are
// unaffected.
//
// # Graceful Degradation
//
// The server works with no deck attached. /sd/info then reports no devices
// and icon updates are stored and painted once a deck appears.
package api
