// Package protocol defines the JSON wire format shared by the server and
// remote clients.
//
// Three shapes cross the wire:
//
//   - Info, returned by GET /sd/info and embedded in status events
//   - Message, the {"event": ..., "args": ...} envelope sent over the WebSocket
//   - raw SVG text for icons (not modelled here)
//
// Field names are part of the contract. Go fields that differ from their
// wire name (XPos, YPos, PlatformVersion) are remapped through struct tags,
// so decoding accepts only the public names.
//
// Decoding is strict: a missing documented key, an unknown event name or
// malformed JSON returns an error wrapping ErrMissingKey, ErrUnknownEvent
// or ErrMalformed. Callers log the error and drop the message.
package protocol
