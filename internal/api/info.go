package api

import (
	"context"
	"net/http"

	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// Snapshot assembles the current devices, application and buttons.
func (s *Server) Snapshot(ctx context.Context) protocol.Info {
	buttons := s.buttons.List(ctx)
	info := protocol.Info{
		Devices:     s.devices(),
		Application: s.app,
		Buttons:     make(protocol.Buttons, len(buttons)),
	}
	for i := range buttons {
		info.Buttons[buttons[i].Slot] = buttons[i].Protocol()
	}
	return info
}

// BroadcastStatus sends the current snapshot to every WebSocket client.
func (s *Server) BroadcastStatus(ctx context.Context) {
	s.hub.BroadcastStatus(s.Snapshot(ctx))
}

func (s *Server) devices() []protocol.Device {
	if s.decks == nil {
		return []protocol.Device{}
	}
	devices := s.decks.Devices()
	if devices == nil {
		return []protocol.Device{}
	}
	return devices
}

// handleInfo serves the snapshot.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Snapshot(r.Context()))
}
