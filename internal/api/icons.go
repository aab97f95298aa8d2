package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/streamdeck-api/internal/icon"
)

// handleGetIcon serves a button's SVG.
func (s *Server) handleGetIcon(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	svg, err := s.icons.Get(r.Context(), uuid)
	if errors.Is(err, icon.ErrUnknownButton) {
		writeNotFound(w, "button not found")
		return
	}
	if err != nil {
		s.logger.Error("reading icon failed", "uuid", uuid, "error", err)
		writeInternalError(w, "failed to read icon")
		return
	}

	writeRaw(w, http.StatusOK, "image/svg+xml", []byte(svg))
}

// handleSetIcon replaces a button's SVG with the request body.
func (s *Server) handleSetIcon(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "icon too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	err = s.icons.Set(r.Context(), uuid, string(body))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "uuid": uuid})
	case errors.Is(err, icon.ErrUnknownButton):
		writeNotFound(w, "button not found")
	case errors.Is(err, icon.ErrNotSVG):
		writeUnprocessable(w, "body must be an svg document")
	case errors.Is(err, icon.ErrRender):
		writeUnprocessable(w, "icon cannot be rendered")
	default:
		s.logger.Error("updating icon failed", "uuid", uuid, "error", err)
		writeInternalError(w, "failed to update icon")
	}
}
