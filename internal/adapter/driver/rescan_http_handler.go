package driver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/umdl/umd-host/internal/application"
)

// RescanHTTPHandler streams re-scan signals to connected detection
// sources as server-sent events. A content script subscribes once per
// page and triggers a fresh scan whenever an event arrives.
type RescanHTTPHandler struct {
	hub    *application.RescanHub
	logger *slog.Logger
}

// NewRescanHTTPHandler creates the re-scan event stream handler.
func NewRescanHTTPHandler(hub *application.RescanHub, logger *slog.Logger) *RescanHTTPHandler {
	return &RescanHTTPHandler{hub: hub, logger: logger}
}

// ServeHTTP handles GET /rescan as a server-sent event stream.
func (h *RescanHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, signals := h.hub.Subscribe()
	defer h.hub.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, "event: rescan\ndata: {}\n\n"); err != nil {
				h.logger.Debug("rescan stream write failed", "subscriber", id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
