package driver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/umdl/umd-host/internal/application"
	"github.com/umdl/umd-host/internal/media"
)

// MessageHTTPHandler is the extension-facing control surface. It
// receives detection events and user commands as typed messages and
// routes them to the registry and download services.
type MessageHTTPHandler struct {
	registry  *application.RegistryService
	downloads *application.DownloadService
	rescans   *application.RescanHub
	logger    *slog.Logger
}

// NewMessageHTTPHandler creates the message dispatch handler.
func NewMessageHTTPHandler(
	registry *application.RegistryService,
	downloads *application.DownloadService,
	rescans *application.RescanHub,
	logger *slog.Logger,
) *MessageHTTPHandler {
	return &MessageHTTPHandler{
		registry:  registry,
		downloads: downloads,
		rescans:   rescans,
		logger:    logger,
	}
}

// resourceResponse represents one detected resource in JSON format.
type resourceResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	SourceContext string `json:"source_context"`
	Channel       string `json:"channel"`
	Kind          string `json:"kind"`
	SizeBytes     *int64 `json:"size_bytes,omitempty"`
	SizeDisplay   string `json:"size_display"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	DetectedAt    string `json:"detected_at"`
}

func toResourceResponse(snap media.Snapshot) resourceResponse {
	resp := resourceResponse{
		ID:            snap.ID,
		URL:           snap.URL,
		SourceContext: snap.SourceContext,
		Channel:       string(snap.Channel),
		Kind:          string(snap.Kind),
		SizeDisplay:   snap.Size.String(),
		Status:        string(snap.Status),
		Error:         snap.ErrorMessage,
		DetectedAt:    snap.DetectedAt.Format(time.RFC3339),
	}
	if snap.Size.Known() {
		n := snap.Size.Bytes()
		resp.SizeBytes = &n
	}
	return resp
}

// ServeHTTP handles POST /messages.
func (h *MessageHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := DecodeRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.dispatch(w, req)
}

// dispatch routes a decoded request to its service. The switch covers
// every Request variant; DecodeRequest guarantees no other type can
// arrive here.
func (h *MessageHTTPHandler) dispatch(w http.ResponseWriter, req Request) {
	switch msg := req.(type) {
	case MediaFound:
		h.handleMediaFound(w, msg)
	case ListMedia:
		writeJSON(w, http.StatusOK, h.listResponse())
	case MediaCount:
		writeJSON(w, http.StatusOK, map[string]int{"count": h.registry.Count()})
	case ClearAll:
		writeJSON(w, http.StatusOK, map[string]int{"cleared": h.registry.ClearAll()})
	case ClearTab:
		removed := h.registry.ClearBySourceContext(msg.SourceContext)
		writeJSON(w, http.StatusOK, map[string]int{"cleared": removed})
	case DownloadMedia:
		h.handleDownload(w, msg)
	case Rescan:
		writeJSON(w, http.StatusOK, map[string]int{"notified": h.rescans.Broadcast()})
	}
}

func (h *MessageHTTPHandler) handleMediaFound(w http.ResponseWriter, msg MediaFound) {
	added := h.registry.Insert(msg.URL, msg.DocumentURL, msg.SourceContext, msg.Channel)
	if added && (msg.ContentLength >= 0 || msg.ContentType != "") {
		h.registry.ApplyResponseMetadata(msg.URL, msg.ContentLength, msg.ContentType)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (h *MessageHTTPHandler) handleDownload(w http.ResponseWriter, msg DownloadMedia) {
	// Validate the transition synchronously so the caller learns about
	// unknown or already-downloading resources; the transfer itself
	// outlives the request.
	snap, err := h.registry.Get(msg.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if snap.Status != media.StatusDetected {
		writeError(w, http.StatusConflict, "media is not in a downloadable state")
		return
	}

	go func() {
		opts := application.DownloadOptions{Filename: msg.Filename, Concurrency: msg.Concurrency}
		if err := h.downloads.Download(context.Background(), msg.ID, opts); err != nil {
			if errors.Is(err, media.ErrResourceNotFound) || errors.Is(err, media.ErrInvalidTransition) {
				h.logger.Debug("download request lost its resource", "id", msg.ID, "error", err)
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": msg.ID, "status": string(media.StatusDownloading)})
}

func (h *MessageHTTPHandler) listResponse() []resourceResponse {
	snaps := h.registry.List()
	out := make([]resourceResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toResourceResponse(snap))
	}
	return out
}
