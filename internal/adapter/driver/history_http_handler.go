package driver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/umdl/umd-host/internal/history"
	"github.com/umdl/umd-host/internal/port/driven"
)

const defaultHistoryLimit = 50

// HistoryHTTPHandler serves the download journal.
type HistoryHTTPHandler struct {
	repo driven.HistoryRepository
}

// NewHistoryHTTPHandler creates a new HTTP handler for download history.
func NewHistoryHTTPHandler(repo driven.HistoryRepository) *HistoryHTTPHandler {
	return &HistoryHTTPHandler{repo: repo}
}

// historyResponse represents a download record in JSON format.
type historyResponse struct {
	ResourceID string `json:"resource_id"`
	URL        string `json:"url"`
	Filename   string `json:"filename"`
	Completed  bool   `json:"completed"`
	Error      string `json:"error,omitempty"`
	FinishedAt string `json:"finished_at"`
}

// ServeHTTP handles GET /history with an optional ?limit= parameter.
func (h *HistoryHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.repo.FindRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	out := make([]historyResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toHistoryResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func toHistoryResponse(rec history.Record) historyResponse {
	return historyResponse{
		ResourceID: rec.ResourceID(),
		URL:        rec.URL(),
		Filename:   rec.Filename(),
		Completed:  rec.Completed(),
		Error:      rec.ErrorMessage(),
		FinishedAt: rec.FinishedAt().Format(time.RFC3339),
	}
}
