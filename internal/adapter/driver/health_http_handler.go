package driver

import (
	"net/http"

	"github.com/umdl/umd-host/internal/port/driven"
)

// HealthHTTPHandler handles HTTP requests for health checks.
type HealthHTTPHandler struct {
	db driven.HistoryRepository
}

// NewHealthHTTPHandler creates a new HTTP handler for health checks.
func NewHealthHTTPHandler(db driven.HistoryRepository) *HealthHTTPHandler {
	return &HealthHTTPHandler{db: db}
}

// healthResponse represents the JSON response for the health endpoint.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

// ServeHTTP handles GET /health
func (h *HealthHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := healthResponse{Status: "ok", DB: "ok"}
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.DB = err.Error()
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
