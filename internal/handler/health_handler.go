package handler

import (
	"net/http"
	"time"

	"studentapi/internal/initializer"
)

// timestampLayout is ISO-8601 with milliseconds, always in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DatabaseStatus reports how far store initialization has got.
type DatabaseStatus interface {
	State() initializer.State
}

type HealthHandler struct {
	status DatabaseStatus
	now    func() time.Time
}

func NewHealthHandler(status DatabaseStatus) *HealthHandler {
	return &HealthHandler{status: status, now: time.Now}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

// Health always answers 200 while the process is serving; the database
// field tells callers whether data requests can succeed yet.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(timestampLayout),
		Database:  h.status.State().String(),
	})
}
