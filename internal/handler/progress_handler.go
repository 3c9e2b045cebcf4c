package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"studentapi/internal/service"
)

type ProgressHandler struct {
	importer Importer
	log      zerolog.Logger
}

func NewProgressHandler(importer Importer, log zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		importer: importer,
		log:      log.With().Str("component", "progress_handler").Logger(),
	}
}

// GetFileProgress returns the progress of one imported file.
func (h *ProgressHandler) GetFileProgress(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		jsonError(w, "fileName parameter is required", http.StatusBadRequest)
		return
	}

	progress := h.importer.GetFileProgress(filepath.Base(fileName))
	if progress == nil {
		jsonError(w, "File not found or not being processed", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *ProgressHandler) GetAllProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.importer.GetAllFileProgress())
}

// SSEProgress streams progress updates as Server-Sent Events until the
// client goes away.
func (h *ProgressHandler) SSEProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	progressChan := make(chan *service.ProgressInfo, 16)
	defer close(progressChan)

	h.importer.RegisterProgressListener(progressChan)
	defer h.importer.UnregisterProgressListener(progressChan)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case progress := <-progressChan:
			data, err := json.Marshal(progress)
			if err != nil {
				h.log.Error().Err(err).Msg("error marshaling progress")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				h.log.Debug().Err(err).Msg("error writing SSE data")
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			h.log.Debug().Msg("progress client disconnected")
			return
		}
	}
}
