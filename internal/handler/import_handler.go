package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"studentapi/internal/service"
)

const (
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20
)

// Importer runs CSV imports and reports their progress.
type Importer interface {
	StartImport(fileName string) error
	RunImport(ctx context.Context, fileName string, r io.Reader) error
	GetFileProgress(fileName string) *service.ProgressInfo
	GetAllFileProgress() []*service.ProgressInfo
	RegisterProgressListener(ch chan *service.ProgressInfo)
	UnregisterProgressListener(ch chan *service.ProgressInfo)
}

type ImportHandler struct {
	importer       Importer
	log            zerolog.Logger
	maxUploadBytes int64
}

func NewImportHandler(importer Importer, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		importer:       importer,
		log:            log.With().Str("component", "import_handler").Logger(),
		maxUploadBytes: defaultMaxUploadBytes,
	}
}

type importResponse struct {
	Message  string   `json:"message"`
	Files    []string `json:"files"`
	Rejected []string `json:"rejected,omitempty"`
}

// ImportCSV handles POST /students/import. Every uploaded file is read into
// memory and imported in the background. A file whose name is still being
// imported is rejected; the request fails with 409 when every file is.
func (h *ImportHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		jsonError(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		jsonError(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	var wg sync.WaitGroup
	fileNames := make([]string, 0, len(headers))
	var rejected []string

	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		data, err := readUpload(fh)
		if err != nil {
			h.log.Error().Err(err).Str("file", name).Msg("error reading uploaded file")
			continue
		}
		if err := h.importer.StartImport(name); err != nil {
			h.log.Warn().Err(err).Str("file", name).Msg("upload rejected")
			rejected = append(rejected, name)
			continue
		}
		fileNames = append(fileNames, name)

		wg.Add(1)
		go func(name string, data []byte) {
			defer wg.Done()
			if err := h.importer.RunImport(ctx, name, bytes.NewReader(data)); err != nil {
				h.log.Error().Err(err).Str("file", name).Msg("error processing file")
			}
		}(name, data)
	}

	go func() {
		wg.Wait()
		h.log.Info().Strs("files", fileNames).Msg("all files processed")
	}()

	if len(fileNames) == 0 && len(rejected) > 0 {
		writeJSON(w, http.StatusConflict, importResponse{
			Message:  "Files are already being imported",
			Files:    fileNames,
			Rejected: rejected,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, importResponse{
		Message:  "Files uploaded successfully and processing started",
		Files:    fileNames,
		Rejected: rejected,
	})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
