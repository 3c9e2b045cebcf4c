// Package router wires handlers to routes.
package router

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"studentapi/internal/handler"
	"studentapi/internal/middleware"
)

type Handlers struct {
	Student  *handler.StudentHandler
	Health   *handler.HealthHandler
	Import   *handler.ImportHandler
	Progress *handler.ProgressHandler
}

// New returns the service's HTTP handler with CORS applied for origins.
func New(h Handlers, origins []string, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, middleware.Logger(log))

	r.HandleFunc("/student", h.Student.CreateStudent).Methods(http.MethodPost)
	r.HandleFunc("/students", h.Student.ListStudents).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)

	r.HandleFunc("/students/import", h.Import.ImportCSV).Methods(http.MethodPost)
	r.HandleFunc("/students/import/progress", h.Progress.GetAllProgress).Methods(http.MethodGet)
	r.HandleFunc("/students/import/progress/file", h.Progress.GetFileProgress).Methods(http.MethodGet)
	r.HandleFunc("/students/import/events", h.Progress.SSEProgress).Methods(http.MethodGet)

	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
}
