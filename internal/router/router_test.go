package router_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentapi/internal/config"
	"studentapi/internal/database/databasetest"
	"studentapi/internal/handler"
	"studentapi/internal/initializer"
	"studentapi/internal/repository"
	"studentapi/internal/router"
	"studentapi/internal/service"
)

func newTestRouter(t *testing.T, origins []string) http.Handler {
	gw := databasetest.New(t)
	dbInit := initializer.New(gw, config.InitConfig{Retries: 5}, zerolog.Nop())
	require.NoError(t, dbInit.Run(t.Context()))

	registry := service.NewStudentService(repository.NewStudentRepository(gw), zerolog.Nop())
	importer := service.NewImportService(registry, zerolog.Nop())

	return router.New(router.Handlers{
		Student:  handler.NewStudentHandler(registry, zerolog.Nop()),
		Health:   handler.NewHealthHandler(dbInit),
		Import:   handler.NewImportHandler(importer, zerolog.Nop()),
		Progress: handler.NewProgressHandler(importer, zerolog.Nop()),
	}, origins, zerolog.Nop())
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t, []string{"*"})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"create", http.MethodPost, "/student", `{"studentID":"S1","studentName":"Ada","course":"CS"}`, http.StatusCreated},
		{"create again", http.MethodPost, "/student", `{"studentID":"S1","studentName":"Eve","course":"Math"}`, http.StatusConflict},
		{"list", http.MethodGet, "/students", "", http.StatusOK},
		{"import progress", http.MethodGet, "/students/import/progress", "", http.StatusOK},
		{"file progress without name", http.MethodGet, "/students/import/progress/file", "", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/student", "", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestHealthReportsReady(t *testing.T) {
	r := newTestRouter(t, []string{"*"})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, rr.Body.String(), `"database":"ready"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestCORS(t *testing.T) {
	r := newTestRouter(t, []string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/students", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
