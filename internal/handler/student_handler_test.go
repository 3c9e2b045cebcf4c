package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studentapi/internal/database/databasetest"
	"studentapi/internal/model"
	"studentapi/internal/repository"
	"studentapi/internal/service"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) CreateStudent(ctx context.Context, studentID, studentName, course string) (*service.CreateResult, error) {
	args := m.Called(ctx, studentID, studentName, course)
	res, _ := args.Get(0).(*service.CreateResult)
	return res, args.Error(1)
}

func (m *mockRegistry) ListStudents(ctx context.Context) ([]model.Student, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]model.Student)
	return s, args.Error(1)
}

func newStudentRouter(registry StudentRegistry) *mux.Router {
	h := NewStudentHandler(registry, zerolog.Nop())
	r := mux.NewRouter()
	r.HandleFunc("/student", h.CreateStudent).Methods(http.MethodPost)
	r.HandleFunc("/students", h.ListStudents).Methods(http.MethodGet)
	return r
}

func newStoreBackedRouter(t *testing.T) *mux.Router {
	repo := repository.NewStudentRepository(databasetest.NewWithSchema(t))
	return newStudentRouter(service.NewStudentService(repo, zerolog.Nop()))
}

func postStudent(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/student", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestCreateStudentCreatedThenConflict(t *testing.T) {
	r := newStoreBackedRouter(t)

	rr := postStudent(t, r, `{"studentID":"S1","studentName":"Ada","course":"CS"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	body := decodeBody(t, rr)
	assert.Equal(t, "Student created successfully", body["message"])
	student := body["student"].(map[string]any)
	assert.Equal(t, "S1", student["studentID"])
	assert.Equal(t, "Ada", student["studentName"])
	assert.Equal(t, "CS", student["course"])
	presentDate, err := time.Parse(time.RFC3339, student["presentDate"].(string))
	require.NoError(t, err)
	assert.False(t, presentDate.IsZero())
	assert.WithinDuration(t, time.Now(), presentDate, time.Minute)

	rr = postStudent(t, r, `{"studentID":"S1","studentName":"Eve","course":"Math"}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	body = decodeBody(t, rr)
	assert.Equal(t, "Student already exists", body["message"])
	student = body["student"].(map[string]any)
	assert.Equal(t, "Ada", student["studentName"])
	assert.Equal(t, "CS", student["course"])
}

func TestCreateStudentBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing name", `{"studentID":"S1","course":"CS"}`, "Missing required fields: studentID, studentName, course"},
		{"empty course", `{"studentID":"S1","studentName":"Ada","course":""}`, "Missing required fields: studentID, studentName, course"},
		{"empty object", `{}`, "Missing required fields: studentID, studentName, course"},
		{"not json", `studentID=S1`, "Invalid request body"},
		{"wrong type", `{"studentID":1,"studentName":"Ada","course":"CS"}`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := new(mockRegistry)
			registry.On("CreateStudent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, &service.ValidationError{Fields: []string{"studentName"}})

			rr := postStudent(t, newStudentRouter(registry), tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantErr, decodeBody(t, rr)["error"])
		})
	}
}

func TestCreateStudentValidationAgainstRealService(t *testing.T) {
	rr := postStudent(t, newStoreBackedRouter(t), `{"studentID":"S1","studentName":"","course":"CS"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing required fields: studentID, studentName, course", decodeBody(t, rr)["error"])
}

func TestCreateStudentLogsMissingFields(t *testing.T) {
	var buf bytes.Buffer
	repo := repository.NewStudentRepository(databasetest.NewWithSchema(t))
	h := NewStudentHandler(service.NewStudentService(repo, zerolog.Nop()), zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodPost, "/student", bytes.NewBufferString(`{"studentID":"S1","course":""}`))
	rr := httptest.NewRecorder()
	h.CreateStudent(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var entry struct {
		Level         string   `json:"level"`
		MissingFields []string `json:"missing_fields"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry.Level)
	assert.Equal(t, []string{"studentName", "course"}, entry.MissingFields)
}

func TestCreateStudentInternalError(t *testing.T) {
	registry := new(mockRegistry)
	registry.On("CreateStudent", mock.Anything, "S1", "Ada", "CS").
		Return(nil, errors.New("dial tcp 10.0.0.1:3306: connection refused"))

	rr := postStudent(t, newStudentRouter(registry), `{"studentID":"S1","studentName":"Ada","course":"CS"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, map[string]any{"error": "Internal server error"}, decodeBody(t, rr))
}

func TestListStudents(t *testing.T) {
	r := newStoreBackedRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/students", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	for _, body := range []string{
		`{"studentID":"S1","studentName":"Ada","course":"CS"}`,
		`{"studentID":"S2","studentName":"Bob","course":"Math"}`,
	} {
		require.Equal(t, http.StatusCreated, postStudent(t, r, body).Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/students", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "S1", rows[0]["student_id"])
	assert.Equal(t, "Ada", rows[0]["student_name"])
	assert.Contains(t, rows[0], "id")
	assert.Contains(t, rows[0], "created_at")
	assert.Equal(t, "S2", rows[1]["student_id"])
}

func TestListStudentsInternalError(t *testing.T) {
	registry := new(mockRegistry)
	registry.On("ListStudents", mock.Anything).Return(nil, errors.New("table missing"))

	rr := httptest.NewRecorder()
	newStudentRouter(registry).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rr)["error"])
}
