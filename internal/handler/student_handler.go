package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"studentapi/internal/model"
	"studentapi/internal/service"
)

const maxStudentBodyBytes = 1 << 20

// StudentRegistry is the business layer behind the student routes.
type StudentRegistry interface {
	CreateStudent(ctx context.Context, studentID, studentName, course string) (*service.CreateResult, error)
	ListStudents(ctx context.Context) ([]model.Student, error)
}

type StudentHandler struct {
	registry StudentRegistry
	log      zerolog.Logger
}

func NewStudentHandler(registry StudentRegistry, log zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		registry: registry,
		log:      log.With().Str("component", "student_handler").Logger(),
	}
}

type studentResponse struct {
	Message string            `json:"message"`
	Student model.StudentView `json:"student"`
}

// CreateStudent handles POST /student.
func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateStudentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStudentBodyBytes)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.registry.CreateStudent(r.Context(), req.StudentID, req.StudentName, req.Course)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.log.Debug().Strs("missing_fields", verr.Fields).Msg("rejected student")
			jsonError(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("student_id", req.StudentID).Msg("error creating student")
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if result.Outcome == service.OutcomeConflict {
		writeJSON(w, http.StatusConflict, studentResponse{
			Message: "Student already exists",
			Student: result.Student.View(),
		})
		return
	}
	writeJSON(w, http.StatusCreated, studentResponse{
		Message: "Student created successfully",
		Student: result.Student.View(),
	})
}

// ListStudents handles GET /students.
func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.registry.ListStudents(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("error fetching students")
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, students)
}
