package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"studentapi/internal/database"
	"studentapi/internal/model"
)

// StudentStore is the persistence the registry runs on.
type StudentStore interface {
	FindByStudentID(ctx context.Context, studentID string) (*model.Student, error)
	FindByID(ctx context.Context, id int64) (*model.Student, error)
	Insert(ctx context.Context, studentID, studentName, course string) (int64, error)
	List(ctx context.Context) ([]model.Student, error)
}

type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// CreateResult is the non-error result of CreateStudent. A Conflict carries
// the record that was already stored, unchanged.
type CreateResult struct {
	Outcome Outcome
	Student model.Student
}

// CreateStudentRequest carries the three caller supplied fields.
type CreateStudentRequest struct {
	StudentID   string `json:"studentID" validate:"required"`
	StudentName string `json:"studentName" validate:"required"`
	Course      string `json:"course" validate:"required"`
}

// ValidationError lists, by JSON name, the required fields that were empty
// or absent. Its message is the same whichever fields are missing.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "Missing required fields: studentID, studentName, course"
}

type StudentService struct {
	store    StudentStore
	validate *validator.Validate
	log      zerolog.Logger
}

func NewStudentService(store StudentStore, log zerolog.Logger) *StudentService {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return &StudentService{
		store:    store,
		validate: v,
		log:      log.With().Str("component", "student_service").Logger(),
	}
}

// CreateStudent stores a new student unless one with the same studentID
// exists, in which case the stored record is returned as a conflict.
func (s *StudentService) CreateStudent(ctx context.Context, studentID, studentName, course string) (*CreateResult, error) {
	in := CreateStudentRequest{StudentID: studentID, StudentName: studentName, Course: course}
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	existing, err := s.store.FindByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &CreateResult{Outcome: OutcomeConflict, Student: *existing}, nil
	}

	id, err := s.store.Insert(ctx, studentID, studentName, course)
	if err != nil {
		if database.IsDuplicateKey(err) {
			// Lost a race with a concurrent create for the same studentID.
			return s.conflictAfterRace(ctx, studentID, err)
		}
		return nil, err
	}

	created, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("student id %d not found after insert", id)
	}

	s.log.Info().Str("student_id", studentID).Int64("id", id).Msg("student created")
	return &CreateResult{Outcome: OutcomeCreated, Student: *created}, nil
}

func (s *StudentService) conflictAfterRace(ctx context.Context, studentID string, insertErr error) (*CreateResult, error) {
	existing, err := s.store.FindByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, insertErr
	}
	s.log.Warn().Str("student_id", studentID).Msg("duplicate insert resolved as conflict")
	return &CreateResult{Outcome: OutcomeConflict, Student: *existing}, nil
}

// ListStudents returns every stored student. An empty table yields an empty,
// non-nil slice.
func (s *StudentService) ListStudents(ctx context.Context) ([]model.Student, error) {
	students, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, nil
}

// Validate checks that every field of in is present.
func (s *StudentService) Validate(in CreateStudentRequest) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, fe.Field())
	}
	return verr
}
