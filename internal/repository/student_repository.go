// Package repository holds the SQL the service runs against the store.
package repository

import (
	"context"
	"fmt"

	"studentapi/internal/database"
	"studentapi/internal/model"
)

// Gateway is the subset of *database.Gateway the repository needs.
type Gateway interface {
	Query(ctx context.Context, dest any, query string, args ...any) error
	Create(ctx context.Context, value any, omit ...string) error
}

type StudentRepository struct {
	gw Gateway
}

func NewStudentRepository(gw Gateway) *StudentRepository {
	return &StudentRepository{gw: gw}
}

// FindByStudentID returns the record with the given external id, or nil.
func (r *StudentRepository) FindByStudentID(ctx context.Context, studentID string) (*model.Student, error) {
	var rows []model.Student
	if err := r.gw.Query(ctx, &rows, "SELECT * FROM students WHERE student_id = ?", studentID); err != nil {
		return nil, fmt.Errorf("find student %q: %w", studentID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// FindByID returns the record with the given generated id, or nil.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*model.Student, error) {
	var rows []model.Student
	if err := r.gw.Query(ctx, &rows, "SELECT * FROM students WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("find student id %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Insert stores a new row and returns the id the store generated for it.
// created_at is left to the column default.
func (r *StudentRepository) Insert(ctx context.Context, studentID, studentName, course string) (int64, error) {
	row := &model.Student{
		StudentID:   studentID,
		StudentName: studentName,
		Course:      course,
	}
	if err := r.gw.Create(ctx, row, "created_at"); err != nil {
		return 0, fmt.Errorf("insert student %q: %w", studentID, err)
	}
	return row.ID, nil
}

// List returns every stored row in insertion order.
func (r *StudentRepository) List(ctx context.Context) ([]model.Student, error) {
	rows := make([]model.Student, 0)
	if err := r.gw.Query(ctx, &rows, "SELECT * FROM students ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return rows, nil
}

var _ Gateway = (*database.Gateway)(nil)
