package model

import "time"

// Student is a row of the students table. JSON field names are the column
// names, which is the shape GET /students returns.
type Student struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StudentID   string    `gorm:"column:student_id" json:"student_id"`
	StudentName string    `gorm:"column:student_name" json:"student_name"`
	Course      string    `gorm:"column:course" json:"course"`
	CreatedAt   time.Time `gorm:"column:created_at;<-:false" json:"created_at"`
}

func (Student) TableName() string {
	return "students"
}

// StudentView is the camelCase shape used in create responses.
type StudentView struct {
	StudentID   string    `json:"studentID"`
	StudentName string    `json:"studentName"`
	Course      string    `json:"course"`
	PresentDate time.Time `json:"presentDate"`
}

func (s Student) View() StudentView {
	return StudentView{
		StudentID:   s.StudentID,
		StudentName: s.StudentName,
		Course:      s.Course,
		PresentDate: s.CreatedAt,
	}
}
