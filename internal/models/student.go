package models

import "time"

// Student links a STUDENT-role user to a program and year level.
type Student struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	ProgramID     string    `db:"program_id" json:"program_id"`
	YearLevel     int       `db:"year_level" json:"year_level"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with user and program context.
type StudentDetail struct {
	Student
	FullName    string `db:"full_name" json:"full_name"`
	Email       string `db:"email" json:"email"`
	ProgramCode string `db:"program_code" json:"program_code"`
	ProgramName string `db:"program_name" json:"program_name"`
}

// StudentFilter captures supported filters for listing students.
type StudentFilter struct {
	ProgramID string
	YearLevel int
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
