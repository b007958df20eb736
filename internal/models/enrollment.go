package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusConfirmed EnrollmentStatus = "CONFIRMED"
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
)

// Enrollment captures a student's registration for one academic term.
// Invariant: at most one enrollment per (student_id, term_id).
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	TermID    string           `db:"term_id" json:"term_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentSubject is one subject taken within an enrollment, anchored to a
// section. Units are snapshotted at enroll time so later subject edits do not
// rewrite historical transcripts.
type EnrollmentSubject struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	SectionID    string    `db:"section_id" json:"section_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	Units        int       `db:"units" json:"units"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with student and term info.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string   `db:"student_name" json:"student_name"`
	StudentNumber string   `db:"student_number" json:"student_number"`
	SchoolYear    string   `db:"school_year" json:"school_year"`
	Semester      Semester `db:"semester" json:"semester"`
}

// EnrollmentSubjectDetail joins section and subject context onto a taken subject.
type EnrollmentSubjectDetail struct {
	EnrollmentSubject
	SubjectCode string `db:"subject_code" json:"subject_code"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	SectionCode string `db:"section_code" json:"section_code"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	TermID    string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
