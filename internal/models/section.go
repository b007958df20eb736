package models

import "time"

// SectionStatus represents whether a section accepts enrollees.
type SectionStatus string

const (
	SectionStatusOpen   SectionStatus = "OPEN"
	SectionStatusClosed SectionStatus = "CLOSED"
)

// Section is one scheduled offering of a subject handled by a professor.
// Semester and AcademicYear are denormalized copies of the term it runs in.
// Live occupancy is always derived from enrollment_subjects, never stored.
type Section struct {
	ID           string        `db:"id" json:"id"`
	Code         string        `db:"code" json:"code"`
	SubjectID    string        `db:"subject_id" json:"subject_id"`
	ProfessorID  string        `db:"professor_id" json:"professor_id"`
	MaxSlots     int           `db:"max_slots" json:"max_slots"`
	Semester     Semester      `db:"semester" json:"semester"`
	AcademicYear string        `db:"academic_year" json:"academic_year"`
	Status       SectionStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// SectionDetail enriches a section with subject and professor context.
type SectionDetail struct {
	Section
	SubjectCode   string `db:"subject_code" json:"subject_code"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
	ProfessorName string `db:"professor_name" json:"professor_name"`
}

// SectionAvailability is a section annotated with remaining capacity.
type SectionAvailability struct {
	Section
	AvailableSlots int `json:"available_slots"`
}

// SectionFilter provides filters for listing sections.
type SectionFilter struct {
	SubjectID    string
	ProfessorID  string
	Semester     Semester
	AcademicYear string
	Status       SectionStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
