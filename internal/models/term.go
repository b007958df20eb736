package models

import "time"

// Semester enumerates the semesters within a school year.
type Semester string

const (
	SemesterFirst  Semester = "FIRST"
	SemesterSecond Semester = "SECOND"
	SemesterSummer Semester = "SUMMER"
)

// Term models an academic term. At most one term is active at a time;
// the invariant is enforced by the activation transaction, not the schema.
type Term struct {
	ID         string    `db:"id" json:"id"`
	SchoolYear string    `db:"school_year" json:"school_year"`
	Semester   Semester  `db:"semester" json:"semester"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	SchoolYear string
	Semester   Semester
	IsActive   *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
