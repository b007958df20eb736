package models

import "time"

// SubjectType distinguishes majors from minors; it drives the
// repeat-eligibility window after a failed or incomplete grade.
type SubjectType string

const (
	SubjectTypeMajor SubjectType = "MAJOR"
	SubjectTypeMinor SubjectType = "MINOR"
)

// Subject represents a catalog subject.
type Subject struct {
	ID             string      `db:"id" json:"id"`
	Code           string      `db:"code" json:"code"`
	Name           string      `db:"name" json:"name"`
	Units          int         `db:"units" json:"units"`
	SubjectType    SubjectType `db:"subject_type" json:"subject_type"`
	PrerequisiteID *string     `db:"prerequisite_id" json:"prerequisite_id,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Type      SubjectType
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
