package models

import "time"

// Program is a degree program owning a curriculum of subjects.
type Program struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramSubject maps a subject into a program's curriculum. A nil
// RecommendedYear means the subject is recommended regardless of year level.
type ProgramSubject struct {
	ID                  string    `db:"id" json:"id"`
	ProgramID           string    `db:"program_id" json:"program_id"`
	SubjectID           string    `db:"subject_id" json:"subject_id"`
	RecommendedYear     *int      `db:"recommended_year" json:"recommended_year,omitempty"`
	RecommendedSemester *Semester `db:"recommended_semester" json:"recommended_semester,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// ProgramSubjectDetail joins the mapped subject onto the mapping row.
type ProgramSubjectDetail struct {
	ProgramSubject
	SubjectCode    string      `db:"subject_code" json:"subject_code"`
	SubjectName    string      `db:"subject_name" json:"subject_name"`
	Units          int         `db:"units" json:"units"`
	SubjectType    SubjectType `db:"subject_type" json:"subject_type"`
	PrerequisiteID *string     `db:"prerequisite_id" json:"prerequisite_id,omitempty"`
}
