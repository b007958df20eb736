package models

import (
	"math"
	"time"
)

// GradeValue is the storage representation of a grade. Numeric tokens are
// encoded identifier-safe (a column value cannot start with a digit) and map
// losslessly to their display form, e.g. G_1_75 <-> "1.75".
type GradeValue string

const (
	Grade100 GradeValue = "G_1_0"
	Grade125 GradeValue = "G_1_25"
	Grade150 GradeValue = "G_1_5"
	Grade175 GradeValue = "G_1_75"
	Grade200 GradeValue = "G_2_0"
	Grade225 GradeValue = "G_2_25"
	Grade250 GradeValue = "G_2_5"
	Grade275 GradeValue = "G_2_75"
	Grade300 GradeValue = "G_3_0"
	Grade400 GradeValue = "G_4_0"
	Grade500 GradeValue = "G_5_0"
	GradeINC GradeValue = "INC"
	GradeDRP GradeValue = "DRP"
)

// gradeNumerics holds the numeric value of every numeric grade token.
// INC and DRP are deliberately absent; they never participate in a GPA.
var gradeNumerics = map[GradeValue]float64{
	Grade100: 1.0,
	Grade125: 1.25,
	Grade150: 1.5,
	Grade175: 1.75,
	Grade200: 2.0,
	Grade225: 2.25,
	Grade250: 2.5,
	Grade275: 2.75,
	Grade300: 3.0,
	Grade400: 4.0,
	Grade500: 5.0,
}

var gradeDisplays = map[GradeValue]string{
	Grade100: "1.0",
	Grade125: "1.25",
	Grade150: "1.5",
	Grade175: "1.75",
	Grade200: "2.0",
	Grade225: "2.25",
	Grade250: "2.5",
	Grade275: "2.75",
	Grade300: "3.0",
	Grade400: "4.0",
	Grade500: "5.0",
	GradeINC: "INC",
	GradeDRP: "DRP",
}

var gradeTokens = func() map[string]GradeValue {
	m := make(map[string]GradeValue, len(gradeDisplays))
	for value, token := range gradeDisplays {
		m[token] = value
	}
	return m
}()

// ParseGradeToken converts a display token into its storage value.
// It returns false for any token outside the closed grade set.
func ParseGradeToken(token string) (GradeValue, bool) {
	value, ok := gradeTokens[token]
	return value, ok
}

// Display returns the human-readable token for a storage value, or false when
// the storage value is unrecognized.
func (g GradeValue) Display() (string, bool) {
	token, ok := gradeDisplays[g]
	return token, ok
}

// Valid reports whether the storage value belongs to the closed grade set.
func (g GradeValue) Valid() bool {
	_, ok := gradeDisplays[g]
	return ok
}

// Numeric returns the numeric value of the grade. INC and DRP have none.
func (g GradeValue) Numeric() (float64, bool) {
	n, ok := gradeNumerics[g]
	return n, ok
}

// IsPassing reports whether the grade satisfies the subject. Numeric grades
// pass at 3.0 or better; 4.0 is a conditional failure, 5.0 a failure, and
// INC/DRP never pass.
func (g GradeValue) IsPassing() bool {
	n, ok := gradeNumerics[g]
	return ok && n <= 3.0
}

// RequiresRepeatWindow reports whether encoding this grade starts a
// repeat-eligibility wait. Only the failing numeric grade and INC do;
// DRP counts as "not attempted" and imposes no window.
func (g GradeValue) RequiresRepeatWindow() bool {
	return g == Grade500 || g == GradeINC
}

// ComputeGPA averages the numeric grades in values rounded to two decimals.
// INC and DRP are skipped entirely. It returns nil, not zero, when no numeric
// grade exists: the GPA is undefined until a numeric grade is on record.
func ComputeGPA(values []GradeValue) *float64 {
	sum := 0.0
	count := 0
	for _, value := range values {
		n, ok := value.Numeric()
		if !ok {
			continue
		}
		sum += n
		count++
	}
	if count == 0 {
		return nil
	}
	gpa := math.Round(sum/float64(count)*100) / 100
	return &gpa
}

// RepeatEligibilityDate computes the earliest date a student may retake a
// subject after a failing or incomplete grade: six months for majors, twelve
// for minors or any unspecified type.
func RepeatEligibilityDate(subjectType SubjectType, dateEncoded time.Time) time.Time {
	if subjectType == SubjectTypeMajor {
		return dateEncoded.AddDate(0, 6, 0)
	}
	return dateEncoded.AddDate(0, 12, 0)
}

// Grade is the single grade record attached to one enrollment subject.
// Re-encoding always resets Approved to false; only the registrar approval
// action flips it back.
type Grade struct {
	ID                  string     `db:"id" json:"id"`
	EnrollmentSubjectID string     `db:"enrollment_subject_id" json:"enrollment_subject_id"`
	Value               GradeValue `db:"value" json:"value"`
	Remarks             *string    `db:"remarks" json:"remarks,omitempty"`
	EncodedBy           string     `db:"encoded_by" json:"encoded_by"`
	DateEncoded         time.Time  `db:"date_encoded" json:"date_encoded"`
	Approved            bool       `db:"approved" json:"approved"`
	RepeatEligibleDate  *time.Time `db:"repeat_eligible_date" json:"repeat_eligible_date,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// PendingGradeDetail is a pending grade enriched for the registrar queue.
type PendingGradeDetail struct {
	Grade
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNumber string `db:"student_number" json:"student_number"`
	SubjectCode   string `db:"subject_code" json:"subject_code"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
	SectionCode   string `db:"section_code" json:"section_code"`
	ProfessorName string `db:"professor_name" json:"professor_name"`
}

// SubjectGradeHistory is one attempt of one subject within a student's
// transcript, used to resolve the latest grade per subject.
type SubjectGradeHistory struct {
	SubjectID          string     `db:"subject_id" json:"subject_id"`
	Value              GradeValue `db:"value" json:"value"`
	DateEncoded        time.Time  `db:"date_encoded" json:"date_encoded"`
	Approved           bool       `db:"approved" json:"approved"`
	RepeatEligibleDate *time.Time `db:"repeat_eligible_date" json:"repeat_eligible_date,omitempty"`
}
