package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type gradeRepo interface {
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	BulkEncode(ctx context.Context, grades []models.Grade) error
	Approve(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]models.PendingGradeDetail, error)
	FetchByEnrollmentSubjects(ctx context.Context, enrollmentSubjectIDs []string) (map[string]models.Grade, error)
}

type enrollmentSubjectReader interface {
	FindSubjectsByIDs(ctx context.Context, ids []string) (map[string]models.EnrollmentSubject, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListSubjects(ctx context.Context, enrollmentID string) ([]models.EnrollmentSubjectDetail, error)
}

type sectionOwnershipReader interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Section, error)
}

type subjectTypeReader interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error)
}

type gradeStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// EncodeGradeItem is a single grade within an encode batch.
type EncodeGradeItem struct {
	EnrollmentSubjectID string  `json:"enrollment_subject_id" validate:"required"`
	Value               string  `json:"value" validate:"required"`
	Remarks             *string `json:"remarks,omitempty"`
}

// EncodeGradesRequest is the professor's batch submission for one section.
// The batch is all-or-nothing: one invalid row rejects every row.
type EncodeGradesRequest struct {
	Grades []EncodeGradeItem `json:"grades" validate:"required,min=1,dive"`
}

// GradedSubjectView is one subject row in the student grade view.
type GradedSubjectView struct {
	Subject     models.EnrollmentSubjectDetail `json:"subject"`
	GradeToken  *string                        `json:"grade,omitempty"`
	Approved    bool                           `json:"approved"`
	DateEncoded *time.Time                     `json:"date_encoded,omitempty"`
}

// TermGradesView groups graded subjects under a term.
type TermGradesView struct {
	TermID     string              `json:"term_id"`
	SchoolYear string              `json:"school_year"`
	Semester   models.Semester     `json:"semester"`
	Subjects   []GradedSubjectView `json:"subjects"`
}

// StudentGradesView is the student transcript with overall GPA. GPA is nil
// until at least one approved numeric grade exists.
type StudentGradesView struct {
	Enrollments []TermGradesView `json:"enrollments"`
	GPA         *float64         `json:"gpa"`
}

// GradeService orchestrates grade encoding, approval and transcript views.
type GradeService struct {
	grades      gradeRepo
	enrollments enrollmentSubjectReader
	sections    sectionOwnershipReader
	subjects    subjectTypeReader
	students    gradeStudentReader
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepo, enrollments enrollmentSubjectReader, sections sectionOwnershipReader, subjects subjectTypeReader, students gradeStudentReader, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:      grades,
		enrollments: enrollments,
		sections:    sections,
		subjects:    subjects,
		students:    students,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EncodeBatch validates and persists a professor's grade batch atomically.
// Every encoded grade lands unapproved, with dateEncoded refreshed and the
// repeat-eligibility date set for 5.0/INC or cleared otherwise.
func (s *GradeService) EncodeBatch(ctx context.Context, professorID string, req EncodeGradesRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid encode payload")
	}

	values := make([]models.GradeValue, len(req.Grades))
	ids := make([]string, 0, len(req.Grades))
	for i, item := range req.Grades {
		value, ok := models.ParseGradeToken(item.Value)
		if !ok {
			return 0, appErrors.Clone(appErrors.ErrInvalidGrade, fmt.Sprintf("unrecognized grade token %q", item.Value))
		}
		values[i] = value
		ids = append(ids, item.EnrollmentSubjectID)
	}

	enrollmentSubjects, err := s.enrollments.FindSubjectsByIDs(ctx, ids)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment subjects")
	}
	for _, id := range ids {
		if _, ok := enrollmentSubjects[id]; !ok {
			return 0, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("enrollment subject %s not found", id))
		}
	}

	sectionIDs := make([]string, 0, len(enrollmentSubjects))
	subjectIDs := make([]string, 0, len(enrollmentSubjects))
	for _, es := range enrollmentSubjects {
		sectionIDs = append(sectionIDs, es.SectionID)
		subjectIDs = append(subjectIDs, es.SubjectID)
	}
	sections, err := s.sections.FindByIDs(ctx, sectionIDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	for _, es := range enrollmentSubjects {
		section, ok := sections[es.SectionID]
		if !ok || section.ProfessorID != professorID {
			return 0, appErrors.Clone(appErrors.ErrForbidden, "professor is not assigned to this section")
		}
	}

	subjects, err := s.subjects.FindByIDs(ctx, subjectIDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	encodedAt := s.now()
	grades := make([]models.Grade, 0, len(req.Grades))
	for i, item := range req.Grades {
		es := enrollmentSubjects[item.EnrollmentSubjectID]
		grade := models.Grade{
			EnrollmentSubjectID: item.EnrollmentSubjectID,
			Value:               values[i],
			Remarks:             item.Remarks,
			EncodedBy:           professorID,
			DateEncoded:         encodedAt,
			Approved:            false,
		}
		if values[i].RequiresRepeatWindow() {
			subjectType := subjects[es.SubjectID].SubjectType
			eligible := models.RepeatEligibilityDate(subjectType, encodedAt)
			grade.RepeatEligibleDate = &eligible
		}
		grades = append(grades, grade)
	}

	if err := s.grades.BulkEncode(ctx, grades); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode grades")
	}
	s.logger.Info("grades encoded",
		zap.String("professor_id", professorID),
		zap.Int("count", len(grades)),
	)
	return len(grades), nil
}

// Approve marks a pending grade approved. Approving an already-approved grade
// is a no-op, not an error.
func (s *GradeService) Approve(ctx context.Context, gradeID string) (*models.Grade, error) {
	grade, err := s.grades.FindByID(ctx, gradeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	if grade.Approved {
		return grade, nil
	}
	if err := s.grades.Approve(ctx, gradeID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve grade")
	}
	grade.Approved = true
	return grade, nil
}

// ListPending returns the registrar's approval queue.
func (s *GradeService) ListPending(ctx context.Context) ([]models.PendingGradeDetail, error) {
	pending, err := s.grades.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending grades")
	}
	return pending, nil
}

// StudentGrades assembles the per-term transcript view with the overall GPA.
// Only approved numeric grades count toward the GPA.
func (s *GradeService) StudentGrades(ctx context.Context, studentID string) (*StudentGradesView, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	view := &StudentGradesView{Enrollments: make([]TermGradesView, 0, len(enrollments))}
	var gpaValues []models.GradeValue
	for _, enrollment := range enrollments {
		subjects, err := s.enrollments.ListSubjects(ctx, enrollment.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment subjects")
		}
		subjectIDs := make([]string, len(subjects))
		for i, subject := range subjects {
			subjectIDs[i] = subject.ID
		}
		grades, err := s.grades.FetchByEnrollmentSubjects(ctx, subjectIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grades")
		}

		termView := TermGradesView{
			TermID:     enrollment.TermID,
			SchoolYear: enrollment.SchoolYear,
			Semester:   enrollment.Semester,
			Subjects:   make([]GradedSubjectView, 0, len(subjects)),
		}
		for _, subject := range subjects {
			row := GradedSubjectView{Subject: subject}
			if grade, ok := grades[subject.ID]; ok {
				if token, valid := grade.Value.Display(); valid {
					display := token
					row.GradeToken = &display
				}
				row.Approved = grade.Approved
				encoded := grade.DateEncoded
				row.DateEncoded = &encoded
				if grade.Approved {
					gpaValues = append(gpaValues, grade.Value)
				}
			}
			termView.Subjects = append(termView.Subjects, row)
		}
		view.Enrollments = append(view.Enrollments, termView)
	}

	view.GPA = models.ComputeGPA(gpaValues)
	return view, nil
}
