package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	"github.com/opencampus-ph/portal-api/internal/repository"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndTerm(ctx context.Context, studentID, termID string) (*models.Enrollment, error)
	ListSubjects(ctx context.Context, enrollmentID string) ([]models.EnrollmentSubjectDetail, error)
	CreateWithSubjects(ctx context.Context, studentID, termID string, sections []models.Section, unitsBySubject map[string]int) (*models.Enrollment, error)
}

type enrollmentSectionReader interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Section, error)
	OccupancyBySection(ctx context.Context, sectionIDs []string, termID string) (map[string]int, error)
}

type enrollmentSubjectCatalog interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error)
}

type enrollmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type enrollmentTermReader interface {
	FindActive(ctx context.Context) (*models.Term, error)
}

// EnrollRequest registers a student into a batch of sections for the active term.
type EnrollRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	SectionIDs []string `json:"section_ids" validate:"required,min=1,dive,required"`
}

// EnrollmentService orchestrates the enroll workflow with capacity control.
type EnrollmentService struct {
	repo      enrollmentRepository
	sections  enrollmentSectionReader
	subjects  enrollmentSubjectCatalog
	students  enrollmentStudentReader
	terms     enrollmentTermReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, sections enrollmentSectionReader, subjects enrollmentSubjectCatalog, students enrollmentStudentReader, terms enrollmentTermReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, sections: sections, subjects: subjects, students: students, terms: terms, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Subjects returns the subject lines of one enrollment.
func (s *EnrollmentService) Subjects(ctx context.Context, enrollmentID string) ([]models.EnrollmentSubjectDetail, error) {
	if _, err := s.repo.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	subjects, err := s.repo.ListSubjects(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment subjects")
	}
	return subjects, nil
}

// Enroll registers the student into every requested section or none of them.
// Capacity is checked against live occupancy up front for a fast failure that
// names the offending section, then re-checked under row locks inside the
// insert transaction.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enroll payload")
	}
	seen := make(map[string]struct{}, len(req.SectionIDs))
	for _, id := range req.SectionIDs {
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate section: %s", id))
		}
		seen[id] = struct{}{}
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student inactive")
	}

	term, err := s.terms.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoActiveTerm, "no active academic term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active term")
	}

	sections, err := s.sections.FindByIDs(ctx, req.SectionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	var missing []string
	ordered := make([]models.Section, 0, len(req.SectionIDs))
	for _, id := range req.SectionIDs {
		section, ok := sections[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		ordered = append(ordered, section)
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown sections: %s", strings.Join(missing, ", ")))
	}

	occupancy, err := s.sections.OccupancyBySection(ctx, req.SectionIDs, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute occupancy")
	}
	for _, section := range ordered {
		if occupancy[section.ID] >= section.MaxSlots {
			return nil, appErrors.Clone(appErrors.ErrSectionFull, fmt.Sprintf("section %s has no available slots", section.Code))
		}
	}

	subjectIDs := make([]string, len(ordered))
	for i, section := range ordered {
		subjectIDs[i] = section.SubjectID
	}
	subjects, err := s.subjects.FindByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	unitsBySubject := make(map[string]int, len(subjects))
	for id, subject := range subjects {
		unitsBySubject[id] = subject.Units
	}

	enrollment, err := s.repo.CreateWithSubjects(ctx, req.StudentID, term.ID, ordered, unitsBySubject)
	if err != nil {
		var full *repository.SectionOverCapacityError
		if errors.As(err, &full) {
			code := full.SectionID
			if section, ok := sections[full.SectionID]; ok {
				code = section.Code
			}
			return nil, appErrors.Clone(appErrors.ErrSectionFull, fmt.Sprintf("section %s has no available slots", code))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", req.StudentID),
		zap.String("term_id", term.ID),
		zap.Int("sections", len(ordered)),
	)
	return enrollment, nil
}
