package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	OccupancyBySection(ctx context.Context, sectionIDs []string, termID string) (map[string]int, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id string) error
}

type sectionSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type sectionProfessorReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type sectionTermReader interface {
	FindActive(ctx context.Context) (*models.Term, error)
}

// CreateSectionRequest describes a new class section offering.
type CreateSectionRequest struct {
	Code         string          `json:"code" validate:"required"`
	SubjectID    string          `json:"subject_id" validate:"required"`
	ProfessorID  string          `json:"professor_id" validate:"required"`
	MaxSlots     int             `json:"max_slots" validate:"required,min=1,max=500"`
	Semester     models.Semester `json:"semester" validate:"required,oneof=FIRST SECOND SUMMER"`
	AcademicYear string          `json:"academic_year" validate:"required"`
}

// UpdateSectionRequest modifies an existing section.
type UpdateSectionRequest struct {
	Code         string               `json:"code" validate:"required"`
	ProfessorID  string               `json:"professor_id" validate:"required"`
	MaxSlots     int                  `json:"max_slots" validate:"required,min=1,max=500"`
	Semester     models.Semester      `json:"semester" validate:"required,oneof=FIRST SECOND SUMMER"`
	AcademicYear string               `json:"academic_year" validate:"required"`
	Status       models.SectionStatus `json:"status" validate:"required,oneof=OPEN CLOSED"`
}

// SectionService manages class section offerings.
type SectionService struct {
	repo       sectionRepository
	subjects   sectionSubjectReader
	professors sectionProfessorReader
	terms      sectionTermReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(repo sectionRepository, subjects sectionSubjectReader, professors sectionProfessorReader, terms sectionTermReader, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, subjects: subjects, professors: professors, terms: terms, validator: validate, logger: logger}
}

// List returns sections with pagination metadata.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sections, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads a single section.
func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// Availability returns a section with its remaining slots for the active term.
func (s *SectionService) Availability(ctx context.Context, id string) (*models.SectionAvailability, error) {
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	term, err := s.terms.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoActiveTerm, "no active academic term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active term")
	}
	occupancy, err := s.repo.OccupancyBySection(ctx, []string{id}, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute occupancy")
	}
	slots := section.MaxSlots - occupancy[id]
	if slots < 0 {
		slots = 0
	}
	return &models.SectionAvailability{Section: *section, AvailableSlots: slots}, nil
}

// Create registers a new section. The subject must exist and the assigned user
// must hold the PROFESSOR role.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if err := s.checkProfessor(ctx, req.ProfessorID); err != nil {
		return nil, err
	}

	section := &models.Section{
		Code:         req.Code,
		SubjectID:    req.SubjectID,
		ProfessorID:  req.ProfessorID,
		MaxSlots:     req.MaxSlots,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		Status:       models.SectionStatusOpen,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	s.logger.Info("section created", zap.String("section_id", section.ID), zap.String("code", section.Code))
	return section, nil
}

// Update modifies an existing section.
func (s *SectionService) Update(ctx context.Context, id string, req UpdateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkProfessor(ctx, req.ProfessorID); err != nil {
		return nil, err
	}

	section.Code = req.Code
	section.ProfessorID = req.ProfessorID
	section.MaxSlots = req.MaxSlots
	section.Semester = req.Semester
	section.AcademicYear = req.AcademicYear
	section.Status = req.Status
	if err := s.repo.Update(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	return section, nil
}

// Delete removes a section permanently.
func (s *SectionService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	return nil
}

func (s *SectionService) checkProfessor(ctx context.Context, professorID string) error {
	professor, err := s.professors.FindByID(ctx, professorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	if professor.Role != models.RoleProfessor {
		return appErrors.Clone(appErrors.ErrValidation, "assigned user is not a professor")
	}
	return nil
}
