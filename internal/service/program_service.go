package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context) ([]models.Program, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	ListSubjects(ctx context.Context, programID string) ([]models.ProgramSubjectDetail, error)
	AddSubject(ctx context.Context, mapping *models.ProgramSubject) error
	RemoveSubject(ctx context.Context, mappingID string) error
	SubjectMapped(ctx context.Context, programID, subjectID string) (bool, error)
}

type programSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// CreateProgramRequest describes a new degree program.
type CreateProgramRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// UpdateProgramRequest modifies a degree program.
type UpdateProgramRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// AddProgramSubjectRequest maps a subject into a program curriculum.
type AddProgramSubjectRequest struct {
	SubjectID           string           `json:"subject_id" validate:"required"`
	RecommendedYear     *int             `json:"recommended_year,omitempty" validate:"omitempty,min=1,max=6"`
	RecommendedSemester *models.Semester `json:"recommended_semester,omitempty" validate:"omitempty,oneof=FIRST SECOND SUMMER"`
}

// ProgramService manages degree programs and their curricula.
type ProgramService struct {
	repo      programRepository
	subjects  programSubjectReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs ProgramService.
func NewProgramService(repo programRepository, subjects programSubjectReader, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, subjects: subjects, validator: validate, logger: logger}
}

// List returns all programs.
func (s *ProgramService) List(ctx context.Context) ([]models.Program, error) {
	programs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, nil
}

// Get loads a single program.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// Create registers a new program after a code uniqueness check.
func (s *ProgramService) Create(ctx context.Context, req CreateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("program code %s already exists", req.Code))
	}

	program := &models.Program{Code: req.Code, Name: req.Name}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	s.logger.Info("program created", zap.String("program_id", program.ID), zap.String("code", program.Code))
	return program, nil
}

// Update modifies a program.
func (s *ProgramService) Update(ctx context.Context, id string, req UpdateProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	program, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check program code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("program code %s already exists", req.Code))
	}

	program.Code = req.Code
	program.Name = req.Name
	if err := s.repo.Update(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	return program, nil
}

// Curriculum returns the program's subject mappings in insertion order.
func (s *ProgramService) Curriculum(ctx context.Context, programID string) ([]models.ProgramSubjectDetail, error) {
	if _, err := s.Get(ctx, programID); err != nil {
		return nil, err
	}
	mappings, err := s.repo.ListSubjects(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list program subjects")
	}
	return mappings, nil
}

// AddSubject maps a subject into the curriculum.
func (s *ProgramService) AddSubject(ctx context.Context, programID string, req AddProgramSubjectRequest) (*models.ProgramSubject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid curriculum payload")
	}
	if _, err := s.Get(ctx, programID); err != nil {
		return nil, err
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	mapped, err := s.repo.SubjectMapped(ctx, programID, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check curriculum")
	}
	if mapped {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject is already in the curriculum")
	}

	mapping := &models.ProgramSubject{
		ProgramID:           programID,
		SubjectID:           req.SubjectID,
		RecommendedYear:     req.RecommendedYear,
		RecommendedSemester: req.RecommendedSemester,
	}
	if err := s.repo.AddSubject(ctx, mapping); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add program subject")
	}
	return mapping, nil
}

// RemoveSubject drops a curriculum mapping.
func (s *ProgramService) RemoveSubject(ctx context.Context, programID, mappingID string) error {
	if _, err := s.Get(ctx, programID); err != nil {
		return err
	}
	if err := s.repo.RemoveSubject(ctx, mappingID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove program subject")
	}
	return nil
}
