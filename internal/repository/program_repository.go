package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus-ph/portal-api/internal/models"
)

// ProgramRepository handles persistence for programs and curriculum mappings.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns all programs ordered by code.
func (r *ProgramRepository) List(ctx context.Context) ([]models.Program, error) {
	const query = `SELECT id, code, name, created_at, updated_at FROM programs ORDER BY code ASC`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// FindByID loads a program by identifier.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, code, name, created_at, updated_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// ExistsByCode checks code uniqueness.
func (r *ProgramRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	base := "SELECT 1 FROM programs WHERE code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check program code: %w", err)
	}
	return true, nil
}

// Create inserts a new program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if program.CreatedAt.IsZero() {
		program.CreatedAt = now
	}
	program.UpdatedAt = now
	const query = `INSERT INTO programs (id, code, name, created_at, updated_at) VALUES (:id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update modifies an existing program.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET code = :code, name = :name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return nil
}

// ListSubjects returns a program's curriculum mappings with subject context,
// in insertion order. The recommendation engine depends on this ordering.
func (r *ProgramRepository) ListSubjects(ctx context.Context, programID string) ([]models.ProgramSubjectDetail, error) {
	const query = `SELECT ps.id, ps.program_id, ps.subject_id, ps.recommended_year, ps.recommended_semester, ps.created_at,
        s.code AS subject_code, s.name AS subject_name, s.units, s.subject_type, s.prerequisite_id
        FROM program_subjects ps
        JOIN subjects s ON s.id = ps.subject_id
        WHERE ps.program_id = $1
        ORDER BY ps.created_at ASC, ps.id ASC`
	var mappings []models.ProgramSubjectDetail
	if err := r.db.SelectContext(ctx, &mappings, query, programID); err != nil {
		return nil, fmt.Errorf("list program subjects: %w", err)
	}
	return mappings, nil
}

// AddSubject maps a subject into the program curriculum.
func (r *ProgramRepository) AddSubject(ctx context.Context, mapping *models.ProgramSubject) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO program_subjects (id, program_id, subject_id, recommended_year, recommended_semester, created_at)
        VALUES (:id, :program_id, :subject_id, :recommended_year, :recommended_semester, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mapping); err != nil {
		return fmt.Errorf("add program subject: %w", err)
	}
	return nil
}

// RemoveSubject deletes a curriculum mapping.
func (r *ProgramRepository) RemoveSubject(ctx context.Context, mappingID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM program_subjects WHERE id = $1`, mappingID); err != nil {
		return fmt.Errorf("remove program subject: %w", err)
	}
	return nil
}

// SubjectMapped checks whether a subject is already part of the curriculum.
func (r *ProgramRepository) SubjectMapped(ctx context.Context, programID, subjectID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM program_subjects WHERE program_id = $1 AND subject_id = $2 LIMIT 1`, programID, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check program subject: %w", err)
	}
	return true, nil
}
