package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus-ph/portal-api/internal/models"
)

// GradeRepository handles grade persistence. A grade is keyed 1:1 by its
// enrollment subject; re-encoding overwrites the row in place.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = "id, enrollment_subject_id, value, remarks, encoded_by, date_encoded, approved, repeat_eligible_date, created_at, updated_at"

// FindByID loads a grade by identifier.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	query := fmt.Sprintf("SELECT %s FROM grades WHERE id = $1", gradeColumns)
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// BulkEncode upserts a batch of grades in a single transaction. Every row is
// written with approved = FALSE regardless of its previous state; a partial
// failure rolls the whole batch back.
func (r *GradeRepository) BulkEncode(ctx context.Context, grades []models.Grade) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin encode tx: %w", err)
	}
	for i := range grades {
		if grades[i].ID == "" {
			grades[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if grades[i].CreatedAt.IsZero() {
			grades[i].CreatedAt = now
		}
		grades[i].UpdatedAt = now
		const query = `INSERT INTO grades (id, enrollment_subject_id, value, remarks, encoded_by, date_encoded, approved, repeat_eligible_date, created_at, updated_at)
            VALUES (:id, :enrollment_subject_id, :value, :remarks, :encoded_by, :date_encoded, FALSE, :repeat_eligible_date, :created_at, :updated_at)
            ON CONFLICT (enrollment_subject_id)
            DO UPDATE SET value = EXCLUDED.value, remarks = EXCLUDED.remarks, encoded_by = EXCLUDED.encoded_by,
                date_encoded = EXCLUDED.date_encoded, approved = FALSE,
                repeat_eligible_date = EXCLUDED.repeat_eligible_date, updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, query, grades[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("encode grade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grades: %w", err)
	}
	return nil
}

// Approve marks the grade approved. No other field changes.
func (r *GradeRepository) Approve(ctx context.Context, id string) error {
	const query = `UPDATE grades SET approved = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("approve grade: %w", err)
	}
	return nil
}

// ListPending returns unapproved grades enriched for the registrar queue.
func (r *GradeRepository) ListPending(ctx context.Context) ([]models.PendingGradeDetail, error) {
	const query = `SELECT g.id, g.enrollment_subject_id, g.value, g.remarks, g.encoded_by, g.date_encoded, g.approved, g.repeat_eligible_date, g.created_at, g.updated_at,
        su.full_name AS student_name, st.student_number,
        sub.code AS subject_code, sub.name AS subject_name,
        sec.code AS section_code, pu.full_name AS professor_name
        FROM grades g
        JOIN enrollment_subjects es ON es.id = g.enrollment_subject_id
        JOIN enrollments e ON e.id = es.enrollment_id
        JOIN students st ON st.id = e.student_id
        JOIN users su ON su.id = st.user_id
        JOIN subjects sub ON sub.id = es.subject_id
        JOIN sections sec ON sec.id = es.section_id
        JOIN users pu ON pu.id = g.encoded_by
        WHERE g.approved = FALSE
        ORDER BY g.date_encoded ASC`
	var pending []models.PendingGradeDetail
	if err := r.db.SelectContext(ctx, &pending, query); err != nil {
		return nil, fmt.Errorf("list pending grades: %w", err)
	}
	return pending, nil
}

// HistoryByStudent returns every graded attempt across the student's
// transcript, ordered oldest first so callers can fold to the latest attempt
// per subject.
func (r *GradeRepository) HistoryByStudent(ctx context.Context, studentID string) ([]models.SubjectGradeHistory, error) {
	const query = `SELECT es.subject_id, g.value, g.date_encoded, g.approved, g.repeat_eligible_date
        FROM grades g
        JOIN enrollment_subjects es ON es.id = g.enrollment_subject_id
        JOIN enrollments e ON e.id = es.enrollment_id
        WHERE e.student_id = $1
        ORDER BY g.date_encoded ASC`
	var history []models.SubjectGradeHistory
	if err := r.db.SelectContext(ctx, &history, query, studentID); err != nil {
		return nil, fmt.Errorf("load grade history: %w", err)
	}
	return history, nil
}

// FetchByEnrollmentSubjects returns grades keyed by enrollment subject ID.
func (r *GradeRepository) FetchByEnrollmentSubjects(ctx context.Context, enrollmentSubjectIDs []string) (map[string]models.Grade, error) {
	if len(enrollmentSubjectIDs) == 0 {
		return map[string]models.Grade{}, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM grades WHERE enrollment_subject_id IN (?)", gradeColumns), enrollmentSubjectIDs)
	if err != nil {
		return nil, fmt.Errorf("build grade query: %w", err)
	}
	query = r.db.Rebind(query)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch grades: %w", err)
	}
	defer rows.Close()
	result := make(map[string]models.Grade, len(enrollmentSubjectIDs))
	for rows.Next() {
		var grade models.Grade
		if err := rows.StructScan(&grade); err != nil {
			return nil, fmt.Errorf("scan grade: %w", err)
		}
		result[grade.EnrollmentSubjectID] = grade
	}
	return result, nil
}

// CountPending returns the number of grades awaiting approval.
func (r *GradeRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM grades WHERE approved = FALSE`); err != nil {
		return 0, fmt.Errorf("count pending grades: %w", err)
	}
	return count, nil
}
