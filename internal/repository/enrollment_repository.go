package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus-ph/portal-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and their subjects.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// SectionOverCapacityError reports the section that had no room left when an
// enroll transaction re-checked occupancy under lock.
type SectionOverCapacityError struct {
	SectionID string
}

func (e *SectionOverCapacityError) Error() string {
	return fmt.Sprintf("section %s is at capacity", e.SectionID)
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN students st ON st.id = e.student_id
JOIN users u ON u.id = st.user_id
JOIN terms t ON t.id = e.term_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("e.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.term_id, e.status, e.created_at, e.updated_at,
        u.full_name AS student_name, st.student_number, t.school_year, t.semester
        %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, term_id, status, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndTerm returns the student's enrollment for a term, if any.
func (r *EnrollmentRepository) FindByStudentAndTerm(ctx context.Context, studentID, termID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, term_id, status, created_at, updated_at FROM enrollments WHERE student_id = $1 AND term_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, termID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns all of a student's enrollments, newest term first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.term_id, e.status, e.created_at, e.updated_at,
        u.full_name AS student_name, st.student_number, t.school_year, t.semester
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN users u ON u.id = st.user_id
        JOIN terms t ON t.id = e.term_id
        WHERE e.student_id = $1
        ORDER BY t.school_year DESC, t.semester DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListSubjects returns the subjects taken under an enrollment with context.
func (r *EnrollmentRepository) ListSubjects(ctx context.Context, enrollmentID string) ([]models.EnrollmentSubjectDetail, error) {
	const query = `SELECT es.id, es.enrollment_id, es.section_id, es.subject_id, es.units, es.created_at,
        s.code AS subject_code, s.name AS subject_name, sec.code AS section_code
        FROM enrollment_subjects es
        JOIN subjects s ON s.id = es.subject_id
        JOIN sections sec ON sec.id = es.section_id
        WHERE es.enrollment_id = $1
        ORDER BY s.code ASC`
	var subjects []models.EnrollmentSubjectDetail
	if err := r.db.SelectContext(ctx, &subjects, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment subjects: %w", err)
	}
	return subjects, nil
}

// FindSubjectsByIDs loads enrollment subjects keyed by identifier.
func (r *EnrollmentRepository) FindSubjectsByIDs(ctx context.Context, ids []string) (map[string]models.EnrollmentSubject, error) {
	if len(ids) == 0 {
		return map[string]models.EnrollmentSubject{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, enrollment_id, section_id, subject_id, units, created_at
        FROM enrollment_subjects WHERE id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch enrollment subjects: %w", err)
	}
	defer rows.Close()
	result := make(map[string]models.EnrollmentSubject, len(ids))
	for rows.Next() {
		var subject models.EnrollmentSubject
		if err := rows.StructScan(&subject); err != nil {
			return nil, fmt.Errorf("scan enrollment subject: %w", err)
		}
		result[subject.ID] = subject
	}
	return result, nil
}

// CountByTerm returns the number of enrollments in a term.
func (r *EnrollmentRepository) CountByTerm(ctx context.Context, termID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE term_id = $1`, termID); err != nil {
		return 0, fmt.Errorf("count term enrollments: %w", err)
	}
	return count, nil
}

// CreateWithSubjects creates (or reuses) the student's enrollment for the term
// and inserts one enrollment subject per section, all inside one transaction.
// The requested sections are locked with FOR UPDATE and occupancy is
// re-counted under the lock before any insert, so two concurrent enrollments
// cannot both squeeze into the last slot. Repeated section IDs in the batch
// collapse to one row, and sections the student already holds this term are
// skipped rather than duplicated. A *SectionOverCapacityError is returned
// when a locked section turns out to be full.
func (r *EnrollmentRepository) CreateWithSubjects(ctx context.Context, studentID, termID string, sections []models.Section, unitsBySubject map[string]int) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enroll tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	placeholders := make([]string, len(sections))
	lockArgs := make([]interface{}, len(sections))
	for i, section := range sections {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		lockArgs[i] = section.ID
	}

	lockQuery := fmt.Sprintf("SELECT id FROM sections WHERE id IN (%s) FOR UPDATE", strings.Join(placeholders, ","))
	if _, err = tx.ExecContext(ctx, lockQuery, lockArgs...); err != nil {
		return nil, fmt.Errorf("lock sections: %w", err)
	}

	countArgs := append(append([]interface{}{}, lockArgs...), termID)
	countQuery := fmt.Sprintf(`SELECT es.section_id, COUNT(*) AS occupancy
        FROM enrollment_subjects es
        JOIN enrollments e ON e.id = es.enrollment_id
        WHERE es.section_id IN (%s) AND e.term_id = $%d
        GROUP BY es.section_id`, strings.Join(placeholders, ","), len(sections)+1)

	occupancy := make(map[string]int, len(sections))
	rows, err := tx.QueryxContext(ctx, countQuery, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("recheck occupancy: %w", err)
	}
	for rows.Next() {
		var sectionID string
		var count int
		if err = rows.Scan(&sectionID, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan occupancy: %w", err)
		}
		occupancy[sectionID] = count
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("recheck occupancy: %w", err)
	}
	rows.Close()

	var held []string
	if err = tx.SelectContext(ctx, &held, `SELECT es.section_id FROM enrollment_subjects es
        JOIN enrollments e ON e.id = es.enrollment_id
        WHERE e.student_id = $1 AND e.term_id = $2`, studentID, termID); err != nil {
		return nil, fmt.Errorf("load held sections: %w", err)
	}
	taken := make(map[string]struct{}, len(held)+len(sections))
	for _, id := range held {
		taken[id] = struct{}{}
	}

	toInsert := make([]models.Section, 0, len(sections))
	for _, section := range sections {
		if _, ok := taken[section.ID]; ok {
			continue
		}
		if occupancy[section.ID] >= section.MaxSlots {
			err = &SectionOverCapacityError{SectionID: section.ID}
			return nil, err
		}
		taken[section.ID] = struct{}{}
		toInsert = append(toInsert, section)
	}

	now := time.Now().UTC()
	enrollment := &models.Enrollment{StudentID: studentID, TermID: termID, Status: models.EnrollmentStatusConfirmed}
	var existingID string
	findErr := tx.GetContext(ctx, &existingID, `SELECT id FROM enrollments WHERE student_id = $1 AND term_id = $2`, studentID, termID)
	switch {
	case findErr == nil:
		enrollment.ID = existingID
		if err = tx.GetContext(ctx, enrollment, `SELECT id, student_id, term_id, status, created_at, updated_at FROM enrollments WHERE id = $1`, existingID); err != nil {
			return nil, fmt.Errorf("load enrollment: %w", err)
		}
	case errors.Is(findErr, sql.ErrNoRows):
		enrollment.ID = uuid.NewString()
		enrollment.CreatedAt = now
		enrollment.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO enrollments (id, student_id, term_id, status, created_at, updated_at)
            VALUES (:id, :student_id, :term_id, :status, :created_at, :updated_at)`, enrollment); err != nil {
			return nil, fmt.Errorf("create enrollment: %w", err)
		}
	default:
		err = fmt.Errorf("find enrollment: %w", findErr)
		return nil, err
	}

	for _, section := range toInsert {
		subject := models.EnrollmentSubject{
			ID:           uuid.NewString(),
			EnrollmentID: enrollment.ID,
			SectionID:    section.ID,
			SubjectID:    section.SubjectID,
			Units:        unitsBySubject[section.SubjectID],
			CreatedAt:    now,
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO enrollment_subjects (id, enrollment_id, section_id, subject_id, units, created_at)
            VALUES (:id, :enrollment_id, :section_id, :subject_id, :units, :created_at)`, subject); err != nil {
			return nil, fmt.Errorf("create enrollment subject: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enroll tx: %w", err)
	}
	return enrollment, nil
}
