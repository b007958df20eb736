package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencampus-ph/portal-api/internal/models"
)

// SectionRepository handles persistence of class sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = "id, code, subject_id, professor_id, max_slots, semester, academic_year, status, created_at, updated_at"

// List returns sections matching the filter with subject and professor context.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	base := `FROM sections sec
JOIN subjects s ON s.id = sec.subject_id
JOIN users u ON u.id = sec.professor_id`
	var conditions []string
	var args []interface{}

	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("sec.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.ProfessorID != "" {
		conditions = append(conditions, fmt.Sprintf("sec.professor_id = $%d", len(args)+1))
		args = append(args, filter.ProfessorID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("sec.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("sec.academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("sec.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":         "sec.code",
		"subject_code": "s.code",
		"created_at":   "sec.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "sec.code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT sec.id, sec.code, sec.subject_id, sec.professor_id, sec.max_slots, sec.semester, sec.academic_year, sec.status, sec.created_at, sec.updated_at,
        s.code AS subject_code, s.name AS subject_name, u.full_name AS professor_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID loads a section by identifier.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections WHERE id = $1", sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindByIDs loads multiple sections keyed by identifier.
func (r *SectionRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Section, error) {
	if len(ids) == 0 {
		return map[string]models.Section{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM sections WHERE id IN (%s)", sectionColumns, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch sections: %w", err)
	}
	defer rows.Close()
	result := make(map[string]models.Section, len(ids))
	for rows.Next() {
		var section models.Section
		if err := rows.StructScan(&section); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		result[section.ID] = section
	}
	return result, nil
}

// ListOpenBySubjects returns OPEN sections for the given subjects scheduled in
// the given semester and academic year.
func (r *SectionRepository) ListOpenBySubjects(ctx context.Context, subjectIDs []string, semester models.Semester, academicYear string) ([]models.Section, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(subjectIDs))
	args := make([]interface{}, 0, len(subjectIDs)+3)
	for i, id := range subjectIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, semester, academicYear, models.SectionStatusOpen)
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE subject_id IN (%s) AND semester = $%d AND academic_year = $%d AND status = $%d ORDER BY code ASC`,
		sectionColumns, strings.Join(placeholders, ","), len(subjectIDs)+1, len(subjectIDs)+2, len(subjectIDs)+3)
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, fmt.Errorf("list open sections: %w", err)
	}
	return sections, nil
}

// OccupancyBySection counts enrollment subjects per section within a term.
func (r *SectionRepository) OccupancyBySection(ctx context.Context, sectionIDs []string, termID string) (map[string]int, error) {
	if len(sectionIDs) == 0 {
		return map[string]int{}, nil
	}
	placeholders := make([]string, len(sectionIDs))
	args := make([]interface{}, 0, len(sectionIDs)+1)
	for i, id := range sectionIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, termID)
	query := fmt.Sprintf(`SELECT es.section_id, COUNT(*) AS occupancy
        FROM enrollment_subjects es
        JOIN enrollments e ON e.id = es.enrollment_id
        WHERE es.section_id IN (%s) AND e.term_id = $%d
        GROUP BY es.section_id`, strings.Join(placeholders, ","), len(sectionIDs)+1)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count section occupancy: %w", err)
	}
	defer rows.Close()
	result := make(map[string]int, len(sectionIDs))
	for rows.Next() {
		var sectionID string
		var occupancy int
		if err := rows.Scan(&sectionID, &occupancy); err != nil {
			return nil, fmt.Errorf("scan occupancy: %w", err)
		}
		result[sectionID] = occupancy
	}
	return result, nil
}

// OwnedByProfessor reports whether the professor handles the section.
func (r *SectionRepository) OwnedByProfessor(ctx context.Context, sectionID, professorID string) (bool, error) {
	var owner string
	if err := r.db.GetContext(ctx, &owner, `SELECT professor_id FROM sections WHERE id = $1`, sectionID); err != nil {
		return false, err
	}
	return owner == professorID, nil
}

// CountOpen returns the number of OPEN sections for a semester and year.
func (r *SectionRepository) CountOpen(ctx context.Context, semester models.Semester, academicYear string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sections WHERE status = $1 AND semester = $2 AND academic_year = $3`, models.SectionStatusOpen, semester, academicYear); err != nil {
		return 0, fmt.Errorf("count open sections: %w", err)
	}
	return count, nil
}

// Create inserts a new section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	if section.Status == "" {
		section.Status = models.SectionStatusOpen
	}
	const query = `INSERT INTO sections (id, code, subject_id, professor_id, max_slots, semester, academic_year, status, created_at, updated_at)
        VALUES (:id, :code, :subject_id, :professor_id, :max_slots, :semester, :academic_year, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update modifies an existing section.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sections SET code = :code, subject_id = :subject_id, professor_id = :professor_id, max_slots = :max_slots, semester = :semester, academic_year = :academic_year, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// Delete removes a section permanently.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}
