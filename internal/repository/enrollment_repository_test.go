package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/opencampus-ph/portal-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "term_id", "status", "created_at", "updated_at"}).
		AddRow("enr-1", "stu-1", "term-1", models.EnrollmentStatusConfirmed, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, term_id, status, created_at, updated_at FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, "stu-1", enrollment.StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListSubjects(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "section_id", "subject_id", "units", "created_at", "subject_code", "subject_name", "section_code"}).
		AddRow("es-1", "enr-1", "sec-1", "sub-1", 3, time.Now(), "CS101", "Intro to Computing", "CS101-A")
	mock.ExpectQuery("WHERE es.enrollment_id = \\$1").WithArgs("enr-1").WillReturnRows(rows)

	subjects, err := repo.ListSubjects(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	require.Equal(t, 3, subjects[0].Units)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSubjects(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	sections := []models.Section{
		{ID: "sec-1", SubjectID: "sub-1", MaxSlots: 30},
		{ID: "sec-2", SubjectID: "sub-2", MaxSlots: 30},
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM sections WHERE id IN .+ FOR UPDATE").
		WithArgs("sec-1", "sec-2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("GROUP BY es.section_id").
		WithArgs("sec-1", "sec-2", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "occupancy"}).AddRow("sec-1", 5))
	mock.ExpectQuery("SELECT es.section_id FROM enrollment_subjects es").
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE student_id = $1 AND term_id = $2")).
		WithArgs("stu-1", "term-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollment_subjects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollment_subjects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.CreateWithSubjects(context.Background(), "stu-1", "term-1", sections, map[string]int{"sub-1": 3, "sub-2": 5})
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, models.EnrollmentStatusConfirmed, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSubjectsReusesEnrollment(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	sections := []models.Section{{ID: "sec-1", SubjectID: "sub-1", MaxSlots: 30}}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM sections WHERE id IN .+ FOR UPDATE").
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("GROUP BY es.section_id").
		WithArgs("sec-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "occupancy"}))
	mock.ExpectQuery("SELECT es.section_id FROM enrollment_subjects es").
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE student_id = $1 AND term_id = $2")).
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enr-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, term_id, status, created_at, updated_at FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "term_id", "status", "created_at", "updated_at"}).
			AddRow("enr-1", "stu-1", "term-1", models.EnrollmentStatusConfirmed, time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO enrollment_subjects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.CreateWithSubjects(context.Background(), "stu-1", "term-1", sections, map[string]int{"sub-1": 3})
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSubjectsOverCapacity(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	sections := []models.Section{{ID: "sec-1", SubjectID: "sub-1", MaxSlots: 2}}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM sections WHERE id IN .+ FOR UPDATE").
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("GROUP BY es.section_id").
		WithArgs("sec-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "occupancy"}).AddRow("sec-1", 2))
	mock.ExpectQuery("SELECT es.section_id FROM enrollment_subjects es").
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id"}))
	mock.ExpectRollback()

	_, err := repo.CreateWithSubjects(context.Background(), "stu-1", "term-1", sections, map[string]int{"sub-1": 3})
	require.Error(t, err)
	var full *SectionOverCapacityError
	require.True(t, errors.As(err, &full))
	require.Equal(t, "sec-1", full.SectionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSubjectsCollapsesDuplicateSections(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	// The same section twice against a single remaining slot must yield one
	// row, not two.
	sections := []models.Section{
		{ID: "sec-1", SubjectID: "sub-1", MaxSlots: 2},
		{ID: "sec-1", SubjectID: "sub-1", MaxSlots: 2},
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM sections WHERE id IN .+ FOR UPDATE").
		WithArgs("sec-1", "sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("GROUP BY es.section_id").
		WithArgs("sec-1", "sec-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "occupancy"}).AddRow("sec-1", 1))
	mock.ExpectQuery("SELECT es.section_id FROM enrollment_subjects es").
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE student_id = $1 AND term_id = $2")).
		WithArgs("stu-1", "term-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO enrollment_subjects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.CreateWithSubjects(context.Background(), "stu-1", "term-1", sections, map[string]int{"sub-1": 3})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSubjectsSkipsHeldSection(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	sections := []models.Section{{ID: "sec-1", SubjectID: "sub-1", MaxSlots: 30}}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM sections WHERE id IN .+ FOR UPDATE").
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("GROUP BY es.section_id").
		WithArgs("sec-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "occupancy"}).AddRow("sec-1", 1))
	mock.ExpectQuery("SELECT es.section_id FROM enrollment_subjects es").
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id"}).AddRow("sec-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE student_id = $1 AND term_id = $2")).
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enr-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, term_id, status, created_at, updated_at FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "term_id", "status", "created_at", "updated_at"}).
			AddRow("enr-1", "stu-1", "term-1", models.EnrollmentStatusConfirmed, time.Now(), time.Now()))
	mock.ExpectCommit()

	enrollment, err := repo.CreateWithSubjects(context.Background(), "stu-1", "term-1", sections, map[string]int{"sub-1": 3})
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithSubjectsOccupancyScanError(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	sections := []models.Section{{ID: "sec-1", SubjectID: "sub-1", MaxSlots: 2}}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM sections WHERE id IN .+ FOR UPDATE").
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("GROUP BY es.section_id").
		WithArgs("sec-1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id", "occupancy"}).
			AddRow("sec-1", 1).
			RowError(0, errors.New("connection reset")))
	mock.ExpectRollback()

	_, err := repo.CreateWithSubjects(context.Background(), "stu-1", "term-1", sections, map[string]int{"sub-1": 3})
	require.Error(t, err)
	require.Contains(t, err.Error(), "recheck occupancy")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountByTerm(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE term_id = $1")).
		WithArgs("term-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(128))

	count, err := repo.CountByTerm(context.Background(), "term-1")
	require.NoError(t, err)
	require.Equal(t, 128, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
