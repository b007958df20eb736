package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/opencampus-ph/portal-api/internal/models"
)

func newSectionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sectionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "code", "subject_id", "professor_id", "max_slots", "semester", "academic_year", "status", "created_at", "updated_at"})
}

func TestSectionRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	rows := sectionRows().
		AddRow("sec-1", "CS101-A", "sub-1", "prof-1", 30, models.SemesterFirst, "2026-2027", models.SectionStatusOpen, time.Now(), time.Now()).
		AddRow("sec-2", "CS101-B", "sub-1", "prof-2", 30, models.SemesterFirst, "2026-2027", models.SectionStatusOpen, time.Now(), time.Now())
	mock.ExpectQuery("FROM sections WHERE id IN").WithArgs("sec-1", "sec-2").WillReturnRows(rows)

	sections, err := repo.FindByIDs(context.Background(), []string{"sec-1", "sec-2"})
	require.NoError(t, err)
	require.Len(t, sections, 2)
	require.Equal(t, "CS101-A", sections["sec-1"].Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryOccupancyBySection(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	rows := sqlmock.NewRows([]string{"section_id", "occupancy"}).
		AddRow("sec-1", 12).
		AddRow("sec-2", 30)
	mock.ExpectQuery("GROUP BY es.section_id").WithArgs("sec-1", "sec-2", "term-1").WillReturnRows(rows)

	occupancy, err := repo.OccupancyBySection(context.Background(), []string{"sec-1", "sec-2"}, "term-1")
	require.NoError(t, err)
	require.Equal(t, 12, occupancy["sec-1"])
	require.Equal(t, 30, occupancy["sec-2"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryOccupancyBySectionEmptyInput(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	occupancy, err := repo.OccupancyBySection(context.Background(), nil, "term-1")
	require.NoError(t, err)
	require.Empty(t, occupancy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryListOpenBySubjects(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	rows := sectionRows().
		AddRow("sec-1", "CS101-A", "sub-1", "prof-1", 30, models.SemesterFirst, "2026-2027", models.SectionStatusOpen, time.Now(), time.Now())
	mock.ExpectQuery("FROM sections WHERE subject_id IN").
		WithArgs("sub-1", "sub-2", models.SemesterFirst, "2026-2027", models.SectionStatusOpen).
		WillReturnRows(rows)

	sections, err := repo.ListOpenBySubjects(context.Background(), []string{"sub-1", "sub-2"}, models.SemesterFirst, "2026-2027")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	require.Equal(t, "sec-1", sections[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryOwnedByProfessor(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT professor_id FROM sections WHERE id = $1")).
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"professor_id"}).AddRow("prof-1"))

	owned, err := repo.OwnedByProfessor(context.Background(), "sec-1", "prof-1")
	require.NoError(t, err)
	require.True(t, owned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCountOpen(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sections WHERE status = $1 AND semester = $2 AND academic_year = $3")).
		WithArgs(models.SectionStatusOpen, models.SemesterFirst, "2026-2027").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := repo.CountOpen(context.Background(), models.SemesterFirst, "2026-2027")
	require.NoError(t, err)
	require.Equal(t, 5, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
