package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type mockExportEnrollments struct {
	enrollment *models.Enrollment
	subjects   []models.EnrollmentSubjectDetail
}

func (m *mockExportEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil || m.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.enrollment, nil
}

func (m *mockExportEnrollments) ListSubjects(ctx context.Context, enrollmentID string) ([]models.EnrollmentSubjectDetail, error) {
	return m.subjects, nil
}

type mockExportStudents struct {
	student *models.StudentDetail
}

func (m *mockExportStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if m.student == nil {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

type mockExportTerms struct {
	term *models.Term
}

func (m *mockExportTerms) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if m.term == nil {
		return nil, sql.ErrNoRows
	}
	return m.term, nil
}

func newExportFixture() (*mockExportEnrollments, *ExportService) {
	enrollments := &mockExportEnrollments{
		enrollment: &models.Enrollment{ID: "enr-1", StudentID: "stu-1", TermID: "term-1"},
		subjects: []models.EnrollmentSubjectDetail{
			{EnrollmentSubject: models.EnrollmentSubject{ID: "es-1", Units: 3}, SubjectCode: "CS101", SubjectName: "Intro to Computing", SectionCode: "CS101-A"},
			{EnrollmentSubject: models.EnrollmentSubject{ID: "es-2", Units: 5}, SubjectCode: "MATH1", SubjectName: "Calculus I", SectionCode: "MATH1-B"},
		},
	}
	students := &mockExportStudents{student: &models.StudentDetail{
		Student:  models.Student{ID: "stu-1", StudentNumber: "2026-00001"},
		FullName: "Juan dela Cruz",
	}}
	terms := &mockExportTerms{term: &models.Term{ID: "term-1", SchoolYear: "2026-2027", Semester: models.SemesterFirst}}
	svc := NewExportService(enrollments, students, terms, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC) }
	return enrollments, svc
}

func TestExportServiceRegistrationCertificateCSV(t *testing.T) {
	_, svc := newExportFixture()

	file, err := svc.RegistrationCertificate(context.Background(), "enr-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "cor_2026-00001_2026-2027_first_20260901.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	body := string(file.Data)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 4, "header, two subjects and a total row")
	assert.Equal(t, "Subject Code,Subject Name,Section,Units", lines[0])
	assert.Contains(t, lines[1], "CS101")
	assert.Contains(t, lines[3], "TOTAL")
	assert.Contains(t, lines[3], "8")
}

func TestExportServiceRegistrationCertificatePDF(t *testing.T) {
	_, svc := newExportFixture()

	file, err := svc.RegistrationCertificate(context.Background(), "enr-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "cor_2026-00001_2026-2027_first_20260901.pdf", file.Filename)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestExportServiceRegistrationCertificateUnknownFormat(t *testing.T) {
	_, svc := newExportFixture()

	_, err := svc.RegistrationCertificate(context.Background(), "enr-1", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRegistrationCertificateUnknownEnrollment(t *testing.T) {
	_, svc := newExportFixture()

	_, err := svc.RegistrationCertificate(context.Background(), "missing", ExportFormatPDF)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
