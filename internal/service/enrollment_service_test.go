package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencampus-ph/portal-api/internal/models"
	"github.com/opencampus-ph/portal-api/internal/repository"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	created        *models.Enrollment
	createErr      error
	subjects       map[string][]models.EnrollmentSubjectDetail
	lastSections   []models.Section
	lastUnits      map[string]int
	listEnrolls    []models.EnrollmentDetail
	listTotal      int
	existingByID   map[string]models.Enrollment
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return m.listEnrolls, m.listTotal, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.existingByID[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByStudentAndTerm(ctx context.Context, studentID, termID string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ListSubjects(ctx context.Context, enrollmentID string) ([]models.EnrollmentSubjectDetail, error) {
	return m.subjects[enrollmentID], nil
}

func (m *mockEnrollmentRepo) CreateWithSubjects(ctx context.Context, studentID, termID string, sections []models.Section, unitsBySubject map[string]int) (*models.Enrollment, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.lastSections = sections
	m.lastUnits = unitsBySubject
	m.created = &models.Enrollment{ID: "enr-1", StudentID: studentID, TermID: termID, Status: models.EnrollmentStatusConfirmed}
	return m.created, nil
}

type mockEnrollSections struct {
	sections  map[string]models.Section
	occupancy map[string]int
}

func (m *mockEnrollSections) FindByIDs(ctx context.Context, ids []string) (map[string]models.Section, error) {
	found := make(map[string]models.Section, len(ids))
	for _, id := range ids {
		if section, ok := m.sections[id]; ok {
			found[id] = section
		}
	}
	return found, nil
}

func (m *mockEnrollSections) OccupancyBySection(ctx context.Context, sectionIDs []string, termID string) (map[string]int, error) {
	return m.occupancy, nil
}

type mockEnrollSubjects struct {
	subjects map[string]models.Subject
}

func (m *mockEnrollSubjects) FindByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error) {
	found := make(map[string]models.Subject, len(ids))
	for _, id := range ids {
		if subject, ok := m.subjects[id]; ok {
			found[id] = subject
		}
	}
	return found, nil
}

type mockEnrollStudents struct {
	students map[string]*models.StudentDetail
}

func (m *mockEnrollStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollTerms struct {
	active *models.Term
}

func (m *mockEnrollTerms) FindActive(ctx context.Context) (*models.Term, error) {
	if m.active == nil {
		return nil, sql.ErrNoRows
	}
	return m.active, nil
}

func newEnrollFixture() (*mockEnrollmentRepo, *mockEnrollSections, *mockEnrollSubjects, *mockEnrollStudents, *mockEnrollTerms) {
	repo := &mockEnrollmentRepo{}
	sections := &mockEnrollSections{
		sections: map[string]models.Section{
			"sec-1": {ID: "sec-1", Code: "CS101-A", SubjectID: "sub-1", MaxSlots: 30},
			"sec-2": {ID: "sec-2", Code: "MATH1-B", SubjectID: "sub-2", MaxSlots: 2},
		},
		occupancy: map[string]int{"sec-1": 10, "sec-2": 0},
	}
	subjects := &mockEnrollSubjects{subjects: map[string]models.Subject{
		"sub-1": {ID: "sub-1", Code: "CS101", Units: 3},
		"sub-2": {ID: "sub-2", Code: "MATH1", Units: 5},
	}}
	students := &mockEnrollStudents{students: map[string]*models.StudentDetail{
		"stu-1": {Student: models.Student{ID: "stu-1", Active: true}},
	}}
	terms := &mockEnrollTerms{active: &models.Term{ID: "term-1", SchoolYear: "2026-2027", Semester: models.SemesterFirst, IsActive: true}}
	return repo, sections, subjects, students, terms
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionIDs: []string{"sec-1", "sec-2"}})
	require.NoError(t, err)
	require.NotNil(t, enrollment)
	assert.Equal(t, "stu-1", enrollment.StudentID)
	assert.Equal(t, "term-1", enrollment.TermID)
	require.Len(t, repo.lastSections, 2)
	assert.Equal(t, "sec-1", repo.lastSections[0].ID)
	assert.Equal(t, 3, repo.lastUnits["sub-1"])
	assert.Equal(t, 5, repo.lastUnits["sub-2"])
}

func TestEnrollmentServiceEnrollRequiresSections(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollUnknownStudent(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "ghost", SectionIDs: []string{"sec-1"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollInactiveStudent(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	students.students["stu-1"].Active = false
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionIDs: []string{"sec-1"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollNoActiveTerm(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	terms.active = nil
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionIDs: []string{"sec-1"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoActiveTerm.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollRejectsDuplicateSections(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	sections.occupancy["sec-2"] = 1
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	// Listing the same section twice could otherwise claim the last slot
	// twice in one request.
	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionIDs: []string{"sec-2", "sec-2"}})
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
	assert.Contains(t, typed.Message, "sec-2")
	assert.Nil(t, repo.created, "duplicates must never reach the insert path")
}

func TestEnrollmentServiceEnrollUnknownSection(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionIDs: []string{"sec-1", "sec-x"}})
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
	assert.Contains(t, typed.Message, "sec-x")
	assert.Nil(t, repo.created)
}

func TestEnrollmentServiceEnrollSectionFull(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	sections.occupancy["sec-2"] = 2
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionIDs: []string{"sec-1", "sec-2"}})
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSectionFull.Code, typed.Code)
	assert.Contains(t, typed.Message, "MATH1-B")
	assert.Nil(t, repo.created, "no partial enrollment may survive a full section")
}

func TestEnrollmentServiceEnrollRaceLosesSlot(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	repo.createErr = &repository.SectionOverCapacityError{SectionID: "sec-2"}
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "stu-1", SectionIDs: []string{"sec-2"}})
	require.Error(t, err)
	typed := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSectionFull.Code, typed.Code)
	assert.Contains(t, typed.Message, "MATH1-B")
}

func TestEnrollmentServiceSubjectsNotFound(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	_, err := svc.Subjects(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceSubjects(t *testing.T) {
	repo, sections, subjects, students, terms := newEnrollFixture()
	repo.existingByID = map[string]models.Enrollment{"enr-1": {ID: "enr-1"}}
	repo.subjects = map[string][]models.EnrollmentSubjectDetail{
		"enr-1": {{EnrollmentSubject: models.EnrollmentSubject{ID: "es-1", EnrollmentID: "enr-1"}, SubjectCode: "CS101"}},
	}
	svc := NewEnrollmentService(repo, sections, subjects, students, terms, validator.New(), zap.NewNop())

	list, err := svc.Subjects(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CS101", list[0].SubjectCode)
}
