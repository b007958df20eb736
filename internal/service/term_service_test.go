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
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
)

type mockTermRepo struct {
	terms       map[string]models.Term
	activeID    string
	exists      bool
	enrollments map[string]int
	activated   []string
	deleted     []string
	created     *models.Term
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	var list []models.Term
	for _, term := range m.terms {
		list = append(list, term)
	}
	return list, len(list), nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := m.terms[id]; ok {
		return &term, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) FindActive(ctx context.Context) (*models.Term, error) {
	if term, ok := m.terms[m.activeID]; ok && term.IsActive {
		return &term, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) ExistsByYearAndSemester(ctx context.Context, schoolYear string, semester models.Semester, excludeID string) (bool, error) {
	return m.exists, nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = "term-new"
	}
	if m.terms == nil {
		m.terms = make(map[string]models.Term)
	}
	m.terms[term.ID] = *term
	m.created = term
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) SetActive(ctx context.Context, id string) error {
	for key, term := range m.terms {
		term.IsActive = key == id
		m.terms[key] = term
	}
	m.activeID = id
	m.activated = append(m.activated, id)
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id string) error {
	delete(m.terms, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTermRepo) CountEnrollments(ctx context.Context, id string) (int, error) {
	return m.enrollments[id], nil
}

func newTermService(repo *mockTermRepo) *TermService {
	return NewTermService(repo, validator.New(), zap.NewNop())
}

func TestTermServiceCreate(t *testing.T) {
	repo := &mockTermRepo{}
	svc := newTermService(repo)

	term, err := svc.Create(context.Background(), CreateTermRequest{SchoolYear: "2026-2027", Semester: models.SemesterFirst})
	require.NoError(t, err)
	assert.False(t, term.IsActive, "new terms start inactive")
	assert.NotNil(t, repo.created)
}

func TestTermServiceCreateDuplicate(t *testing.T) {
	repo := &mockTermRepo{exists: true}
	svc := newTermService(repo)

	_, err := svc.Create(context.Background(), CreateTermRequest{SchoolYear: "2026-2027", Semester: models.SemesterFirst})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTermServiceCreateInvalidSemester(t *testing.T) {
	repo := &mockTermRepo{}
	svc := newTermService(repo)

	_, err := svc.Create(context.Background(), CreateTermRequest{SchoolYear: "2026-2027", Semester: "THIRD"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTermServiceActivateSwitchesActiveTerm(t *testing.T) {
	repo := &mockTermRepo{
		terms: map[string]models.Term{
			"term-1": {ID: "term-1", SchoolYear: "2025-2026", Semester: models.SemesterSecond, IsActive: true},
			"term-2": {ID: "term-2", SchoolYear: "2026-2027", Semester: models.SemesterFirst},
		},
		activeID: "term-1",
	}
	svc := newTermService(repo)

	term, err := svc.Activate(context.Background(), "term-2")
	require.NoError(t, err)
	assert.True(t, term.IsActive)
	assert.Equal(t, []string{"term-2"}, repo.activated)
	assert.False(t, repo.terms["term-1"].IsActive, "previous active term is deactivated")
}

func TestTermServiceActivateIdempotent(t *testing.T) {
	repo := &mockTermRepo{
		terms:    map[string]models.Term{"term-1": {ID: "term-1", IsActive: true}},
		activeID: "term-1",
	}
	svc := newTermService(repo)

	term, err := svc.Activate(context.Background(), "term-1")
	require.NoError(t, err)
	assert.True(t, term.IsActive)
	assert.Empty(t, repo.activated, "re-activating the active term is a no-op")
}

func TestTermServiceActiveNone(t *testing.T) {
	repo := &mockTermRepo{}
	svc := newTermService(repo)

	_, err := svc.Active(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoActiveTerm.Code, appErrors.FromError(err).Code)
}

func TestTermServiceDeleteBlocksActiveTerm(t *testing.T) {
	repo := &mockTermRepo{
		terms:    map[string]models.Term{"term-1": {ID: "term-1", IsActive: true}},
		activeID: "term-1",
	}
	svc := newTermService(repo)

	err := svc.Delete(context.Background(), "term-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestTermServiceDeleteBlocksTermWithEnrollments(t *testing.T) {
	repo := &mockTermRepo{
		terms:       map[string]models.Term{"term-1": {ID: "term-1"}},
		enrollments: map[string]int{"term-1": 3},
	}
	svc := newTermService(repo)

	err := svc.Delete(context.Background(), "term-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestTermServiceDelete(t *testing.T) {
	repo := &mockTermRepo{terms: map[string]models.Term{"term-1": {ID: "term-1"}}}
	svc := newTermService(repo)

	require.NoError(t, svc.Delete(context.Background(), "term-1"))
	assert.Equal(t, []string{"term-1"}, repo.deleted)
}

func TestTermServiceGetNotFound(t *testing.T) {
	repo := &mockTermRepo{}
	svc := newTermService(repo)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
