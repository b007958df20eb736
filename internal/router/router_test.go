package router

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/opencampus-ph/portal-api/internal/handler"
	"github.com/opencampus-ph/portal-api/internal/models"
	"github.com/opencampus-ph/portal-api/internal/service"
)

type routeUserRepo struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func (r *routeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *routeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (r *routeUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (r *routeUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (r *routeUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if r.tokens == nil {
		r.tokens = make(map[string]*models.RefreshToken)
	}
	r.tokens[token.Token] = token
	return nil
}

func (r *routeUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := r.tokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (r *routeUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	return nil
}

type routeGradeRepo struct {
	approved []string
}

func (r *routeGradeRepo) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	return &models.Grade{ID: id, Value: models.Grade150}, nil
}

func (r *routeGradeRepo) BulkEncode(ctx context.Context, grades []models.Grade) error { return nil }

func (r *routeGradeRepo) Approve(ctx context.Context, id string) error {
	r.approved = append(r.approved, id)
	return nil
}

func (r *routeGradeRepo) ListPending(ctx context.Context) ([]models.PendingGradeDetail, error) {
	return nil, nil
}

func (r *routeGradeRepo) FetchByEnrollmentSubjects(ctx context.Context, ids []string) (map[string]models.Grade, error) {
	return map[string]models.Grade{}, nil
}

type routeGradeEnrollments struct{}

func (r *routeGradeEnrollments) FindSubjectsByIDs(ctx context.Context, ids []string) (map[string]models.EnrollmentSubject, error) {
	return map[string]models.EnrollmentSubject{}, nil
}

func (r *routeGradeEnrollments) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (r *routeGradeEnrollments) ListSubjects(ctx context.Context, enrollmentID string) ([]models.EnrollmentSubjectDetail, error) {
	return nil, nil
}

type routeGradeSections struct{}

func (r *routeGradeSections) FindByIDs(ctx context.Context, ids []string) (map[string]models.Section, error) {
	return map[string]models.Section{}, nil
}

type routeGradeSubjects struct{}

func (r *routeGradeSubjects) FindByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error) {
	return map[string]models.Subject{}, nil
}

type routeGradeStudents struct{}

func (r *routeGradeStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	return nil, sql.ErrNoRows
}

func routeUser(t *testing.T, id, email string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: id, Email: email, PasswordHash: string(hash), FullName: "Test User", Role: role, Active: true}
}

func newRouterFixture(t *testing.T) (*gin.Engine, *service.AuthService, *routeGradeRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &routeUserRepo{users: map[string]*models.User{
		"user-reg":  routeUser(t, "user-reg", "registrar@campus.edu.ph", models.RoleRegistrar),
		"user-dean": routeUser(t, "user-dean", "dean@campus.edu.ph", models.RoleDean),
	}}
	authSvc := service.NewAuthService(users, validator.New(), zap.NewNop(), service.AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "portal-api",
	})

	gradeRepo := &routeGradeRepo{}
	gradeSvc := service.NewGradeService(gradeRepo, &routeGradeEnrollments{}, &routeGradeSections{}, &routeGradeSubjects{}, &routeGradeStudents{}, validator.New(), zap.NewNop())

	r := gin.New()
	Register(r, "/api/v1", authSvc, Handlers{
		Auth:        &handler.AuthHandler{},
		Users:       &handler.UserHandler{},
		Terms:       &handler.TermHandler{},
		Subjects:    &handler.SubjectHandler{},
		Programs:    &handler.ProgramHandler{},
		Sections:    &handler.SectionHandler{},
		Students:    &handler.StudentHandler{},
		Grades:      handler.NewGradeHandler(gradeSvc),
		Enrollments: &handler.EnrollmentHandler{},
		Dashboard:   &handler.DashboardHandler{},
		Metrics:     &handler.MetricsHandler{},
	}, false)
	return r, authSvc, gradeRepo
}

func loginToken(t *testing.T, authSvc *service.AuthService, email string) string {
	t.Helper()
	resp, err := authSvc.Login(context.Background(), models.LoginRequest{Email: email, Password: "secret123"})
	require.NoError(t, err)
	return resp.AccessToken
}

func TestGradeApprovalAllowsRegistrar(t *testing.T) {
	r, authSvc, gradeRepo := newRouterFixture(t)
	token := loginToken(t, authSvc, "registrar@campus.edu.ph")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grades/g-1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"g-1"}, gradeRepo.approved)
}

func TestGradeApprovalRejectsDean(t *testing.T) {
	r, authSvc, gradeRepo := newRouterFixture(t)
	token := loginToken(t, authSvc, "dean@campus.edu.ph")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grades/g-1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, gradeRepo.approved)
}

func TestGradeApprovalRequiresToken(t *testing.T) {
	r, _, _ := newRouterFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grades/g-1/approve", nil)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
