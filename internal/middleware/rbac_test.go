package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/opencampus-ph/portal-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, path string, guard gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	router := gin.New()
	router.GET("/users/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, guard, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleRegistrar}
	recorder := performRBAC(t, claims, "/users/user-9", RBAC("REGISTRAR", "DEAN"))
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACRejectsOtherRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	recorder := performRBAC(t, claims, "/users/user-9", RBAC("REGISTRAR", "DEAN"))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACSelfMatchesOwnID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	recorder := performRBAC(t, claims, "/users/user-1", RBAC("REGISTRAR", "SELF"))
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACSelfRejectsForeignID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	recorder := performRBAC(t, claims, "/users/user-2", RBAC("REGISTRAR", "SELF"))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACRequiresClaims(t *testing.T) {
	recorder := performRBAC(t, nil, "/users/user-1", RBAC("REGISTRAR"))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleDean}
	recorder := performRBAC(t, claims, "/users/user-9", RequireRoles(models.RoleRegistrar, models.RoleDean))
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}
