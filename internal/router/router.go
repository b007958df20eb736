package router

import (
	"github.com/gin-gonic/gin"

	"github.com/opencampus-ph/portal-api/internal/handler"
	"github.com/opencampus-ph/portal-api/internal/middleware"
	"github.com/opencampus-ph/portal-api/internal/models"
	"github.com/opencampus-ph/portal-api/internal/service"
)

// Handlers groups every HTTP handler registered on the router.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Terms       *handler.TermHandler
	Subjects    *handler.SubjectHandler
	Programs    *handler.ProgramHandler
	Sections    *handler.SectionHandler
	Students    *handler.StudentHandler
	Grades      *handler.GradeHandler
	Enrollments *handler.EnrollmentHandler
	Dashboard   *handler.DashboardHandler
	Metrics     *handler.MetricsHandler
}

// Register mounts all routes under the API prefix with JWT and RBAC guards.
func Register(r *gin.Engine, prefix string, auth *service.AuthService, h Handlers, dashboardEnabled bool) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", middleware.JWT(auth), h.Auth.Logout)
		authGroup.POST("/change-password", middleware.JWT(auth), h.Auth.ChangePassword)
		authGroup.GET("/me", middleware.JWT(auth), h.Auth.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))

	staff := middleware.RequireRoles(models.RoleRegistrar, models.RoleDean)

	users := protected.Group("/users")
	{
		users.GET("", staff, h.Users.List)
		users.GET("/:id", middleware.RBAC("REGISTRAR", "DEAN", "SELF"), h.Users.Get)
		users.POST("", middleware.RequireRoles(models.RoleDean), h.Users.Create)
		users.PUT("/:id", middleware.RequireRoles(models.RoleDean), h.Users.Update)
	}

	terms := protected.Group("/terms")
	{
		terms.GET("", h.Terms.List)
		terms.GET("/active", h.Terms.Active)
		terms.GET("/:id", h.Terms.Get)
		terms.POST("", staff, h.Terms.Create)
		terms.PUT("/:id", staff, h.Terms.Update)
		terms.POST("/:id/activate", staff, h.Terms.Activate)
		terms.DELETE("/:id", staff, h.Terms.Delete)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", h.Subjects.List)
		subjects.GET("/:id", h.Subjects.Get)
		subjects.POST("", staff, h.Subjects.Create)
		subjects.PUT("/:id", staff, h.Subjects.Update)
		subjects.DELETE("/:id", staff, h.Subjects.Delete)
	}

	programs := protected.Group("/programs")
	{
		programs.GET("", h.Programs.List)
		programs.GET("/:id", h.Programs.Get)
		programs.POST("", staff, h.Programs.Create)
		programs.PUT("/:id", staff, h.Programs.Update)
		programs.GET("/:id/subjects", h.Programs.Curriculum)
		programs.POST("/:id/subjects", staff, h.Programs.AddSubject)
		programs.DELETE("/:id/subjects/:mappingId", staff, h.Programs.RemoveSubject)
	}

	sections := protected.Group("/sections")
	{
		sections.GET("", h.Sections.List)
		sections.GET("/:id", h.Sections.Get)
		sections.GET("/:id/availability", h.Sections.Availability)
		sections.POST("", staff, h.Sections.Create)
		sections.PUT("/:id", staff, h.Sections.Update)
		sections.DELETE("/:id", staff, h.Sections.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", middleware.RequireRoles(models.RoleRegistrar, models.RoleDean, models.RoleAdmission, models.RoleProfessor), h.Students.List)
		students.GET("/:id", h.Students.Get)
		students.POST("", middleware.RequireRoles(models.RoleAdmission, models.RoleRegistrar), h.Students.Admit)
		students.PUT("/:id", middleware.RequireRoles(models.RoleAdmission, models.RoleRegistrar), h.Students.Update)
		students.GET("/:id/grades", h.Students.Grades)
		students.GET("/:id/recommendations", h.Students.Recommendations)
	}

	grades := protected.Group("/grades")
	{
		grades.POST("/encode", middleware.RequireRoles(models.RoleProfessor), h.Grades.Encode)
		grades.GET("/pending", staff, h.Grades.Pending)
		grades.POST("/:id/approve", middleware.RequireRoles(models.RoleRegistrar), h.Grades.Approve)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", staff, h.Enrollments.List)
		enrollments.POST("", middleware.RequireRoles(models.RoleStudent, models.RoleRegistrar), h.Enrollments.Enroll)
		enrollments.GET("/:id/subjects", h.Enrollments.Subjects)
		enrollments.GET("/:id/certificate", h.Enrollments.Certificate)
	}

	if dashboardEnabled {
		dashboard := protected.Group("/dashboard")
		dashboard.Use(staff)
		{
			dashboard.GET("", h.Dashboard.Summary)
			dashboard.GET("/system", h.Dashboard.System)
		}
	}
}
