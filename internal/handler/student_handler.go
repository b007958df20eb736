package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencampus-ph/portal-api/internal/models"
	"github.com/opencampus-ph/portal-api/internal/service"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
	"github.com/opencampus-ph/portal-api/pkg/response"
)

// StudentHandler exposes admission and student record endpoints.
type StudentHandler struct {
	students        *service.StudentService
	grades          *service.GradeService
	recommendations *service.RecommendationService
}

// NewStudentHandler constructs handler.
func NewStudentHandler(students *service.StudentService, grades *service.GradeService, recommendations *service.RecommendationService) *StudentHandler {
	return &StudentHandler{students: students, grades: grades, recommendations: recommendations}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param programId query string false "Filter by program"
// @Param yearLevel query int false "Filter by year level"
// @Param search query string false "Search by name or student number"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		ProgramID: c.Query("programId"),
		YearLevel: parseIntQuery(c, "yearLevel", 0),
		Search:    c.Query("search"),
		Page:      parseIntQuery(c, "page", 1),
		PageSize:  parseIntQuery(c, "pageSize", 20),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	studentID, err := h.resolveStudentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.students.Get(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Admit godoc
// @Summary Admit a new student
// @Description Creates the student's user account and academic record
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.AdmitStudentRequest true "Admission payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Admit(c *gin.Context) {
	var req service.AdmitStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Admit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update a student record
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Grades godoc
// @Summary Student grade view
// @Description Per-term transcript with GPA over approved grades
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/grades [get]
func (h *StudentHandler) Grades(c *gin.Context) {
	studentID, err := h.resolveStudentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.grades.StudentGrades(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Recommendations godoc
// @Summary Subject recommendations for the active term
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/recommendations [get]
func (h *StudentHandler) Recommendations(c *gin.Context) {
	studentID, err := h.resolveStudentID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.recommendations.Recommend(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// resolveStudentID maps the :id path parameter to a student record. "me" is
// accepted as an alias for the caller's own record; STUDENT-role callers are
// confined to their own record regardless of the requested ID.
func (h *StudentHandler) resolveStudentID(c *gin.Context) (string, error) {
	requested := c.Param("id")
	claims := claimsFromContext(c)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return requested, nil
	}
	own, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		return "", err
	}
	if requested != "me" && requested != own.ID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "students may only access their own record")
	}
	return own.ID, nil
}
