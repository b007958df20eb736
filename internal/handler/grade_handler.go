package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opencampus-ph/portal-api/internal/service"
	appErrors "github.com/opencampus-ph/portal-api/pkg/errors"
	"github.com/opencampus-ph/portal-api/pkg/response"
)

// GradeHandler exposes grade encoding and approval endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Encode godoc
// @Summary Encode a batch of grades
// @Description Professors submit grades for their own sections; all rows land unapproved
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.EncodeGradesRequest true "Grade batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades/encode [post]
func (h *GradeHandler) Encode(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.EncodeGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	count, err := h.grades.EncodeBatch(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"encoded": count}, nil)
}

// Approve godoc
// @Summary Approve a pending grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/{id}/approve [post]
func (h *GradeHandler) Approve(c *gin.Context) {
	grade, err := h.grades.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Pending godoc
// @Summary List pending grades
// @Description Registrar approval queue
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/pending [get]
func (h *GradeHandler) Pending(c *gin.Context) {
	pending, err := h.grades.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}
