package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parokia/catechesis-api/internal/models"
	"github.com/parokia/catechesis-api/internal/service"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
	"github.com/parokia/catechesis-api/pkg/response"
)

// EvaluationHandler exposes chapter evaluation submission and listing.
type EvaluationHandler struct {
	service *service.SubmissionService
}

// NewEvaluationHandler creates a new handler.
func NewEvaluationHandler(svc *service.SubmissionService) *EvaluationHandler {
	return &EvaluationHandler{service: svc}
}

// Submit godoc
// @Summary Submit chapter evaluation
// @Description Save one chapter's evaluations for a class and mirror them to the workbook
// @Tags Evaluation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SubmitEvaluationRequest true "Evaluation submission"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Submit(c *gin.Context) {
	var req service.SubmitEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}

	result, err := h.service.SubmitEvaluation(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"sync_status": result.SyncStatus})
}

// List godoc
// @Summary List evaluation records
// @Description List chapter evaluation records with filters and pagination
// @Tags Evaluation
// @Produce json
// @Security BearerAuth
// @Param teacher_id query string false "Teacher ID"
// @Param class_id query string false "Class ID"
// @Param student_id query string false "Student ID"
// @Param chapter query int false "Chapter number"
// @Param synced query bool false "Mirror sync flag"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	filter := models.EvaluationFilter{
		TeacherID: c.Query("teacher_id"),
		ClassID:   c.Query("class_id"),
		StudentID: c.Query("student_id"),
		Synced:    queryBool(c, "synced"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 50),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("chapter"); raw != "" {
		chapter := queryInt(c, "chapter", 0)
		if chapter < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "chapter must be a positive number"))
			return
		}
		filter.Chapter = &chapter
	}

	records, pagination, err := h.service.ListEvaluations(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}
