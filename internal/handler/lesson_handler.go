package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parokia/catechesis-api/internal/service"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
	"github.com/parokia/catechesis-api/pkg/response"
)

// LessonHandler exposes the lesson occurrence log.
type LessonHandler struct {
	service *service.RosterService
}

// NewLessonHandler creates a new handler.
func NewLessonHandler(svc *service.RosterService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// Create godoc
// @Summary Record lesson occurrence
// @Description Append one lesson date with its cohort tag to the log
// @Tags Lessons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateLessonRequest true "Lesson occurrence"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var req service.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	occurrence, err := h.service.CreateLesson(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, occurrence)
}

// List godoc
// @Summary List lesson occurrences
// @Description List lesson occurrences inside a date window
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param from query string true "Window start (YYYY-MM-DD)"
// @Param to query string true "Window end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	from, err := queryDate(c, "from")
	if err != nil || from == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from is required and must be YYYY-MM-DD"))
		return
	}
	to, err := queryDate(c, "to")
	if err != nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to is required and must be YYYY-MM-DD"))
		return
	}

	lessons, err := h.service.ListLessons(c.Request.Context(), *from, *to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lessons, nil)
}
