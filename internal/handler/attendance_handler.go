package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parokia/catechesis-api/internal/models"
	"github.com/parokia/catechesis-api/internal/service"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
	"github.com/parokia/catechesis-api/pkg/response"
)

// AttendanceHandler exposes attendance submission and listing endpoints.
type AttendanceHandler struct {
	service *service.SubmissionService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.SubmissionService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Submit godoc
// @Summary Submit attendance
// @Description Save one date's attendance for a class and mirror it to the workbook
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SubmitAttendanceRequest true "Attendance submission"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var req service.SubmitAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	result, err := h.service.SubmitAttendance(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"sync_status": result.SyncStatus})
}

// List godoc
// @Summary List attendance records
// @Description List attendance records with filters and pagination
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param teacher_id query string false "Teacher ID"
// @Param class_id query string false "Class ID"
// @Param student_id query string false "Student ID"
// @Param status query string false "Attendance status"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param synced query bool false "Mirror sync flag"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.AttendanceFilter{
		TeacherID: c.Query("teacher_id"),
		ClassID:   c.Query("class_id"),
		StudentID: c.Query("student_id"),
		Synced:    queryBool(c, "synced"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 50),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AttendanceStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status filter"))
			return
		}
		filter.Status = &status
	}
	var err error
	if filter.DateFrom, err = queryDate(c, "date_from"); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date_from must be YYYY-MM-DD"))
		return
	}
	if filter.DateTo, err = queryDate(c, "date_to"); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date_to must be YYYY-MM-DD"))
		return
	}

	records, pagination, err := h.service.ListAttendance(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}
