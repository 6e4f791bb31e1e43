package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parokia/catechesis-api/internal/models"
	"github.com/parokia/catechesis-api/internal/service"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
	"github.com/parokia/catechesis-api/pkg/response"
)

// AbsenceHandler exposes the absence request review workflow.
type AbsenceHandler struct {
	service *service.AbsenceService
}

// NewAbsenceHandler creates a new handler.
func NewAbsenceHandler(svc *service.AbsenceService) *AbsenceHandler {
	return &AbsenceHandler{service: svc}
}

// List godoc
// @Summary List absence requests
// @Description List absence requests with filters and pagination
// @Tags Absence
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student ID"
// @Param status query string false "Request status"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /absence-requests [get]
func (h *AbsenceHandler) List(c *gin.Context) {
	filter := models.AbsenceRequestFilter{
		StudentID: c.Query("student_id"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 50),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AbsenceRequestStatus(raw)
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

	requests, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination)
}

type reviewPayload struct {
	Notes string `json:"notes"`
}

// Approve godoc
// @Summary Approve absence request
// @Description Approve a pending request, writing an excused attendance record
// @Tags Absence
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body reviewPayload false "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absence-requests/{id}/approve [post]
func (h *AbsenceHandler) Approve(c *gin.Context) {
	var payload reviewPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
			return
		}
	}

	record, err := h.service.Approve(c.Request.Context(), c.Param("id"), payload.Notes, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Reject godoc
// @Summary Reject absence request
// @Description Reject a pending request with mandatory reviewer notes
// @Tags Absence
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body reviewPayload true "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absence-requests/{id}/reject [post]
func (h *AbsenceHandler) Reject(c *gin.Context) {
	var payload reviewPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), payload.Notes, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}
