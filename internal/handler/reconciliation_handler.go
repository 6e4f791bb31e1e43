package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/parokia/catechesis-api/internal/models"
	"github.com/parokia/catechesis-api/internal/service"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
	"github.com/parokia/catechesis-api/pkg/response"
)

// ReconciliationHandler exposes completion reports, alerts and exports.
type ReconciliationHandler struct {
	roster         *service.RosterService
	reconciliation *service.ReconciliationService
	alerts         *service.AlertService
	reports        *service.ReportService
}

// NewReconciliationHandler creates a new handler.
func NewReconciliationHandler(roster *service.RosterService, reconciliation *service.ReconciliationService, alerts *service.AlertService, reports *service.ReportService) *ReconciliationHandler {
	return &ReconciliationHandler{
		roster:         roster,
		reconciliation: reconciliation,
		alerts:         alerts,
		reports:        reports,
	}
}

func (h *ReconciliationHandler) runReconciliation(c *gin.Context) (map[string]models.TeacherCompletion, models.ReconciliationWindow, bool) {
	var window models.ReconciliationWindow

	from, err := queryDate(c, "from")
	if err != nil || from == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from is required and must be YYYY-MM-DD"))
		return nil, window, false
	}
	to, err := queryDate(c, "to")
	if err != nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to is required and must be YYYY-MM-DD"))
		return nil, window, false
	}
	window = models.ReconciliationWindow{From: *from, To: *to}

	chapters, ok := h.parseChapters(c)
	if !ok {
		return nil, window, false
	}
	if chapters == nil {
		if chapters, err = h.roster.ChapterUniverse(c.Request.Context()); err != nil {
			response.Error(c, err)
			return nil, window, false
		}
	}

	teachers, err := h.roster.AssignedTeachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return nil, window, false
	}

	completions, err := h.reconciliation.Reconcile(c.Request.Context(), teachers, window, chapters)
	if err != nil {
		response.Error(c, err)
		return nil, window, false
	}
	return completions, window, true
}

func (h *ReconciliationHandler) parseChapters(c *gin.Context) ([]int, bool) {
	raw := c.Query("chapters")
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	chapters := make([]int, 0, len(parts))
	for _, part := range parts {
		chapter, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || chapter < 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "chapters must be a comma separated list of positive numbers"))
			return nil, false
		}
		chapters = append(chapters, chapter)
	}
	return chapters, true
}

// Completion godoc
// @Summary Completion report
// @Description Per-teacher completion map for attendance and evaluation over a window
// @Tags Reconciliation
// @Produce json
// @Security BearerAuth
// @Param from query string true "Window start (YYYY-MM-DD)"
// @Param to query string true "Window end (YYYY-MM-DD)"
// @Param chapters query string false "Chapter universe, comma separated"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reconciliation/completion [get]
func (h *ReconciliationHandler) Completion(c *gin.Context) {
	completions, window, ok := h.runReconciliation(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, completions, nil, map[string]interface{}{
		"from": window.From.Format("2006-01-02"),
		"to":   window.To.Format("2006-01-02"),
	})
}

// Alerts godoc
// @Summary Missing submission alerts
// @Description Ranked alerts for teachers behind on attendance or evaluation
// @Tags Reconciliation
// @Produce json
// @Security BearerAuth
// @Param from query string true "Window start (YYYY-MM-DD)"
// @Param to query string true "Window end (YYYY-MM-DD)"
// @Param chapters query string false "Chapter universe, comma separated"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reconciliation/alerts [get]
func (h *ReconciliationHandler) Alerts(c *gin.Context) {
	completions, _, ok := h.runReconciliation(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, h.alerts.GenerateAlerts(completions), nil)
}

// Export godoc
// @Summary Export completion report
// @Description Download the completion report as CSV or PDF
// @Tags Reconciliation
// @Produce octet-stream
// @Security BearerAuth
// @Param from query string true "Window start (YYYY-MM-DD)"
// @Param to query string true "Window end (YYYY-MM-DD)"
// @Param chapters query string false "Chapter universe, comma separated"
// @Param format query string true "Export format (csv or pdf)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reconciliation/completion/export [get]
func (h *ReconciliationHandler) Export(c *gin.Context) {
	completions, window, ok := h.runReconciliation(c)
	if !ok {
		return
	}

	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportFormatCSV))))
	result, err := h.reports.RenderCompletion(completions, window, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.DownloadToken != "" {
		c.Header("X-Download-Token", result.DownloadToken)
		c.Header("X-Download-Expires", result.DownloadExpires.UTC().Format(http.TimeFormat))
	}
	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Download godoc
// @Summary Download archived export
// @Description Fetch a previously exported report using its signed token
// @Tags Reconciliation
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ReconciliationHandler) Download(c *gin.Context) {
	file, contentType, err := h.reports.OpenArchived(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export"))
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+info.Name())
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
