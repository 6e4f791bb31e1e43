package service

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/parokia/catechesis-api/internal/models"
)

// AlertThresholds holds the missing-unit counts above which an alert becomes
// high severity. Tunable via configuration rather than baked-in literals.
type AlertThresholds struct {
	AttendanceHighMissing int
	EvaluationHighMissing int
}

// AlertService derives severity-ranked missing-submission alerts from a
// completion map. Pure and synchronous.
type AlertService struct {
	thresholds AlertThresholds
}

// NewAlertService constructs the alert generator.
func NewAlertService(thresholds AlertThresholds) *AlertService {
	if thresholds.AttendanceHighMissing <= 0 {
		thresholds.AttendanceHighMissing = 3
	}
	if thresholds.EvaluationHighMissing <= 0 {
		thresholds.EvaluationHighMissing = 5
	}
	return &AlertService{thresholds: thresholds}
}

// GenerateAlerts emits one alert per incomplete stream per teacher, high
// severity first. Teachers owing nothing, or fully complete, produce no alert.
func (s *AlertService) GenerateAlerts(completionMap map[string]models.TeacherCompletion) []models.Alert {
	teacherIDs := make([]string, 0, len(completionMap))
	for id := range completionMap {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Strings(teacherIDs)

	alerts := make([]models.Alert, 0)
	for _, id := range teacherIDs {
		completion := completionMap[id]
		if alert, ok := s.streamAlert(models.AlertKindAttendance, completion, completion.Attendance, s.thresholds.AttendanceHighMissing, "attendance dates"); ok {
			alerts = append(alerts, alert)
		}
		if alert, ok := s.streamAlert(models.AlertKindEvaluation, completion, completion.Evaluation, s.thresholds.EvaluationHighMissing, "evaluation chapters"); ok {
			alerts = append(alerts, alert)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(alerts[i].Severity) < severityRank(alerts[j].Severity)
	})
	return alerts
}

func (s *AlertService) streamAlert(kind models.AlertKind, completion models.TeacherCompletion, summary models.CompletionSummary, highThreshold int, unitLabel string) (models.Alert, bool) {
	if summary.TotalExpected == 0 || summary.TotalCompleted >= summary.TotalExpected {
		return models.Alert{}, false
	}
	missing := summary.MissingUnits()
	sortUnits(missing)

	severity := models.AlertSeverityMedium
	if len(missing) > highThreshold {
		severity = models.AlertSeverityHigh
	}
	return models.Alert{
		Kind:         kind,
		Severity:     severity,
		TeacherID:    completion.TeacherID,
		TeacherName:  completion.TeacherName,
		Message:      fmt.Sprintf("%s is missing %d of %d %s", completion.TeacherName, len(missing), summary.TotalExpected, unitLabel),
		MissingUnits: missing,
	}, true
}

func severityRank(severity models.AlertSeverity) int {
	if severity == models.AlertSeverityHigh {
		return 0
	}
	return 1
}

// sortUnits orders unit keys numerically when both are numbers (chapter units)
// and lexically otherwise (ISO date units already sort chronologically).
// Plain string sort would put chapter "10" before "2".
func sortUnits(units []string) {
	sort.Slice(units, func(i, j int) bool {
		a, aErr := strconv.Atoi(units[i])
		b, bErr := strconv.Atoi(units[j])
		if aErr == nil && bErr == nil {
			return a < b
		}
		return units[i] < units[j]
	})
}
