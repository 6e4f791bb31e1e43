package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parokia/catechesis-api/internal/models"
)

func completionWith(teacherID string, attendanceMissing, evaluationMissing int) models.TeacherCompletion {
	completion := models.TeacherCompletion{
		TeacherID:   teacherID,
		TeacherName: "Teacher " + teacherID,
		Attendance:  models.CompletionSummary{ByUnit: map[string]bool{}},
		Evaluation:  models.CompletionSummary{ByUnit: map[string]bool{}},
	}
	for i := 0; i < attendanceMissing; i++ {
		completion.Attendance.ByUnit[day(i+1).Format("2006-01-02")] = false
		completion.Attendance.TotalExpected++
	}
	completion.Attendance.ByUnit["2026-09-30"] = true
	completion.Attendance.TotalExpected++
	completion.Attendance.TotalCompleted = 1

	for i := 0; i < evaluationMissing; i++ {
		completion.Evaluation.ByUnit[string(rune('1'+i))] = false
		completion.Evaluation.TotalExpected++
	}
	return completion
}

func TestGenerateAlertsSeverityThresholds(t *testing.T) {
	svc := NewAlertService(AlertThresholds{})

	completions := map[string]models.TeacherCompletion{
		"t-1": completionWith("t-1", 4, 0),
		"t-2": completionWith("t-2", 2, 0),
	}
	alerts := svc.GenerateAlerts(completions)
	require.Len(t, alerts, 2)

	assert.Equal(t, models.AlertSeverityHigh, alerts[0].Severity)
	assert.Equal(t, "t-1", alerts[0].TeacherID)
	assert.Equal(t, models.AlertSeverityMedium, alerts[1].Severity)
	assert.Equal(t, "t-2", alerts[1].TeacherID)
}

func TestGenerateAlertsHighSeverityFirst(t *testing.T) {
	svc := NewAlertService(AlertThresholds{})

	completions := map[string]models.TeacherCompletion{
		"a": completionWith("a", 1, 0),
		"z": completionWith("z", 6, 0),
	}
	alerts := svc.GenerateAlerts(completions)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertSeverityHigh, alerts[0].Severity)
	assert.Equal(t, "z", alerts[0].TeacherID)
}

func TestGenerateAlertsSkipsCompleteAndEmpty(t *testing.T) {
	svc := NewAlertService(AlertThresholds{})

	complete := models.TeacherCompletion{
		TeacherID:  "done",
		Attendance: models.CompletionSummary{ByUnit: map[string]bool{"2026-09-01": true}, TotalExpected: 1, TotalCompleted: 1},
		Evaluation: models.CompletionSummary{ByUnit: map[string]bool{}},
	}
	alerts := svc.GenerateAlerts(map[string]models.TeacherCompletion{"done": complete})
	assert.Empty(t, alerts)
}

func TestGenerateAlertsOrdersChapterUnitsNumerically(t *testing.T) {
	svc := NewAlertService(AlertThresholds{})

	completion := models.TeacherCompletion{
		TeacherID:  "t-1",
		Attendance: models.CompletionSummary{ByUnit: map[string]bool{}},
		Evaluation: models.CompletionSummary{
			ByUnit:         map[string]bool{"2": false, "10": false, "1": false, "3": true},
			TotalExpected:  4,
			TotalCompleted: 1,
		},
	}
	alerts := svc.GenerateAlerts(map[string]models.TeacherCompletion{"t-1": completion})
	require.Len(t, alerts, 1)

	// Chapter "10" sorts after "2", not between "1" and "2".
	assert.Equal(t, []string{"1", "2", "10"}, alerts[0].MissingUnits)
}

func TestGenerateAlertsBothStreams(t *testing.T) {
	svc := NewAlertService(AlertThresholds{})

	completions := map[string]models.TeacherCompletion{
		"t-1": completionWith("t-1", 2, 6),
	}
	alerts := svc.GenerateAlerts(completions)
	require.Len(t, alerts, 2)

	assert.Equal(t, models.AlertKindEvaluation, alerts[0].Kind)
	assert.Equal(t, models.AlertSeverityHigh, alerts[0].Severity)
	assert.Len(t, alerts[0].MissingUnits, 6)
	assert.Equal(t, models.AlertKindAttendance, alerts[1].Kind)
	assert.Contains(t, alerts[1].Message, "missing 2 of 3 attendance dates")
}
