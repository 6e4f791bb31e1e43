package models

import "time"

// ReconciliationWindow bounds the attendance pass of a reconciliation run.
type ReconciliationWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CompletionSummary aggregates per-unit completion for one teacher and one
// stream. Unit keys are lesson dates (YYYY-MM-DD) for attendance and chapter
// numbers for evaluation. Completion means at least one record exists for the
// teacher and unit, not full-roster coverage.
type CompletionSummary struct {
	ByUnit         map[string]bool `json:"by_unit"`
	TotalExpected  int             `json:"total_expected"`
	TotalCompleted int             `json:"total_completed"`
	CompletionRate int             `json:"completion_rate"`
}

// MissingUnits returns the unit keys whose per-unit flag is false.
func (s CompletionSummary) MissingUnits() []string {
	missing := make([]string, 0)
	for unit, done := range s.ByUnit {
		if !done {
			missing = append(missing, unit)
		}
	}
	return missing
}

// TeacherCompletion pairs both streams for one teacher.
type TeacherCompletion struct {
	TeacherID   string            `json:"teacher_id"`
	TeacherName string            `json:"teacher_name"`
	Attendance  CompletionSummary `json:"attendance"`
	Evaluation  CompletionSummary `json:"evaluation"`
}

// AlertKind identifies which stream an alert belongs to.
type AlertKind string

const (
	AlertKindAttendance AlertKind = "ATTENDANCE"
	AlertKindEvaluation AlertKind = "EVALUATION"
)

// AlertSeverity ranks missing-submission alerts.
type AlertSeverity string

const (
	AlertSeverityHigh   AlertSeverity = "HIGH"
	AlertSeverityMedium AlertSeverity = "MEDIUM"
)

// Alert is one actionable missing-submission gap for a teacher.
type Alert struct {
	Kind         AlertKind     `json:"kind"`
	Severity     AlertSeverity `json:"severity"`
	TeacherID    string        `json:"teacher_id"`
	TeacherName  string        `json:"teacher_name"`
	Message      string        `json:"message"`
	MissingUnits []string      `json:"missing_units"`
}
