package models

import "time"

// CohortTag classifies a lesson occurrence by the catechism group it targets.
type CohortTag string

const (
	CohortJunior CohortTag = "JUNIOR"
	CohortSenior CohortTag = "SENIOR"
	CohortBoth   CohortTag = "BOTH"
)

// Valid returns true when the tag is a supported value.
func (t CohortTag) Valid() bool {
	switch t {
	case CohortJunior, CohortSenior, CohortBoth:
		return true
	default:
		return false
	}
}

// LessonOccurrence is one logged lesson date. Immutable once logged; the
// reconciliation engine consumes occurrences read-only.
type LessonOccurrence struct {
	ID        string    `db:"id" json:"id"`
	Date      time.Time `db:"date" json:"date"`
	Cohort    CohortTag `db:"cohort" json:"cohort"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
