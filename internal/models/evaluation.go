package models

import "time"

// EvaluationRecord is one student's rating for one curriculum chapter.
// At most one row exists per (student_id, chapter); same sync discipline as
// attendance records.
type EvaluationRecord struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	Chapter        int       `db:"chapter" json:"chapter"`
	Rating         int       `db:"rating" json:"rating"`
	SheetColumn    string    `db:"sheet_column" json:"sheet_column"`
	SyncedToSheets bool      `db:"synced_to_sheets" json:"synced_to_sheets"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EvaluationFilter scopes listing queries.
type EvaluationFilter struct {
	TeacherID string
	ClassID   string
	StudentID string
	Chapter   *int
	Synced    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
