package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent        AttendanceStatus = "P"
	AttendanceStatusLate           AttendanceStatus = "L"
	AttendanceStatusUnattendedMass AttendanceStatus = "M"
	AttendanceStatusExcused        AttendanceStatus = "E"
	AttendanceStatusUnexcused      AttendanceStatus = "U"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusUnattendedMass,
		AttendanceStatusExcused, AttendanceStatusUnexcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one student's attendance for one lesson date.
// At most one row exists per (student_id, date); re-saving the key replaces
// status and resets the sync flag until the next successful mirror write.
type AttendanceRecord struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	TeacherID      string           `db:"teacher_id" json:"teacher_id"`
	ClassID        string           `db:"class_id" json:"class_id"`
	Date           time.Time        `db:"date" json:"date"`
	Status         AttendanceStatus `db:"status" json:"status"`
	SheetColumn    string           `db:"sheet_column" json:"sheet_column"`
	SyncedToSheets bool             `db:"synced_to_sheets" json:"synced_to_sheets"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter scopes listing queries.
type AttendanceFilter struct {
	TeacherID string
	ClassID   string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Synced    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
