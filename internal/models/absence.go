package models

import "time"

// AbsenceRequestStatus tracks the review state of a guardian excuse request.
type AbsenceRequestStatus string

const (
	AbsenceRequestPending  AbsenceRequestStatus = "PENDING"
	AbsenceRequestApproved AbsenceRequestStatus = "APPROVED"
	AbsenceRequestRejected AbsenceRequestStatus = "REJECTED"
)

// AbsenceRequest is a guardian-sourced excuse for one student/date. Approval
// injects an Excused attendance record through the ordinary upsert path.
type AbsenceRequest struct {
	ID                 string               `db:"id" json:"id"`
	StudentID          string               `db:"student_id" json:"student_id"`
	AbsenceDate        time.Time            `db:"absence_date" json:"absence_date"`
	GuardianName       string               `db:"guardian_name" json:"guardian_name"`
	Reason             string               `db:"reason" json:"reason"`
	Status             AbsenceRequestStatus `db:"status" json:"status"`
	ReviewerID         *string              `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewerNotes      *string              `db:"reviewer_notes" json:"reviewer_notes,omitempty"`
	ReviewedAt         *time.Time           `db:"reviewed_at" json:"reviewed_at,omitempty"`
	AttendanceRecordID *string              `db:"attendance_record_id" json:"attendance_record_id,omitempty"`
	CreatedAt          time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time            `db:"updated_at" json:"updated_at"`
}

// AbsenceRequestFilter scopes listing queries.
type AbsenceRequestFilter struct {
	StudentID string
	Status    *AbsenceRequestStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
