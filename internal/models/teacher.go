package models

import "time"

// Teacher represents a catechist record. A teacher without an assigned class
// is excluded from every reconciliation pass.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	ClassID   *string   `db:"class_id" json:"class_id,omitempty"`
	ClassName *string   `db:"class_name" json:"class_name,omitempty"`
	YearLevel int       `db:"year_level" json:"year_level"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasClass reports whether the teacher owns a class assignment.
func (t Teacher) HasClass() bool {
	return t.ClassID != nil && *t.ClassID != ""
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Active    *bool
	Assigned  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
