package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parokia/catechesis-api/internal/models"
)

// AbsenceRequestRepository handles persistence for guardian excuse requests.
type AbsenceRequestRepository struct {
	db *sqlx.DB
}

// NewAbsenceRequestRepository constructs the repository.
func NewAbsenceRequestRepository(db *sqlx.DB) *AbsenceRequestRepository {
	return &AbsenceRequestRepository{db: db}
}

const absenceColumns = `id, student_id, absence_date, guardian_name, reason, status, reviewer_id, reviewer_notes, reviewed_at, attendance_record_id, created_at, updated_at`

// FindByID fetches one request.
func (r *AbsenceRequestRepository) FindByID(ctx context.Context, id string) (*models.AbsenceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM absence_requests WHERE id = $1`, absenceColumns)
	var req models.AbsenceRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the provided filter.
func (r *AbsenceRequestRepository) List(ctx context.Context, filter models.AbsenceRequestFilter) ([]models.AbsenceRequest, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("absence_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("absence_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM absence_requests WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		absenceColumns, whereClause, size, offset)
	var rows []models.AbsenceRequest
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list absence requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM absence_requests WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count absence requests: %w", err)
	}
	return rows, total, nil
}

// MarkReviewed stamps the review outcome onto a pending request and, for
// approvals, links the attendance record the approval produced.
func (r *AbsenceRequestRepository) MarkReviewed(ctx context.Context, id string, status models.AbsenceRequestStatus, reviewerID, notes string, attendanceRecordID *string) (*models.AbsenceRequest, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE absence_requests
SET status = $1, reviewer_id = $2, reviewer_notes = $3, reviewed_at = $4, attendance_record_id = $5, updated_at = $4
WHERE id = $6 AND status = $7
RETURNING %s`, absenceColumns)
	var req models.AbsenceRequest
	if err := r.db.GetContext(ctx, &req, query, status, reviewerID, notes, now, attendanceRecordID, id, models.AbsenceRequestPending); err != nil {
		return nil, err
	}
	return &req, nil
}
