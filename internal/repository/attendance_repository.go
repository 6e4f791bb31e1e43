package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/parokia/catechesis-api/internal/models"
)

// AttendanceRepository handles persistence for attendance records. The table
// declares a unique key on (student_id, date); concurrent upserts for the same
// key resolve last-write-wins.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, student_id, teacher_id, class_id, date, status, sheet_column, synced_to_sheets, created_at, updated_at`

// UpsertMany inserts or replaces one record per (student_id, date) key inside a
// single transaction. Either every record is stored or none is.
func (r *AttendanceRepository) UpsertMany(ctx context.Context, records []models.AttendanceRecord) ([]models.AttendanceRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance upsert: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`INSERT INTO attendance_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (student_id, date)
DO UPDATE SET teacher_id = EXCLUDED.teacher_id, class_id = EXCLUDED.class_id,
        status = EXCLUDED.status, sheet_column = EXCLUDED.sheet_column,
        synced_to_sheets = EXCLUDED.synced_to_sheets, updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns, attendanceColumns)

	now := time.Now().UTC()
	stored := make([]models.AttendanceRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var row models.AttendanceRecord
		if err := tx.GetContext(ctx, &row, query,
			rec.ID, rec.StudentID, rec.TeacherID, rec.ClassID, rec.Date,
			rec.Status, rec.SheetColumn, rec.SyncedToSheets, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("upsert attendance %s/%s: %w", rec.StudentID, rec.Date.Format("2006-01-02"), err)
		}
		stored = append(stored, row)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance upsert: %w", err)
	}
	commit = true
	return stored, nil
}

// MarkSynced flips the sync flag for the given record ids.
func (r *AttendanceRepository) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE attendance_records SET synced_to_sheets = TRUE, updated_at = $1 WHERE id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("mark attendance synced: %w", err)
	}
	return nil
}

// FindByKey fetches the record for one (student, date) key.
func (r *AttendanceRepository) FindByKey(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE student_id = $1 AND date = $2`, attendanceColumns)
	var rec models.AttendanceRecord
	if err := r.db.GetContext(ctx, &rec, query, studentID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance %s/%s: %w", studentID, date.Format("2006-01-02"), err)
	}
	return &rec, nil
}

// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Synced != nil {
		where = append(where, fmt.Sprintf("synced_to_sheets = $%d", len(args)+1))
		args = append(args, *filter.Synced)
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := "date"
	if filter.SortBy == "updated_at" || filter.SortBy == "status" {
		sortColumn = filter.SortBy
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		attendanceColumns, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_records WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// DatesForTeacher returns the distinct lesson dates a teacher has any record
// for within the window. One range query feeds the whole attendance pass of a
// reconciliation run.
func (r *AttendanceRepository) DatesForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]time.Time, error) {
	query := `SELECT DISTINCT date FROM attendance_records
WHERE teacher_id = $1 AND date >= $2 AND date <= $3
ORDER BY date`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("attendance dates for teacher %s: %w", teacherID, err)
	}
	return dates, nil
}
