package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/parokia/catechesis-api/internal/models"
)

// EvaluationRepository handles persistence for chapter evaluation records.
// The table declares a unique key on (student_id, chapter).
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs the repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

const evaluationColumns = `id, student_id, teacher_id, class_id, chapter, rating, sheet_column, synced_to_sheets, created_at, updated_at`

// UpsertMany inserts or replaces one record per (student_id, chapter) key
// inside a single transaction.
func (r *EvaluationRepository) UpsertMany(ctx context.Context, records []models.EvaluationRecord) ([]models.EvaluationRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin evaluation upsert: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`INSERT INTO evaluation_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (student_id, chapter)
DO UPDATE SET teacher_id = EXCLUDED.teacher_id, class_id = EXCLUDED.class_id,
        rating = EXCLUDED.rating, sheet_column = EXCLUDED.sheet_column,
        synced_to_sheets = EXCLUDED.synced_to_sheets, updated_at = EXCLUDED.updated_at
RETURNING %s`, evaluationColumns, evaluationColumns)

	now := time.Now().UTC()
	stored := make([]models.EvaluationRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var row models.EvaluationRecord
		if err := tx.GetContext(ctx, &row, query,
			rec.ID, rec.StudentID, rec.TeacherID, rec.ClassID, rec.Chapter,
			rec.Rating, rec.SheetColumn, rec.SyncedToSheets, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("upsert evaluation %s/ch%d: %w", rec.StudentID, rec.Chapter, err)
		}
		stored = append(stored, row)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit evaluation upsert: %w", err)
	}
	commit = true
	return stored, nil
}

// MarkSynced flips the sync flag for the given record ids.
func (r *EvaluationRepository) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE evaluation_records SET synced_to_sheets = TRUE, updated_at = $1 WHERE id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("mark evaluation synced: %w", err)
	}
	return nil
}

// List returns evaluation rows matching the provided filter.
func (r *EvaluationRepository) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, int, error) {
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
	if filter.Chapter != nil {
		where = append(where, fmt.Sprintf("chapter = $%d", len(args)+1))
		args = append(args, *filter.Chapter)
	}
	if filter.Synced != nil {
		where = append(where, fmt.Sprintf("synced_to_sheets = $%d", len(args)+1))
		args = append(args, *filter.Synced)
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

	query := fmt.Sprintf(`SELECT %s FROM evaluation_records WHERE %s ORDER BY chapter, student_id LIMIT %d OFFSET %d`,
		evaluationColumns, whereClause, size, offset)

	var rows []models.EvaluationRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list evaluations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM evaluation_records WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count evaluations: %w", err)
	}
	return rows, total, nil
}

// ChaptersForTeacher returns the distinct chapters a teacher has any record
// for. One query feeds the whole evaluation pass of a reconciliation run.
func (r *EvaluationRepository) ChaptersForTeacher(ctx context.Context, teacherID string) ([]int, error) {
	query := `SELECT DISTINCT chapter FROM evaluation_records WHERE teacher_id = $1 ORDER BY chapter`
	var chapters []int
	if err := r.db.SelectContext(ctx, &chapters, query, teacherID); err != nil {
		return nil, fmt.Errorf("evaluation chapters for teacher %s: %w", teacherID, err)
	}
	return chapters, nil
}

// DistinctChapters returns the chapter universe derived from existing records.
// There is no authoritative chapter registry; the set only grows.
func (r *EvaluationRepository) DistinctChapters(ctx context.Context) ([]int, error) {
	query := `SELECT DISTINCT chapter FROM evaluation_records ORDER BY chapter`
	var chapters []int
	if err := r.db.SelectContext(ctx, &chapters, query); err != nil {
		return nil, fmt.Errorf("distinct evaluation chapters: %w", err)
	}
	return chapters, nil
}
