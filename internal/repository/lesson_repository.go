package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parokia/catechesis-api/internal/models"
)

// LessonRepository handles persistence for the lesson log. Occurrences are
// append-only; the reconciliation engine reads them as the expected-unit set.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// ListWindow returns occurrences whose date falls inside [from, to].
func (r *LessonRepository) ListWindow(ctx context.Context, from, to time.Time) ([]models.LessonOccurrence, error) {
	query := `SELECT id, date, cohort, created_at FROM lesson_occurrences
WHERE date >= $1 AND date <= $2
ORDER BY date`
	var rows []models.LessonOccurrence
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list lesson window: %w", err)
	}
	return rows, nil
}

// Create logs a new occurrence. Duplicate (date, cohort) pairs are rejected by
// the storage layer.
func (r *LessonRepository) Create(ctx context.Context, occurrence *models.LessonOccurrence) (*models.LessonOccurrence, error) {
	if occurrence.ID == "" {
		occurrence.ID = uuid.NewString()
	}
	if occurrence.CreatedAt.IsZero() {
		occurrence.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO lesson_occurrences (id, date, cohort, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, date, cohort, created_at`
	var stored models.LessonOccurrence
	if err := r.db.GetContext(ctx, &stored, query, occurrence.ID, occurrence.Date, occurrence.Cohort, occurrence.CreatedAt); err != nil {
		return nil, fmt.Errorf("create lesson occurrence %s: %w", occurrence.Date.Format("2006-01-02"), err)
	}
	return &stored, nil
}
