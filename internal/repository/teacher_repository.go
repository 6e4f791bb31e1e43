package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/parokia/catechesis-api/internal/models"
)

// TeacherRepository handles persistence for catechist records.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherSelect = `SELECT t.id, t.email, t.full_name, t.class_id, c.name AS class_name,
        COALESCE(c.year_level, 0) AS year_level, t.active, t.created_at, t.updated_at
FROM teachers t
LEFT JOIN classes c ON c.id = t.class_id`

// List returns teachers matching the provided filter, joined with their class
// assignment so callers get the year level in one round trip.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(t.full_name ILIKE $%d OR t.email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("t.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Assigned != nil {
		if *filter.Assigned {
			where = append(where, "t.class_id IS NOT NULL")
		} else {
			where = append(where, "t.class_id IS NULL")
		}
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

	query := fmt.Sprintf("%s WHERE %s ORDER BY t.full_name LIMIT %d OFFSET %d", teacherSelect, whereClause, size, offset)
	var rows []models.Teacher
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM teachers t WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return rows, total, nil
}

// ListAssigned returns every active teacher with a class assignment. This is
// the reconciliation cohort; unassigned teachers owe nothing.
func (r *TeacherRepository) ListAssigned(ctx context.Context) ([]models.Teacher, error) {
	query := teacherSelect + " WHERE t.active = TRUE AND t.class_id IS NOT NULL ORDER BY t.full_name"
	var rows []models.Teacher
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list assigned teachers: %w", err)
	}
	return rows, nil
}

// FindByID fetches one teacher.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := teacherSelect + " WHERE t.id = $1"
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}
