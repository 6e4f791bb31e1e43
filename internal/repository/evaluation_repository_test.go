package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parokia/catechesis-api/internal/models"
)

func evaluationRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "student_id", "teacher_id", "class_id", "chapter", "rating", "sheet_column", "synced_to_sheets", "created_at", "updated_at"})
	for _, id := range ids {
		rows.AddRow(id, "s-1", "t-1", "c-1", 3, 4, "Ch/03", false, time.Now(), time.Now())
	}
	return rows
}

func TestEvaluationRepositoryUpsertMany(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO evaluation_records").
		WithArgs(sqlmock.AnyArg(), "s-1", "t-1", "c-1", 3, 4, "Ch/03", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(evaluationRows("e-1"))
	mock.ExpectCommit()

	stored, err := repo.UpsertMany(context.Background(), []models.EvaluationRecord{{
		StudentID:   "s-1",
		TeacherID:   "t-1",
		ClassID:     "c-1",
		Chapter:     3,
		Rating:      4,
		SheetColumn: "Ch/03",
	}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "e-1", stored[0].ID)
	assert.Equal(t, 3, stored[0].Chapter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryMarkSynced(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluation_records SET synced_to_sheets = TRUE, updated_at = $1 WHERE id = ANY($2)")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSynced(context.Background(), []string{"e-1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	chapter := 3
	mock.ExpectQuery(regexp.QuoteMeta("chapter = $2 ORDER BY chapter, student_id LIMIT 50 OFFSET 0")).
		WithArgs("t-1", chapter).
		WillReturnRows(evaluationRows("e-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM evaluation_records")).
		WithArgs("t-1", chapter).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.List(context.Background(), models.EvaluationFilter{TeacherID: "t-1", Chapter: &chapter})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryChaptersForTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT chapter FROM evaluation_records WHERE teacher_id = $1 ORDER BY chapter")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"chapter"}).AddRow(1).AddRow(2).AddRow(5))

	chapters, err := repo.ChaptersForTeacher(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5}, chapters)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryDistinctChapters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT chapter FROM evaluation_records ORDER BY chapter")).
		WillReturnRows(sqlmock.NewRows([]string{"chapter"}).AddRow(1).AddRow(2))

	chapters, err := repo.DistinctChapters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, chapters)
	assert.NoError(t, mock.ExpectationsWereMet())
}
