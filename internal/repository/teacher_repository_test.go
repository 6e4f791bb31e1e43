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

func teacherRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "class_id", "class_name", "year_level", "active", "created_at", "updated_at"})
	for _, id := range ids {
		rows.AddRow(id, id+"@parish.example", "Teacher "+id, "c-1", "Year 4", 4, true, time.Now(), time.Now())
	}
	return rows
}

func TestTeacherRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN classes c ON c.id = t.class_id WHERE 1=1 ORDER BY t.full_name LIMIT 50 OFFSET 0")).
		WillReturnRows(teacherRows("t-1", "t-2"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM teachers t")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	list, total, err := repo.List(context.Background(), models.TeacherFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, 4, list[0].YearLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("(t.full_name ILIKE $1 OR t.email ILIKE $1)")).
		WithArgs("%anna%").
		WillReturnRows(teacherRows("t-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM teachers t")).
		WithArgs("%anna%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, _, err := repo.List(context.Background(), models.TeacherFilter{Search: "anna"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryListAssigned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.active = TRUE AND t.class_id IS NOT NULL ORDER BY t.full_name")).
		WillReturnRows(teacherRows("t-1"))

	list, err := repo.ListAssigned(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t-1", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
		WithArgs("t-1").
		WillReturnRows(teacherRows("t-1"))

	teacher, err := repo.FindByID(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", teacher.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
