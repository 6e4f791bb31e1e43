package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parokia/catechesis-api/internal/models"
)

func absenceRows(status models.AbsenceRequestStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "absence_date", "guardian_name", "reason", "status", "reviewer_id", "reviewer_notes", "reviewed_at", "attendance_record_id", "created_at", "updated_at"}).
		AddRow("r-1", "s-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), "A Guardian", "family trip", status, nil, nil, nil, nil, time.Now(), time.Now())
}

func TestAbsenceRequestRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAbsenceRequestRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM absence_requests WHERE id").
		WithArgs("r-1").
		WillReturnRows(absenceRows(models.AbsenceRequestPending))

	req, err := repo.FindByID(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", req.ID)
	assert.Equal(t, models.AbsenceRequestPending, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenceRequestRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAbsenceRequestRepository(db)

	status := models.AbsenceRequestPending
	mock.ExpectQuery(regexp.QuoteMeta("status = $1 ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs(status).
		WillReturnRows(absenceRows(status))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM absence_requests")).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.List(context.Background(), models.AbsenceRequestFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenceRequestRepositoryMarkReviewed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAbsenceRequestRepository(db)

	recordID := "a-1"
	mock.ExpectQuery("UPDATE absence_requests").
		WithArgs(models.AbsenceRequestApproved, "u-1", "confirmed by phone", sqlmock.AnyArg(), &recordID, "r-1", models.AbsenceRequestPending).
		WillReturnRows(absenceRows(models.AbsenceRequestApproved))

	req, err := repo.MarkReviewed(context.Background(), "r-1", models.AbsenceRequestApproved, "u-1", "confirmed by phone", &recordID)
	require.NoError(t, err)
	assert.Equal(t, models.AbsenceRequestApproved, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenceRequestRepositoryMarkReviewedAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAbsenceRequestRepository(db)

	// The status guard in the WHERE clause matches no row once the request
	// was decided.
	mock.ExpectQuery("UPDATE absence_requests").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.MarkReviewed(context.Background(), "r-1", models.AbsenceRequestRejected, "u-1", "duplicate", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
