package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parokia/catechesis-api/internal/models"
	"github.com/parokia/catechesis-api/internal/sheets"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
	"github.com/parokia/catechesis-api/pkg/jobs"
)

type attendanceRepoStub struct {
	upsertErr   error
	upserted    [][]models.AttendanceRecord
	syncedIDs   [][]string
	markErr     error
	listRecords []models.AttendanceRecord
	listTotal   int
	listErr     error
}

func (s *attendanceRepoStub) UpsertMany(ctx context.Context, records []models.AttendanceRecord) ([]models.AttendanceRecord, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upserted = append(s.upserted, records)
	return records, nil
}

func (s *attendanceRepoStub) MarkSynced(ctx context.Context, ids []string) error {
	s.syncedIDs = append(s.syncedIDs, ids)
	return s.markErr
}

func (s *attendanceRepoStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return s.listRecords, s.listTotal, s.listErr
}

type evaluationRepoStub struct {
	upsertErr error
	upserted  [][]models.EvaluationRecord
	syncedIDs [][]string
}

func (s *evaluationRepoStub) UpsertMany(ctx context.Context, records []models.EvaluationRecord) ([]models.EvaluationRecord, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upserted = append(s.upserted, records)
	return records, nil
}

func (s *evaluationRepoStub) MarkSynced(ctx context.Context, ids []string) error {
	s.syncedIDs = append(s.syncedIDs, ids)
	return nil
}

func (s *evaluationRepoStub) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, int, error) {
	return nil, 0, nil
}

type mirrorStub struct {
	err     error
	result  *sheets.BatchResult
	sheets  []string
	batches [][]sheets.Row
}

func (s *mirrorStub) WriteBatch(ctx context.Context, sheet string, rows []sheets.Row) (*sheets.BatchResult, error) {
	s.sheets = append(s.sheets, sheet)
	s.batches = append(s.batches, rows)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &sheets.BatchResult{OK: true}, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (s *queueStub) Enqueue(job jobs.Job) error {
	s.jobs = append(s.jobs, job)
	return s.err
}

func teacherActor() *models.JWTClaims {
	teacherID := "t-1"
	return &models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher, TeacherID: &teacherID}
}

func newSubmissionFixture() (*SubmissionService, *attendanceRepoStub, *evaluationRepoStub, *mirrorStub, *queueStub) {
	attendance := &attendanceRepoStub{}
	evaluation := &evaluationRepoStub{}
	mirror := &mirrorStub{}
	queue := &queueStub{}
	svc := NewSubmissionService(attendance, evaluation, mirror, queue, nil, nil, nil, nil, SubmissionServiceConfig{})
	return svc, attendance, evaluation, mirror, queue
}

func TestSubmitAttendanceSavesThenSyncs(t *testing.T) {
	svc, attendance, _, mirror, queue := newSubmissionFixture()

	result, err := svc.SubmitAttendance(context.Background(), SubmitAttendanceRequest{
		Date:    "2026-09-07",
		ClassID: "c-1",
		Entries: []AttendanceEntry{
			{StudentID: "s-1", Status: "p"},
			{StudentID: "s-2", Status: "M"},
		},
	}, teacherActor())
	require.NoError(t, err)

	assert.Equal(t, SyncStatusSynced, result.SyncStatus)
	require.Len(t, result.Saved, 2)
	assert.Equal(t, models.AttendanceStatusPresent, result.Saved[0].Status)
	assert.Equal(t, "Sep/07", result.Saved[0].SheetColumn)
	assert.True(t, result.Saved[0].SyncedToSheets)

	require.Len(t, mirror.batches, 1)
	assert.Equal(t, "Attendance", mirror.sheets[0])
	assert.Equal(t, sheets.Row{StudentID: "s-1", Column: "Sep/07", Value: "P"}, mirror.batches[0][0])

	require.Len(t, attendance.syncedIDs, 1)
	assert.Len(t, attendance.syncedIDs[0], 2)
	assert.Empty(t, queue.jobs)
}

func TestSubmitAttendancePersistenceFailureSkipsMirror(t *testing.T) {
	svc, attendance, _, mirror, _ := newSubmissionFixture()
	attendance.upsertErr = errors.New("connection reset")

	_, err := svc.SubmitAttendance(context.Background(), SubmitAttendanceRequest{
		Date:    "2026-09-07",
		ClassID: "c-1",
		Entries: []AttendanceEntry{{StudentID: "s-1", Status: "P"}},
	}, teacherActor())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPersistence.Code, appErrors.FromError(err).Code)
	assert.Empty(t, mirror.batches)
}

func TestSubmitAttendanceMirrorFailureIsRecoverable(t *testing.T) {
	svc, attendance, _, mirror, queue := newSubmissionFixture()
	mirror.err = errors.New("workbook locked")

	result, err := svc.SubmitAttendance(context.Background(), SubmitAttendanceRequest{
		Date:    "2026-09-07",
		ClassID: "c-1",
		Entries: []AttendanceEntry{{StudentID: "s-1", Status: "P"}},
	}, teacherActor())
	require.NoError(t, err)

	assert.Equal(t, SyncStatusPartialFailure, result.SyncStatus)
	require.Len(t, result.Saved, 1)
	assert.False(t, result.Saved[0].SyncedToSheets)
	assert.Empty(t, attendance.syncedIDs)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, SyncRetryJobType, queue.jobs[0].Type)
	payload, ok := queue.jobs[0].Payload.(SyncRetryPayload)
	require.True(t, ok)
	assert.Equal(t, "attendance", payload.Kind)
	assert.Len(t, payload.Rows, 1)
}

func TestSubmitAttendanceEmptySubmission(t *testing.T) {
	svc, _, _, mirror, _ := newSubmissionFixture()

	_, err := svc.SubmitAttendance(context.Background(), SubmitAttendanceRequest{
		Date:    "2026-09-07",
		ClassID: "c-1",
		Entries: []AttendanceEntry{{StudentID: "s-1", Status: ""}, {StudentID: "s-2", Status: " "}},
	}, teacherActor())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptySubmission.Code, appErrors.FromError(err).Code)
	assert.Empty(t, mirror.batches)
}

func TestSubmitAttendanceDuplicateStudent(t *testing.T) {
	svc, _, _, _, _ := newSubmissionFixture()

	_, err := svc.SubmitAttendance(context.Background(), SubmitAttendanceRequest{
		Date:    "2026-09-07",
		ClassID: "c-1",
		Entries: []AttendanceEntry{{StudentID: "s-1", Status: "P"}, {StudentID: "s-1", Status: "M"}},
	}, teacherActor())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmitAttendanceActorChecks(t *testing.T) {
	svc, _, _, _, _ := newSubmissionFixture()
	req := SubmitAttendanceRequest{
		Date:    "2026-09-07",
		ClassID: "c-1",
		Entries: []AttendanceEntry{{StudentID: "s-1", Status: "P"}},
	}

	_, err := svc.SubmitAttendance(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.SubmitAttendance(context.Background(), req, &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitEvaluationSkipsZeroRatings(t *testing.T) {
	svc, _, evaluation, mirror, _ := newSubmissionFixture()

	result, err := svc.SubmitEvaluation(context.Background(), SubmitEvaluationRequest{
		Chapter: 3,
		ClassID: "c-1",
		Entries: []EvaluationEntry{
			{StudentID: "s-1", Rating: 4},
			{StudentID: "s-2", Rating: 0},
		},
	}, teacherActor())
	require.NoError(t, err)

	assert.Equal(t, SyncStatusSynced, result.SyncStatus)
	require.Len(t, result.Saved, 1)
	assert.Equal(t, "Ch/03", result.Saved[0].SheetColumn)

	require.Len(t, mirror.batches, 1)
	assert.Equal(t, "Evaluation", mirror.sheets[0])
	assert.Equal(t, sheets.Row{StudentID: "s-1", Column: "Ch/03", Value: "4"}, mirror.batches[0][0])
	require.Len(t, evaluation.syncedIDs, 1)
}

func TestSubmitEvaluationAllZeroIsEmpty(t *testing.T) {
	svc, _, _, _, _ := newSubmissionFixture()

	_, err := svc.SubmitEvaluation(context.Background(), SubmitEvaluationRequest{
		Chapter: 3,
		ClassID: "c-1",
		Entries: []EvaluationEntry{{StudentID: "s-1", Rating: 0}},
	}, teacherActor())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptySubmission.Code, appErrors.FromError(err).Code)
}

func TestSubmitInvalidatesCompletionCache(t *testing.T) {
	attendance := &attendanceRepoStub{}
	evaluation := &evaluationRepoStub{}
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewSubmissionService(attendance, evaluation, &mirrorStub{}, &queueStub{}, nil, nil, cache, nil, SubmissionServiceConfig{})

	_, err := svc.SubmitAttendance(context.Background(), SubmitAttendanceRequest{
		Date:    "2026-09-07",
		ClassID: "c-1",
		Entries: []AttendanceEntry{{StudentID: "s-1", Status: "P"}},
	}, teacherActor())
	require.NoError(t, err)
	require.Len(t, repo.patterns, 1)
	assert.Equal(t, "recon:*", repo.patterns[0])

	_, err = svc.SubmitEvaluation(context.Background(), SubmitEvaluationRequest{
		Chapter: 3,
		ClassID: "c-1",
		Entries: []EvaluationEntry{{StudentID: "s-1", Rating: 4}},
	}, teacherActor())
	require.NoError(t, err)
	assert.Len(t, repo.patterns, 2)
}

func TestSubmitPersistenceFailureKeepsCache(t *testing.T) {
	attendance := &attendanceRepoStub{upsertErr: errors.New("connection reset")}
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewSubmissionService(attendance, &evaluationRepoStub{}, &mirrorStub{}, &queueStub{}, nil, nil, cache, nil, SubmissionServiceConfig{})

	_, err := svc.SubmitAttendance(context.Background(), SubmitAttendanceRequest{
		Date:    "2026-09-07",
		ClassID: "c-1",
		Entries: []AttendanceEntry{{StudentID: "s-1", Status: "P"}},
	}, teacherActor())
	require.Error(t, err)
	assert.Empty(t, repo.patterns)
}

func TestRetrySyncMarksRecords(t *testing.T) {
	svc, attendance, _, mirror, _ := newSubmissionFixture()

	err := svc.RetrySync(context.Background(), jobs.Job{
		ID:   "job-1",
		Type: SyncRetryJobType,
		Payload: SyncRetryPayload{
			Sheet:     "Attendance",
			Kind:      "attendance",
			Rows:      []sheets.Row{{StudentID: "s-1", Column: "Sep/07", Value: "P"}},
			RecordIDs: []string{"r-1"},
		},
	})
	require.NoError(t, err)

	require.Len(t, mirror.batches, 1)
	require.Len(t, attendance.syncedIDs, 1)
	assert.Equal(t, []string{"r-1"}, attendance.syncedIDs[0])
}

func TestRetrySyncFailurePropagates(t *testing.T) {
	svc, _, _, mirror, _ := newSubmissionFixture()
	mirror.err = errors.New("still locked")

	err := svc.RetrySync(context.Background(), jobs.Job{
		ID:      "job-1",
		Type:    SyncRetryJobType,
		Payload: SyncRetryPayload{Sheet: "Attendance", Kind: "attendance"},
	})
	require.Error(t, err)
}
