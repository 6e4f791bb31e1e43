package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parokia/catechesis-api/internal/models"
	"github.com/parokia/catechesis-api/internal/sheets"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
	"github.com/parokia/catechesis-api/pkg/jobs"
)

type attendanceWriteRepository interface {
	UpsertMany(ctx context.Context, records []models.AttendanceRecord) ([]models.AttendanceRecord, error)
	MarkSynced(ctx context.Context, ids []string) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type evaluationWriteRepository interface {
	UpsertMany(ctx context.Context, records []models.EvaluationRecord) ([]models.EvaluationRecord, error)
	MarkSynced(ctx context.Context, ids []string) error
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, int, error)
}

type mirrorWriter interface {
	WriteBatch(ctx context.Context, sheet string, rows []sheets.Row) (*sheets.BatchResult, error)
}

type syncRetryEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// SyncStatus reports mirror propagation for a submission. A partial failure
// still means the records are durably stored; only the mirror is stale.
type SyncStatus string

const (
	SyncStatusSynced         SyncStatus = "SYNCED"
	SyncStatusPartialFailure SyncStatus = "PARTIAL_SYNC_FAILURE"
)

// SyncRetryJobType names background mirror retry jobs.
const SyncRetryJobType = "sheet-sync"

// SyncRetryPayload carries everything a retry needs to repeat a mirror batch.
type SyncRetryPayload struct {
	Sheet     string       `json:"sheet"`
	Rows      []sheets.Row `json:"rows"`
	RecordIDs []string     `json:"record_ids"`
	Kind      string       `json:"kind"`
}

// SubmissionServiceConfig names the worksheets the mirror batches target.
type SubmissionServiceConfig struct {
	AttendanceSheet string
	EvaluationSheet string
}

// SubmissionService orchestrates save-then-sync for attendance and evaluation
// submissions. Persistence always completes before a mirror write is
// attempted; mirror failures are surfaced as a status, never as call errors.
type SubmissionService struct {
	attendanceRepo attendanceWriteRepository
	evaluationRepo evaluationWriteRepository
	mirror         mirrorWriter
	retryQueue     syncRetryEnqueuer
	validator      *validator.Validate
	metrics        *MetricsService
	cache          *CacheService
	logger         *zap.Logger
	cfg            SubmissionServiceConfig
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(attendance attendanceWriteRepository, evaluation evaluationWriteRepository, mirror mirrorWriter, retryQueue syncRetryEnqueuer, validate *validator.Validate, metrics *MetricsService, cache *CacheService, logger *zap.Logger, cfg SubmissionServiceConfig) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AttendanceSheet == "" {
		cfg.AttendanceSheet = "Attendance"
	}
	if cfg.EvaluationSheet == "" {
		cfg.EvaluationSheet = "Evaluation"
	}
	svc := &SubmissionService{
		attendanceRepo: attendance,
		evaluationRepo: evaluation,
		mirror:         mirror,
		retryQueue:     retryQueue,
		validator:      validate,
		metrics:        metrics,
		cache:          cache,
		logger:         logger,
		cfg:            cfg,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		status := models.AttendanceStatus(strings.ToUpper(fl.Field().String()))
		return status == "" || status.Valid()
	})
	return svc
}

// AttendanceEntry is one student's status within a submission. Entries with an
// empty status are skipped rather than rejected.
type AttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"attendance_status"`
}

// SubmitAttendanceRequest is one date's attendance for a class.
type SubmitAttendanceRequest struct {
	Date    string            `json:"date" validate:"required"`
	ClassID string            `json:"class_id" validate:"required"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceSubmissionResult reports what was saved and whether the mirror
// caught up.
type AttendanceSubmissionResult struct {
	Saved      []models.AttendanceRecord `json:"saved"`
	SyncStatus SyncStatus                `json:"sync_status"`
}

// SubmitAttendance validates, persists and mirrors one attendance submission.
// Re-submitting the same date with the same entries is safe: the upsert key
// keeps at most one row per (student, date) and mirror writes overwrite by
// coordinate.
func (s *SubmissionService) SubmitAttendance(ctx context.Context, req SubmitAttendanceRequest, actor *models.JWTClaims) (*AttendanceSubmissionResult, error) {
	teacherID, err := actorTeacherID(actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}

	column := sheets.DateColumn(date)
	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	seen := map[string]struct{}{}
	for _, entry := range req.Entries {
		if strings.TrimSpace(entry.Status) == "" {
			continue
		}
		if _, ok := seen[entry.StudentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate student in payload")
		}
		seen[entry.StudentID] = struct{}{}
		records = append(records, models.AttendanceRecord{
			ID:             uuid.NewString(),
			StudentID:      entry.StudentID,
			TeacherID:      teacherID,
			ClassID:        req.ClassID,
			Date:           date,
			Status:         models.AttendanceStatus(strings.ToUpper(entry.Status)),
			SheetColumn:    column,
			SyncedToSheets: false,
		})
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptySubmission, "")
	}

	saved, err := s.attendanceRepo.UpsertMany(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status,
			fmt.Sprintf("failed to save attendance for %s", req.Date))
	}
	s.invalidateCompletionCache(ctx)

	rows := make([]sheets.Row, len(saved))
	ids := make([]string, len(saved))
	for i, rec := range saved {
		rows[i] = sheets.Row{StudentID: rec.StudentID, Column: rec.SheetColumn, Value: string(rec.Status)}
		ids[i] = rec.ID
	}

	status := s.sync(ctx, s.cfg.AttendanceSheet, "attendance", rows, ids, s.attendanceRepo.MarkSynced)
	if status == SyncStatusSynced {
		for i := range saved {
			saved[i].SyncedToSheets = true
		}
	}
	return &AttendanceSubmissionResult{Saved: saved, SyncStatus: status}, nil
}

// EvaluationEntry is one student's rating within a submission. A zero rating
// marks the entry as empty and it is skipped.
type EvaluationEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Rating    int    `json:"rating" validate:"min=0,max=5"`
}

// SubmitEvaluationRequest is one chapter's evaluation for a class.
type SubmitEvaluationRequest struct {
	Chapter int               `json:"chapter" validate:"required,min=1"`
	ClassID string            `json:"class_id" validate:"required"`
	Entries []EvaluationEntry `json:"entries" validate:"required,min=1,dive"`
}

// EvaluationSubmissionResult reports what was saved and whether the mirror
// caught up.
type EvaluationSubmissionResult struct {
	Saved      []models.EvaluationRecord `json:"saved"`
	SyncStatus SyncStatus                `json:"sync_status"`
}

// SubmitEvaluation validates, persists and mirrors one chapter evaluation
// submission under the same save-then-sync discipline as attendance.
func (s *SubmissionService) SubmitEvaluation(ctx context.Context, req SubmitEvaluationRequest, actor *models.JWTClaims) (*EvaluationSubmissionResult, error) {
	teacherID, err := actorTeacherID(actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}

	column := sheets.ChapterColumn(req.Chapter)
	records := make([]models.EvaluationRecord, 0, len(req.Entries))
	seen := map[string]struct{}{}
	for _, entry := range req.Entries {
		if entry.Rating == 0 {
			continue
		}
		if _, ok := seen[entry.StudentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate student in payload")
		}
		seen[entry.StudentID] = struct{}{}
		records = append(records, models.EvaluationRecord{
			ID:             uuid.NewString(),
			StudentID:      entry.StudentID,
			TeacherID:      teacherID,
			ClassID:        req.ClassID,
			Chapter:        req.Chapter,
			Rating:         entry.Rating,
			SheetColumn:    column,
			SyncedToSheets: false,
		})
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptySubmission, "")
	}

	saved, err := s.evaluationRepo.UpsertMany(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status,
			fmt.Sprintf("failed to save evaluation for chapter %d", req.Chapter))
	}
	s.invalidateCompletionCache(ctx)

	rows := make([]sheets.Row, len(saved))
	ids := make([]string, len(saved))
	for i, rec := range saved {
		rows[i] = sheets.Row{StudentID: rec.StudentID, Column: rec.SheetColumn, Value: fmt.Sprintf("%d", rec.Rating)}
		ids[i] = rec.ID
	}

	status := s.sync(ctx, s.cfg.EvaluationSheet, "evaluation", rows, ids, s.evaluationRepo.MarkSynced)
	if status == SyncStatusSynced {
		for i := range saved {
			saved[i].SyncedToSheets = true
		}
	}
	return &EvaluationSubmissionResult{Saved: saved, SyncStatus: status}, nil
}

// ListAttendance returns paginated attendance rows.
func (s *SubmissionService) ListAttendance(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	rows, total, err := s.attendanceRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListEvaluations returns paginated evaluation rows.
func (s *SubmissionService) ListEvaluations(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, *models.Pagination, error) {
	rows, total, err := s.evaluationRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// sync pushes one batch to the mirror and marks records synced on success.
// The batch runs on a context detached from the caller so an abandoned request
// cannot interrupt a mirror write already underway; records stay flagged
// unsynced on any failure, which is a correct, retryable state.
func (s *SubmissionService) sync(ctx context.Context, sheet, kind string, rows []sheets.Row, ids []string, markSynced func(context.Context, []string) error) SyncStatus {
	syncCtx := context.WithoutCancel(ctx)

	result, err := s.mirror.WriteBatch(syncCtx, sheet, rows)
	if err != nil || result == nil || !result.OK {
		if err != nil {
			s.logger.Warn("mirror batch failed", zap.String("kind", kind), zap.Error(err))
		} else {
			s.logger.Warn("mirror batch partially failed", zap.String("kind", kind), zap.Int("failed_rows", len(result.FailedRows)))
		}
		if s.metrics != nil {
			s.metrics.ObserveSheetSync(kind, false)
		}
		s.enqueueRetry(sheet, kind, rows, ids)
		return SyncStatusPartialFailure
	}

	if s.metrics != nil {
		s.metrics.ObserveSheetSync(kind, true)
	}
	if err := markSynced(syncCtx, ids); err != nil {
		// Not rolled back: the mirror holds the data and the flag will catch
		// up on the next successful submit for the same keys.
		s.logger.Warn("mark synced failed", zap.String("kind", kind), zap.Error(err))
	}
	return SyncStatusSynced
}

// invalidateCompletionCache drops cached completion maps after a record write.
// Detached from the caller's cancellation: the write already happened, so the
// cache must not outlive it.
func (s *SubmissionService) invalidateCompletionCache(ctx context.Context) {
	_ = s.cache.Invalidate(context.WithoutCancel(ctx), reconCachePattern)
}

func (s *SubmissionService) enqueueRetry(sheet, kind string, rows []sheets.Row, ids []string) {
	if s.retryQueue == nil {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: SyncRetryJobType,
		Payload: SyncRetryPayload{
			Sheet:     sheet,
			Rows:      rows,
			RecordIDs: ids,
			Kind:      kind,
		},
	}
	if err := s.retryQueue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue sync retry", zap.String("kind", kind), zap.Error(err))
	}
}

// RetrySync is the background handler re-running failed mirror batches. It
// returns an error on failure so the queue applies its retry policy.
func (s *SubmissionService) RetrySync(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(SyncRetryPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	result, err := s.mirror.WriteBatch(ctx, payload.Sheet, payload.Rows)
	if err != nil {
		return fmt.Errorf("retry mirror batch: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("retry mirror batch: %d rows failed", len(result.FailedRows))
	}
	markSynced := s.attendanceRepo.MarkSynced
	if payload.Kind == "evaluation" {
		markSynced = s.evaluationRepo.MarkSynced
	}
	if err := markSynced(ctx, payload.RecordIDs); err != nil {
		s.logger.Warn("mark synced failed after retry", zap.String("kind", payload.Kind), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.ObserveSheetSync(payload.Kind, true)
	}
	return nil
}

func actorTeacherID(actor *models.JWTClaims) (string, error) {
	if actor == nil || actor.UserID == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if actor.TeacherID == nil || *actor.TeacherID == "" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "actor has no teacher profile")
	}
	return *actor.TeacherID, nil
}
