package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parokia/catechesis-api/internal/models"
	"github.com/parokia/catechesis-api/internal/sheets"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
)

type absenceRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.AbsenceRequest, error)
	List(ctx context.Context, filter models.AbsenceRequestFilter) ([]models.AbsenceRequest, int, error)
	MarkReviewed(ctx context.Context, id string, status models.AbsenceRequestStatus, reviewerID, notes string, attendanceRecordID *string) (*models.AbsenceRequest, error)
}

type attendanceUpsertRepository interface {
	UpsertMany(ctx context.Context, records []models.AttendanceRecord) ([]models.AttendanceRecord, error)
	FindByKey(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
}

// AbsenceService reviews guardian excuse requests. Approval writes an Excused
// attendance record through the same upsert-by-key path ordinary submissions
// use, so an excuse and a later manual edit can never coexist as duplicate
// rows for one student/date.
type AbsenceService struct {
	requests   absenceRequestRepository
	attendance attendanceUpsertRepository
	cache      *CacheService
	logger     *zap.Logger
}

// NewAbsenceService constructs the absence approval service.
func NewAbsenceService(requests absenceRequestRepository, attendance attendanceUpsertRepository, cache *CacheService, logger *zap.Logger) *AbsenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbsenceService{requests: requests, attendance: attendance, cache: cache, logger: logger}
}

// List returns absence requests for reviewers.
func (s *AbsenceService) List(ctx context.Context, filter models.AbsenceRequestFilter) ([]models.AbsenceRequest, *models.Pagination, error) {
	rows, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absence requests")
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

// Approve upserts an Excused attendance record for the request's student/date
// key, then stamps the request approved and links the record. The new record
// starts unsynced; the next mirror pass picks it up.
func (s *AbsenceService) Approve(ctx context.Context, requestID, reviewerNotes string, actor *models.JWTClaims) (*models.AttendanceRecord, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	request, err := s.findPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	record := models.AttendanceRecord{
		ID:             uuid.NewString(),
		StudentID:      request.StudentID,
		Date:           request.AbsenceDate,
		Status:         models.AttendanceStatusExcused,
		SheetColumn:    sheets.DateColumn(request.AbsenceDate),
		SyncedToSheets: false,
	}
	// Keep the owning teacher/class when a record for the key already exists;
	// the excuse only forces the status.
	if existing, err := s.attendance.FindByKey(ctx, request.StudentID, request.AbsenceDate); err == nil && existing != nil {
		record.TeacherID = existing.TeacherID
		record.ClassID = existing.ClassID
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve attendance key")
	}

	saved, err := s.attendance.UpsertMany(ctx, []models.AttendanceRecord{record})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status,
			fmt.Sprintf("failed to save excused attendance for %s", request.AbsenceDate.Format("2006-01-02")))
	}
	stored := saved[0]
	// The new record changes the attendance stream, so cached completion maps
	// are stale from here on.
	_ = s.cache.Invalidate(context.WithoutCancel(ctx), reconCachePattern)

	if _, err := s.requests.MarkReviewed(ctx, requestID, models.AbsenceRequestApproved, actor.UserID, reviewerNotes, &stored.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark request approved")
	}
	return &stored, nil
}

// Reject marks the request rejected. Notes are mandatory and the attendance
// record space is never touched.
func (s *AbsenceService) Reject(ctx context.Context, requestID, notes string, actor *models.JWTClaims) (*models.AbsenceRequest, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if strings.TrimSpace(notes) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection notes are required")
	}
	if _, err := s.findPending(ctx, requestID); err != nil {
		return nil, err
	}
	request, err := s.requests.MarkReviewed(ctx, requestID, models.AbsenceRequestRejected, actor.UserID, notes, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark request rejected")
	}
	return request, nil
}

func (s *AbsenceService) findPending(ctx context.Context, requestID string) (*models.AbsenceRequest, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "absence request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence request")
	}
	if request.Status != models.AbsenceRequestPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request already reviewed")
	}
	return request, nil
}
