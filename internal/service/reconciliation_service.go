package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parokia/catechesis-api/internal/models"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
)

type lessonWindowLister interface {
	ListWindow(ctx context.Context, from, to time.Time) ([]models.LessonOccurrence, error)
}

type attendanceDateLister interface {
	DatesForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]time.Time, error)
}

type evaluationChapterLister interface {
	ChaptersForTeacher(ctx context.Context, teacherID string) ([]int, error)
}

// Cached completion maps live under this prefix; services that change
// reconciliation inputs invalidate reconCachePattern after every write.
const (
	reconCacheKeyPrefix = "recon:"
	reconCachePattern   = reconCacheKeyPrefix + "*"
)

// ReconciliationServiceConfig tunes the reconciliation pass.
type ReconciliationServiceConfig struct {
	Concurrency int
	CacheTTL    time.Duration
}

// ReconciliationService computes per-teacher completion maps for the two
// record streams. The pass is read-only: one range query per teacher per
// stream, membership tested in memory.
type ReconciliationService struct {
	lessons     lessonWindowLister
	attendance  attendanceDateLister
	evaluations evaluationChapterLister
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         ReconciliationServiceConfig
}

// NewReconciliationService constructs the reconciliation service.
func NewReconciliationService(lessons lessonWindowLister, attendance attendanceDateLister, evaluations evaluationChapterLister, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg ReconciliationServiceConfig) *ReconciliationService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		lessons:     lessons,
		attendance:  attendance,
		evaluations: evaluations,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// Reconcile computes the completion map for the given cohort of teachers over
// the window and chapter universe. The chapter set is an explicit input so the
// engine never hides a live distinct scan behind every call. Teacher passes
// fan out with bounded concurrency; the map is returned only after every pass
// settles, never partially.
func (s *ReconciliationService) Reconcile(ctx context.Context, teachers []models.Teacher, window models.ReconciliationWindow, chapters []int) (map[string]models.TeacherCompletion, error) {
	if window.From.After(window.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window start is after window end")
	}

	cacheKey := s.cacheKey(teachers, window, chapters)
	if s.cache != nil {
		var cached map[string]models.TeacherCompletion
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	started := time.Now()
	lessons, err := s.lessons.ListWindow(ctx, window.From, window.To)
	s.metrics.ObserveDBQuery("lesson_window", time.Since(started))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson window")
	}

	results := make(map[string]models.TeacherCompletion, len(teachers))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	sem := make(chan struct{}, s.cfg.Concurrency)

	for _, teacher := range teachers {
		if !teacher.HasClass() {
			continue
		}
		wg.Add(1)
		go func(teacher models.Teacher) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			completion, err := s.reconcileTeacher(ctx, teacher, lessons, window, chapters)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[teacher.ID] = completion
		}(teacher)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, appErrors.Wrap(firstErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reconciliation failed")
	}

	s.metrics.ObserveReconciliation(time.Since(started))

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, results, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("reconciliation cache write failed", zap.Error(err))
		}
	}
	return results, nil
}

func (s *ReconciliationService) reconcileTeacher(ctx context.Context, teacher models.Teacher, lessons []models.LessonOccurrence, window models.ReconciliationWindow, chapters []int) (models.TeacherCompletion, error) {
	completion := models.TeacherCompletion{
		TeacherID:   teacher.ID,
		TeacherName: teacher.FullName,
		Attendance:  models.CompletionSummary{ByUnit: map[string]bool{}},
		Evaluation:  models.CompletionSummary{ByUnit: map[string]bool{}},
	}

	started := time.Now()
	dates, err := s.attendance.DatesForTeacher(ctx, teacher.ID, window.From, window.To)
	s.metrics.ObserveDBQuery("attendance_dates", time.Since(started))
	if err != nil {
		return completion, fmt.Errorf("teacher %s attendance pass: %w", teacher.ID, err)
	}
	haveDates := make(map[string]struct{}, len(dates))
	for _, date := range dates {
		haveDates[date.Format("2006-01-02")] = struct{}{}
	}
	for _, lesson := range lessons {
		if !ExpectedFor(teacher, lesson) {
			continue
		}
		unit := lesson.Date.Format("2006-01-02")
		_, done := haveDates[unit]
		completion.Attendance.ByUnit[unit] = done
		completion.Attendance.TotalExpected++
		if done {
			completion.Attendance.TotalCompleted++
		}
	}
	completion.Attendance.CompletionRate = completionRate(completion.Attendance.TotalCompleted, completion.Attendance.TotalExpected)

	started = time.Now()
	have, err := s.evaluations.ChaptersForTeacher(ctx, teacher.ID)
	s.metrics.ObserveDBQuery("evaluation_chapters", time.Since(started))
	if err != nil {
		return completion, fmt.Errorf("teacher %s evaluation pass: %w", teacher.ID, err)
	}
	haveChapters := make(map[int]struct{}, len(have))
	for _, chapter := range have {
		haveChapters[chapter] = struct{}{}
	}
	for _, chapter := range chapters {
		unit := strconv.Itoa(chapter)
		_, done := haveChapters[chapter]
		completion.Evaluation.ByUnit[unit] = done
		completion.Evaluation.TotalExpected++
		if done {
			completion.Evaluation.TotalCompleted++
		}
	}
	completion.Evaluation.CompletionRate = completionRate(completion.Evaluation.TotalCompleted, completion.Evaluation.TotalExpected)

	return completion, nil
}

// cacheKey must identify the cohort, not just its size: two rosters of equal
// length over the same window are different reconciliations. The sorted
// teacher id set is hashed to keep the key bounded.
func (s *ReconciliationService) cacheKey(teachers []models.Teacher, window models.ReconciliationWindow, chapters []int) string {
	ids := make([]string, 0, len(teachers))
	for _, teacher := range teachers {
		ids = append(ids, teacher.ID)
	}
	sort.Strings(ids)
	cohort := sha256.Sum256([]byte(strings.Join(ids, ",")))

	parts := make([]string, 0, len(chapters))
	for _, chapter := range chapters {
		parts = append(parts, strconv.Itoa(chapter))
	}
	return fmt.Sprintf("%s%s:%s:%x:%s",
		reconCacheKeyPrefix,
		window.From.Format("2006-01-02"),
		window.To.Format("2006-01-02"),
		cohort[:8],
		strings.Join(parts, ","))
}

// completionRate rounds completed/expected to a whole percentage; zero when
// nothing is expected.
func completionRate(completed, expected int) int {
	if expected <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(expected) * 100))
}
