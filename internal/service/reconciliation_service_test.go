package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parokia/catechesis-api/internal/models"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
)

type lessonListerStub struct {
	lessons []models.LessonOccurrence
	err     error
}

func (s *lessonListerStub) ListWindow(ctx context.Context, from, to time.Time) ([]models.LessonOccurrence, error) {
	return s.lessons, s.err
}

type dateListerStub struct {
	datesByTeacher map[string][]time.Time
	errByTeacher   map[string]error
}

func (s *dateListerStub) DatesForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]time.Time, error) {
	if err, ok := s.errByTeacher[teacherID]; ok {
		return nil, err
	}
	return s.datesByTeacher[teacherID], nil
}

type chapterListerStub struct {
	chaptersByTeacher map[string][]int
}

func (s *chapterListerStub) ChaptersForTeacher(ctx context.Context, teacherID string) ([]int, error) {
	return s.chaptersByTeacher[teacherID], nil
}

type cacheRepoStub struct {
	entries  map[string][]byte
	patterns []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	s.entries = map[string][]byte{}
	return nil
}

func day(n int) time.Time {
	return time.Date(2026, time.September, n, 0, 0, 0, 0, time.UTC)
}

func assignedTeacher(id string, yearLevel int) models.Teacher {
	classID := "class-" + id
	return models.Teacher{ID: id, FullName: "Teacher " + id, ClassID: &classID, YearLevel: yearLevel, Active: true}
}

func lessonsFor(cohort models.CohortTag, days ...int) []models.LessonOccurrence {
	lessons := make([]models.LessonOccurrence, 0, len(days))
	for _, n := range days {
		lessons = append(lessons, models.LessonOccurrence{ID: fmt.Sprintf("l-%d", n), Date: day(n), Cohort: cohort})
	}
	return lessons
}

func TestReconcileComputesCompletionRates(t *testing.T) {
	lessons := &lessonListerStub{lessons: lessonsFor(models.CohortBoth, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)}
	dates := &dateListerStub{datesByTeacher: map[string][]time.Time{
		"t-1": {day(1), day(2), day(3), day(4), day(5), day(6), day(7)},
	}}
	chapters := &chapterListerStub{chaptersByTeacher: map[string][]int{
		"t-1": {1, 2},
	}}
	svc := NewReconciliationService(lessons, dates, chapters, nil, nil, nil, ReconciliationServiceConfig{})

	window := models.ReconciliationWindow{From: day(1), To: day(10)}
	results, err := svc.Reconcile(context.Background(), []models.Teacher{assignedTeacher("t-1", 3)}, window, []int{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Contains(t, results, "t-1")

	attendance := results["t-1"].Attendance
	assert.Equal(t, 10, attendance.TotalExpected)
	assert.Equal(t, 7, attendance.TotalCompleted)
	assert.Equal(t, 70, attendance.CompletionRate)
	assert.True(t, attendance.ByUnit["2026-09-03"])
	assert.False(t, attendance.ByUnit["2026-09-09"])

	evaluation := results["t-1"].Evaluation
	assert.Equal(t, 5, evaluation.TotalExpected)
	assert.Equal(t, 2, evaluation.TotalCompleted)
	assert.Equal(t, 40, evaluation.CompletionRate)
	assert.ElementsMatch(t, []string{"3", "4", "5"}, evaluation.MissingUnits())
}

func TestReconcileHonorsCohortEligibility(t *testing.T) {
	lessons := &lessonListerStub{lessons: append(lessonsFor(models.CohortJunior, 1, 2), lessonsFor(models.CohortSenior, 3)...)}
	dates := &dateListerStub{datesByTeacher: map[string][]time.Time{}}
	chapters := &chapterListerStub{}
	svc := NewReconciliationService(lessons, dates, chapters, nil, nil, nil, ReconciliationServiceConfig{})

	window := models.ReconciliationWindow{From: day(1), To: day(10)}
	results, err := svc.Reconcile(context.Background(), []models.Teacher{
		assignedTeacher("junior", 2),
		assignedTeacher("senior", 8),
	}, window, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, results["junior"].Attendance.TotalExpected)
	assert.Equal(t, 1, results["senior"].Attendance.TotalExpected)
}

func TestReconcileSkipsUnassignedTeachers(t *testing.T) {
	lessons := &lessonListerStub{lessons: lessonsFor(models.CohortBoth, 1)}
	svc := NewReconciliationService(lessons, &dateListerStub{}, &chapterListerStub{}, nil, nil, nil, ReconciliationServiceConfig{})

	window := models.ReconciliationWindow{From: day(1), To: day(10)}
	results, err := svc.Reconcile(context.Background(), []models.Teacher{
		{ID: "t-1", FullName: "Unassigned", Active: true},
	}, window, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReconcileRejectsInvertedWindow(t *testing.T) {
	svc := NewReconciliationService(&lessonListerStub{}, &dateListerStub{}, &chapterListerStub{}, nil, nil, nil, ReconciliationServiceConfig{})

	window := models.ReconciliationWindow{From: day(10), To: day(1)}
	_, err := svc.Reconcile(context.Background(), nil, window, nil)
	require.Error(t, err)
}

func TestReconcileCacheScopedToCohort(t *testing.T) {
	lessons := &lessonListerStub{lessons: lessonsFor(models.CohortBoth, 1, 2)}
	dates := &dateListerStub{datesByTeacher: map[string][]time.Time{
		"t-1": {day(1)},
		"t-2": {day(1), day(2)},
	}}
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewReconciliationService(lessons, dates, &chapterListerStub{}, cache, nil, nil, ReconciliationServiceConfig{})

	window := models.ReconciliationWindow{From: day(1), To: day(10)}
	first, err := svc.Reconcile(context.Background(), []models.Teacher{assignedTeacher("t-1", 3)}, window, nil)
	require.NoError(t, err)
	require.Contains(t, first, "t-1")

	// A different roster of the same size over the same window must not be
	// served t-1's cached map.
	second, err := svc.Reconcile(context.Background(), []models.Teacher{assignedTeacher("t-2", 3)}, window, nil)
	require.NoError(t, err)
	require.Contains(t, second, "t-2")
	assert.NotContains(t, second, "t-1")
	assert.Equal(t, 2, second["t-2"].Attendance.TotalCompleted)
}

func TestReconcileServesRepeatCohortFromCache(t *testing.T) {
	lessons := &lessonListerStub{lessons: lessonsFor(models.CohortBoth, 1, 2)}
	dates := &dateListerStub{datesByTeacher: map[string][]time.Time{"t-1": {day(1)}}}
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewReconciliationService(lessons, dates, &chapterListerStub{}, cache, nil, nil, ReconciliationServiceConfig{})

	window := models.ReconciliationWindow{From: day(1), To: day(10)}
	cohort := []models.Teacher{assignedTeacher("t-1", 3)}
	first, err := svc.Reconcile(context.Background(), cohort, window, nil)
	require.NoError(t, err)

	dates.datesByTeacher["t-1"] = append(dates.datesByTeacher["t-1"], day(2))
	second, err := svc.Reconcile(context.Background(), cohort, window, nil)
	require.NoError(t, err)
	assert.Equal(t, first["t-1"].Attendance.TotalCompleted, second["t-1"].Attendance.TotalCompleted)
}

func TestReconcileRecordsTimings(t *testing.T) {
	metrics := NewMetricsService()
	lessons := &lessonListerStub{lessons: lessonsFor(models.CohortBoth, 1)}
	dates := &dateListerStub{datesByTeacher: map[string][]time.Time{"t-1": {day(1)}}}
	svc := NewReconciliationService(lessons, dates, &chapterListerStub{}, nil, metrics, nil, ReconciliationServiceConfig{})

	window := models.ReconciliationWindow{From: day(1), To: day(10)}
	_, err := svc.Reconcile(context.Background(), []models.Teacher{assignedTeacher("t-1", 3)}, window, []int{1})
	require.NoError(t, err)

	families, err := metrics.registry.Gather()
	require.NoError(t, err)

	queryLabels := map[string]bool{}
	var runs uint64
	for _, family := range families {
		switch family.GetName() {
		case "db_query_duration_seconds":
			for _, metric := range family.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() == "query" {
						queryLabels[label.GetValue()] = true
					}
				}
			}
		case "reconciliation_duration_seconds":
			for _, metric := range family.GetMetric() {
				runs += metric.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.True(t, queryLabels["lesson_window"])
	assert.True(t, queryLabels["attendance_dates"])
	assert.True(t, queryLabels["evaluation_chapters"])
	assert.Equal(t, uint64(1), runs)
}

func TestReconcileReturnsNoPartialResults(t *testing.T) {
	lessons := &lessonListerStub{lessons: lessonsFor(models.CohortBoth, 1, 2)}
	dates := &dateListerStub{
		datesByTeacher: map[string][]time.Time{"t-1": {day(1)}},
		errByTeacher:   map[string]error{"t-2": errors.New("query timeout")},
	}
	svc := NewReconciliationService(lessons, dates, &chapterListerStub{}, nil, nil, nil, ReconciliationServiceConfig{Concurrency: 2})

	window := models.ReconciliationWindow{From: day(1), To: day(10)}
	results, err := svc.Reconcile(context.Background(), []models.Teacher{
		assignedTeacher("t-1", 3),
		assignedTeacher("t-2", 3),
	}, window, nil)

	require.Error(t, err)
	assert.Nil(t, results)
}
