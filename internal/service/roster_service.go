package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parokia/catechesis-api/internal/models"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
)

type rosterTeacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	ListAssigned(ctx context.Context) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type rosterLessonRepository interface {
	ListWindow(ctx context.Context, from, to time.Time) ([]models.LessonOccurrence, error)
	Create(ctx context.Context, occurrence *models.LessonOccurrence) (*models.LessonOccurrence, error)
}

type rosterChapterLister interface {
	DistinctChapters(ctx context.Context) ([]int, error)
}

// RosterService serves the teacher roster and the lesson occurrence log that
// reconciliation runs against.
type RosterService struct {
	teachers  rosterTeacherRepository
	lessons   rosterLessonRepository
	chapters  rosterChapterLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(teachers rosterTeacherRepository, lessons rosterLessonRepository, chapters rosterChapterLister, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{teachers: teachers, lessons: lessons, chapters: chapters, validator: validate, logger: logger}
}

// ListTeachers returns teachers matching the filter with pagination metadata.
func (s *RosterService) ListTeachers(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	rows, total, err := s.teachers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
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

// AssignedTeachers returns the active teachers with a class, the population
// every reconciliation run covers.
func (s *RosterService) AssignedTeachers(ctx context.Context) ([]models.Teacher, error) {
	rows, err := s.teachers.ListAssigned(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned teachers")
	}
	return rows, nil
}

// GetTeacher loads one teacher by ID.
func (s *RosterService) GetTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// CreateLessonRequest records one lesson occurrence in the log.
type CreateLessonRequest struct {
	Date   string           `json:"date" validate:"required"`
	Cohort models.CohortTag `json:"cohort" validate:"required"`
}

// CreateLesson appends a lesson occurrence to the log.
func (s *RosterService) CreateLesson(ctx context.Context, req CreateLessonRequest) (*models.LessonOccurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if !req.Cohort.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cohort must be JUNIOR, SENIOR or BOTH")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	occurrence := &models.LessonOccurrence{
		ID:     uuid.NewString(),
		Date:   date,
		Cohort: req.Cohort,
	}
	created, err := s.lessons.Create(ctx, occurrence)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to record lesson occurrence")
	}
	return created, nil
}

// ListLessons returns lesson occurrences inside the window.
func (s *RosterService) ListLessons(ctx context.Context, from, to time.Time) ([]models.LessonOccurrence, error) {
	if from.After(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window start is after window end")
	}
	rows, err := s.lessons.ListWindow(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lesson occurrences")
	}
	return rows, nil
}

// ChapterUniverse returns every chapter number seen across evaluation
// records, the default universe for reconciliation when the caller does not
// supply one.
func (s *RosterService) ChapterUniverse(ctx context.Context) ([]int, error) {
	chapters, err := s.chapters.DistinctChapters(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chapters")
	}
	return chapters, nil
}
