package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parokia/catechesis-api/internal/models"
	appErrors "github.com/parokia/catechesis-api/pkg/errors"
	"github.com/parokia/catechesis-api/pkg/export"
	"github.com/parokia/catechesis-api/pkg/storage"
)

// ExportFormat selects the completion report output.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes plus transport metadata. DownloadToken
// is set when the export was archived for later retrieval.
type ExportResult struct {
	Content         []byte
	ContentType     string
	Filename        string
	DownloadToken   string
	DownloadExpires time.Time
}

// ReportService renders reconciliation output into downloadable files.
// With an archive configured, every export is also kept on disk behind a
// signed download token.
type ReportService struct {
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	archive *storage.Archive
	signer  *storage.DownloadSigner
	logger  *zap.Logger
}

// NewReportService constructs the report service. Archive and signer may be
// nil, in which case exports are returned inline only.
func NewReportService(archive *storage.Archive, signer *storage.DownloadSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		archive: archive,
		signer:  signer,
		logger:  logger,
	}
}

const (
	colTeacher            = "Teacher"
	colAttendanceDone     = "Attendance Completed"
	colAttendanceExpected = "Attendance Expected"
	colAttendanceRate     = "Attendance %"
	colMissingDates       = "Missing Dates"
	colEvaluationDone     = "Evaluation Completed"
	colEvaluationExpected = "Evaluation Expected"
	colEvaluationRate     = "Evaluation %"
	colMissingChapters    = "Missing Chapters"
)

// RenderCompletion renders the completion map into the requested format.
// Rows are ordered by teacher name so repeated exports over the same data
// are byte-stable.
func (s *ReportService) RenderCompletion(completions map[string]models.TeacherCompletion, window models.ReconciliationWindow, format ExportFormat) (*ExportResult, error) {
	dataset := buildCompletionDataset(completions)
	stamp := time.Now().UTC().Format("20060102-150405")

	result := &ExportResult{}
	var err error
	switch format {
	case ExportFormatCSV:
		result.Content, err = s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		result.ContentType = "text/csv"
		result.Filename = fmt.Sprintf("completion-report-%s.csv", stamp)
	case ExportFormatPDF:
		result.Content, err = s.pdf.Render(dataset, export.PDFOptions{
			Title:     "Completion Report",
			Subtitle:  fmt.Sprintf("%s to %s", window.From.Format("2006-01-02"), window.To.Format("2006-01-02")),
			Landscape: true,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		result.ContentType = "application/pdf"
		result.Filename = fmt.Sprintf("completion-report-%s.pdf", stamp)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	s.archiveExport(result)
	return result, nil
}

// archiveExport is best-effort: a failed archive write still returns the
// inline bytes.
func (s *ReportService) archiveExport(result *ExportResult) {
	if s.archive == nil || s.signer == nil {
		return
	}
	if err := s.archive.Save(result.Filename, result.Content); err != nil {
		s.logger.Warn("failed to archive export", zap.String("file", result.Filename), zap.Error(err))
		return
	}
	token, expiresAt, err := s.signer.Generate(result.Filename)
	if err != nil {
		s.logger.Warn("failed to sign export download", zap.String("file", result.Filename), zap.Error(err))
		return
	}
	result.DownloadToken = token
	result.DownloadExpires = expiresAt
}

// OpenArchived validates the download token and opens the archived file.
func (s *ReportService) OpenArchived(token string) (*os.File, string, error) {
	if s.archive == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export archive is not configured")
	}
	name, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}
	file, err := s.archive.Open(name)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	contentType := "application/octet-stream"
	switch filepath.Ext(name) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}
	return file, contentType, nil
}

func buildCompletionDataset(completions map[string]models.TeacherCompletion) export.Dataset {
	rows := make([]map[string]string, 0, len(completions))
	ordered := make([]models.TeacherCompletion, 0, len(completions))
	for _, completion := range completions {
		ordered = append(ordered, completion)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].TeacherName != ordered[j].TeacherName {
			return ordered[i].TeacherName < ordered[j].TeacherName
		}
		return ordered[i].TeacherID < ordered[j].TeacherID
	})

	for _, completion := range ordered {
		attendanceMissing := completion.Attendance.MissingUnits()
		sortUnits(attendanceMissing)
		evaluationMissing := completion.Evaluation.MissingUnits()
		sortUnits(evaluationMissing)

		rows = append(rows, map[string]string{
			colTeacher:            completion.TeacherName,
			colAttendanceDone:     strconv.Itoa(completion.Attendance.TotalCompleted),
			colAttendanceExpected: strconv.Itoa(completion.Attendance.TotalExpected),
			colAttendanceRate:     strconv.Itoa(completion.Attendance.CompletionRate),
			colMissingDates:       strings.Join(attendanceMissing, " "),
			colEvaluationDone:     strconv.Itoa(completion.Evaluation.TotalCompleted),
			colEvaluationExpected: strconv.Itoa(completion.Evaluation.TotalExpected),
			colEvaluationRate:     strconv.Itoa(completion.Evaluation.CompletionRate),
			colMissingChapters:    strings.Join(evaluationMissing, " "),
		})
	}

	return export.Dataset{
		Headers: []string{
			colTeacher,
			colAttendanceDone, colAttendanceExpected, colAttendanceRate, colMissingDates,
			colEvaluationDone, colEvaluationExpected, colEvaluationRate, colMissingChapters,
		},
		Rows: rows,
	}
}
