package sheets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Row is one cell write addressed by student row and column identifier. The
// addressing is absolute, so re-writing a row overwrites the same cell rather
// than appending.
type Row struct {
	StudentID string `json:"student_id"`
	Column    string `json:"column"`
	Value     string `json:"value"`
}

// BatchResult reports a mirror batch outcome. FailedRows holds entries the
// workbook could not address; OK is false whenever any row failed.
type BatchResult struct {
	OK         bool  `json:"ok"`
	FailedRows []Row `json:"failed_rows,omitempty"`
}

// Workbook mirrors persisted records into a shared xlsx document by cell
// coordinates. Writes are serialised; the workbook may fail independently of
// the record store and callers treat any failure here as recoverable.
type Workbook struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

// NewWorkbook builds a workbook mirror rooted at path.
func NewWorkbook(path string, logger *zap.Logger) *Workbook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workbook{path: path, logger: logger}
}

// WriteBatch writes every row into the named worksheet, creating the
// worksheet, student rows and identifier columns as needed. Rows without a
// student id or column identifier are reported back as failed.
func (w *Workbook) WriteBatch(ctx context.Context, sheet string, rows []Row) (*BatchResult, error) {
	if len(rows) == 0 {
		return &BatchResult{OK: true}, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, created, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("resolve sheet %s: %w", sheet, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := f.SetCellValue(sheet, "A1", "Student"); err != nil {
			return nil, fmt.Errorf("seed sheet %s: %w", sheet, err)
		}
	}

	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	colByName, rowByStudent, nextCol, nextRow := index(grid)

	result := &BatchResult{OK: true}
	for _, row := range rows {
		if row.StudentID == "" || row.Column == "" {
			result.OK = false
			result.FailedRows = append(result.FailedRows, row)
			continue
		}

		colNum, ok := colByName[row.Column]
		if !ok {
			colNum = nextCol
			nextCol++
			colByName[row.Column] = colNum
			cell, _ := excelize.CoordinatesToCellName(colNum, 1)
			if err := f.SetCellValue(sheet, cell, row.Column); err != nil {
				return nil, fmt.Errorf("write column header %s: %w", row.Column, err)
			}
		}

		rowNum, ok := rowByStudent[row.StudentID]
		if !ok {
			rowNum = nextRow
			nextRow++
			rowByStudent[row.StudentID] = rowNum
			cell, _ := excelize.CoordinatesToCellName(1, rowNum)
			if err := f.SetCellValue(sheet, cell, row.StudentID); err != nil {
				return nil, fmt.Errorf("write student row %s: %w", row.StudentID, err)
			}
		}

		cell, err := excelize.CoordinatesToCellName(colNum, rowNum)
		if err != nil {
			result.OK = false
			result.FailedRows = append(result.FailedRows, row)
			continue
		}
		if err := f.SetCellValue(sheet, cell, row.Value); err != nil {
			return nil, fmt.Errorf("write cell %s: %w", cell, err)
		}
	}

	if created {
		if err := f.SaveAs(w.path); err != nil {
			return nil, fmt.Errorf("save workbook %s: %w", w.path, err)
		}
	} else if err := f.Save(); err != nil {
		return nil, fmt.Errorf("save workbook %s: %w", w.path, err)
	}

	return result, nil
}

func (w *Workbook) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return nil, false, fmt.Errorf("create workbook dir: %w", err)
		}
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, false, fmt.Errorf("open workbook %s: %w", w.path, err)
	}
	return f, false, nil
}

// index maps the header row to column numbers and the first column to row
// numbers. Row and column numbers are 1-based, matching excelize coordinates.
// nextCol and nextRow point past the whole occupied extent, not past the last
// indexed name: a gap in the header row or student column still holds data
// that a new allocation must not overwrite.
func index(grid [][]string) (colByName, rowByStudent map[string]int, nextCol, nextRow int) {
	colByName = make(map[string]int)
	rowByStudent = make(map[string]int)
	nextCol, nextRow = 2, 2
	if len(grid) > 0 {
		for i, name := range grid[0] {
			if i == 0 || name == "" {
				continue
			}
			colByName[name] = i + 1
		}
		if len(grid[0])+1 > nextCol {
			nextCol = len(grid[0]) + 1
		}
	}
	for i := 1; i < len(grid); i++ {
		if len(grid[i]) == 0 || grid[i][0] == "" {
			continue
		}
		rowByStudent[grid[i][0]] = i + 1
	}
	if len(grid)+1 > nextRow {
		nextRow = len(grid) + 1
	}
	return colByName, rowByStudent, nextCol, nextRow
}
