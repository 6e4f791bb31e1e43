package sheets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func cellValue(t *testing.T, path, sheet, cell string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	value, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return value
}

func TestWriteBatchCreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	wb := NewWorkbook(path, nil)

	result, err := wb.WriteBatch(context.Background(), "Attendance", []Row{
		{StudentID: "s-1", Column: "Sep/07", Value: "P"},
		{StudentID: "s-2", Column: "Sep/07", Value: "M"},
	})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.FailedRows)

	assert.Equal(t, "Student", cellValue(t, path, "Attendance", "A1"))
	assert.Equal(t, "Sep/07", cellValue(t, path, "Attendance", "B1"))
	assert.Equal(t, "s-1", cellValue(t, path, "Attendance", "A2"))
	assert.Equal(t, "P", cellValue(t, path, "Attendance", "B2"))
	assert.Equal(t, "M", cellValue(t, path, "Attendance", "B3"))
}

func TestWriteBatchOverwritesExistingCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	wb := NewWorkbook(path, nil)
	ctx := context.Background()

	_, err := wb.WriteBatch(ctx, "Attendance", []Row{
		{StudentID: "s-1", Column: "Sep/07", Value: "M"},
	})
	require.NoError(t, err)

	// Same student and column again writes to the same cell.
	_, err = wb.WriteBatch(ctx, "Attendance", []Row{
		{StudentID: "s-1", Column: "Sep/07", Value: "E"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	grid, err := f.GetRows("Attendance")
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.Equal(t, []string{"s-1", "E"}, grid[1])
}

func TestWriteBatchExtendsColumnsAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	wb := NewWorkbook(path, nil)
	ctx := context.Background()

	_, err := wb.WriteBatch(ctx, "Evaluation", []Row{
		{StudentID: "s-1", Column: "Ch/01", Value: "4"},
	})
	require.NoError(t, err)

	_, err = wb.WriteBatch(ctx, "Evaluation", []Row{
		{StudentID: "s-2", Column: "Ch/02", Value: "5"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Ch/01", cellValue(t, path, "Evaluation", "B1"))
	assert.Equal(t, "Ch/02", cellValue(t, path, "Evaluation", "C1"))
	assert.Equal(t, "s-2", cellValue(t, path, "Evaluation", "A3"))
	assert.Equal(t, "5", cellValue(t, path, "Evaluation", "C3"))
}

func TestWriteBatchAllocatesPastGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")

	// Hand-built sheet with a blank header cell at B1 and a row without a
	// student id, the shape a manual edit leaves behind.
	f := excelize.NewFile()
	_, err := f.NewSheet("Attendance")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Attendance", "A1", "Student"))
	require.NoError(t, f.SetCellValue("Attendance", "C1", "Sep/14"))
	require.NoError(t, f.SetCellValue("Attendance", "A2", "s-1"))
	require.NoError(t, f.SetCellValue("Attendance", "C2", "P"))
	require.NoError(t, f.SetCellValue("Attendance", "C3", "?"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	wb := NewWorkbook(path, nil)
	_, err = wb.WriteBatch(context.Background(), "Attendance", []Row{
		{StudentID: "s-2", Column: "Sep/21", Value: "M"},
	})
	require.NoError(t, err)

	// The new column and row land past the occupied extent, not in the gaps.
	assert.Equal(t, "Sep/21", cellValue(t, path, "Attendance", "D1"))
	assert.Equal(t, "s-2", cellValue(t, path, "Attendance", "A4"))
	assert.Equal(t, "M", cellValue(t, path, "Attendance", "D4"))
	assert.Equal(t, "Sep/14", cellValue(t, path, "Attendance", "C1"))
	assert.Equal(t, "?", cellValue(t, path, "Attendance", "C3"))
}

func TestWriteBatchReportsUnaddressableRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	wb := NewWorkbook(path, nil)

	result, err := wb.WriteBatch(context.Background(), "Attendance", []Row{
		{StudentID: "", Column: "Sep/07", Value: "P"},
		{StudentID: "s-1", Column: "", Value: "P"},
		{StudentID: "s-1", Column: "Sep/07", Value: "P"},
	})
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Len(t, result.FailedRows, 2)

	assert.Equal(t, "P", cellValue(t, path, "Attendance", "B2"))
}

func TestWriteBatchEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	wb := NewWorkbook(path, nil)

	result, err := wb.WriteBatch(context.Background(), "Attendance", nil)
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestWriteBatchCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.xlsx")
	wb := NewWorkbook(path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := wb.WriteBatch(ctx, "Attendance", []Row{
		{StudentID: "s-1", Column: "Sep/07", Value: "P"},
	})
	require.Error(t, err)
}
