// Command mirror_audit compares records marked as synced in the database
// against the spreadsheet mirror and reports drift. The database is the
// source of truth; a drifted cell means the mirror needs a resync, never
// the other way around.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/xuri/excelize/v2"
)

type syncedRecord struct {
	StudentID string `db:"student_id"`
	Column    string `db:"sheet_column"`
	Value     string `db:"value"`
}

type drift struct {
	Sheet     string
	StudentID string
	Column    string
	Want      string
	Got       string
}

func main() {
	var (
		dsn          string
		workbookPath string
		attSheet     string
		evalSheet    string
	)

	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.StringVar(&workbookPath, "workbook", "./mirror/register.xlsx", "Path to the mirror workbook")
	flag.StringVar(&attSheet, "attendance-sheet", "Attendance", "Attendance sheet name")
	flag.StringVar(&evalSheet, "evaluation-sheet", "Evaluation", "Evaluation sheet name")
	flag.Parse()

	if dsn == "" {
		log.Fatal("dsn is required (flag -dsn or DATABASE_URL)")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	workbook, err := excelize.OpenFile(workbookPath)
	if err != nil {
		log.Fatalf("failed to open workbook: %v", err)
	}
	defer workbook.Close() //nolint:errcheck

	attendance, err := loadSynced(db, `
		SELECT student_id, sheet_column, status AS value
		FROM attendance_records
		WHERE synced_to_sheets = TRUE`)
	if err != nil {
		log.Fatalf("failed to load attendance records: %v", err)
	}
	evaluations, err := loadSynced(db, `
		SELECT student_id, sheet_column, rating::text AS value
		FROM evaluation_records
		WHERE synced_to_sheets = TRUE`)
	if err != nil {
		log.Fatalf("failed to load evaluation records: %v", err)
	}

	started := time.Now()
	var drifts []drift
	drifts = append(drifts, auditSheet(workbook, attSheet, attendance)...)
	drifts = append(drifts, auditSheet(workbook, evalSheet, evaluations)...)

	fmt.Printf("audited %d records in %s\n", len(attendance)+len(evaluations), time.Since(started).Round(time.Millisecond))
	for _, d := range drifts {
		fmt.Printf("DRIFT %s student=%s column=%s want=%q got=%q\n", d.Sheet, d.StudentID, d.Column, d.Want, d.Got)
	}
	fmt.Printf("drifted cells: %d\n", len(drifts))
	if len(drifts) > 0 {
		os.Exit(1)
	}
}

func loadSynced(db *sqlx.DB, query string) ([]syncedRecord, error) {
	var records []syncedRecord
	if err := db.Select(&records, query); err != nil {
		return nil, err
	}
	return records, nil
}

// auditSheet indexes the sheet by its header row and first column, then checks
// every synced record's cell.
func auditSheet(workbook *excelize.File, sheet string, records []syncedRecord) []drift {
	var drifts []drift
	if len(records) == 0 {
		return drifts
	}
	if idx, err := workbook.GetSheetIndex(sheet); err != nil || idx == -1 {
		for _, record := range records {
			drifts = append(drifts, drift{Sheet: sheet, StudentID: record.StudentID, Column: record.Column, Want: record.Value, Got: "<missing sheet>"})
		}
		return drifts
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil || len(rows) == 0 {
		for _, record := range records {
			drifts = append(drifts, drift{Sheet: sheet, StudentID: record.StudentID, Column: record.Column, Want: record.Value, Got: "<empty sheet>"})
		}
		return drifts
	}

	colByName := map[string]int{}
	for i, name := range rows[0] {
		colByName[name] = i
	}
	rowByStudent := map[string]int{}
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		rowByStudent[row[0]] = i
	}

	for _, record := range records {
		got := "<missing cell>"
		colIdx, colOK := colByName[record.Column]
		rowIdx, rowOK := rowByStudent[record.StudentID]
		if colOK && rowOK && colIdx < len(rows[rowIdx]) {
			got = rows[rowIdx][colIdx]
		}
		if got != record.Value {
			drifts = append(drifts, drift{Sheet: sheet, StudentID: record.StudentID, Column: record.Column, Want: record.Value, Got: got})
		}
	}
	return drifts
}
