package sheets

import (
	"fmt"
	"time"
)

// DateColumn derives the mirror column identifier for a lesson date. The
// format is fixed by the existing workbook layout: month abbreviation plus a
// zero-padded day, e.g. 2025-09-07 -> "Sep/07".
func DateColumn(date time.Time) string {
	return date.Format("Jan/02")
}

// ChapterColumn derives the mirror column identifier for a curriculum chapter.
func ChapterColumn(chapter int) string {
	return fmt.Sprintf("Ch/%02d", chapter)
}
