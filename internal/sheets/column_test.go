package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateColumn(t *testing.T) {
	cases := []struct {
		date     time.Time
		expected string
	}{
		{time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), "Sep/07"},
		{time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), "Jan/03"},
		{time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC), "Dec/25"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, DateColumn(tc.date))
	}
}

func TestChapterColumn(t *testing.T) {
	assert.Equal(t, "Ch/03", ChapterColumn(3))
	assert.Equal(t, "Ch/12", ChapterColumn(12))
}
