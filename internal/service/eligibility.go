package service

import "github.com/parokia/catechesis-api/internal/models"

// JuniorYearLevelMax is the year level that partitions junior from senior
// catechism groups: levels 1..5 are junior, everything above is senior.
const JuniorYearLevelMax = 5

// ExpectedFor reports whether the teacher owes a submission for the lesson
// occurrence. Total over all inputs; teachers without a class assignment are
// excluded before this is ever consulted.
func ExpectedFor(teacher models.Teacher, occurrence models.LessonOccurrence) bool {
	switch occurrence.Cohort {
	case models.CohortBoth:
		return true
	case models.CohortJunior:
		return teacher.YearLevel <= JuniorYearLevelMax
	case models.CohortSenior:
		return teacher.YearLevel > JuniorYearLevelMax
	default:
		return false
	}
}
