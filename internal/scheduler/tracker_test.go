package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestTrackerAxesAreIndependent(t *testing.T) {
	grid := NewGrid(NewDaySet(Monday, Tuesday), nil)
	tracker := NewTracker(grid)

	lab := testCourse("lab", "f1", "r1", "cse", 3, 2)
	tracker.Commit(lab, "f1", "r1", Monday, 10)

	other := testCourse("other", "f2", "r2", "ece", 5, 1)
	sameCohort := testCourse("same", "f2", "r2", "cse", 3, 1)

	assert.False(t, tracker.IsFree(other, "f1", "r2", Monday, 11), "faculty busy")
	assert.False(t, tracker.IsFree(other, "f2", "r1", Monday, 11), "classroom busy")
	assert.False(t, tracker.IsFree(sameCohort, "f2", "r2", Monday, 11), "cohort busy")
	assert.True(t, tracker.IsFree(other, "f2", "r2", Monday, 11))
	assert.True(t, tracker.IsFree(sameCohort, "f1", "r1", Monday, 12))
	assert.True(t, tracker.IsFree(sameCohort, "f1", "r1", Tuesday, 10))
}

func TestTrackerRejectsOffGridSpans(t *testing.T) {
	tracker := NewTracker(NewGrid(NewDaySet(Monday), nil))
	block := testCourse("block", "f1", "r1", "cse", 1, 2)

	assert.False(t, tracker.IsFree(block, "f1", "r1", Monday, 12))
	assert.False(t, tracker.IsFree(block, "f1", "r1", Monday, 16))
	assert.False(t, tracker.IsFree(block, "f1", "r1", Monday, 9))
	assert.True(t, tracker.IsFree(block, "f1", "r1", Monday, 15))
}

func TestTrackerNeighbourhood(t *testing.T) {
	tracker := NewTracker(NewGrid(NewDaySet(Monday), nil))
	course := testCourse("c1", "f1", "r1", "cse", 1, 1)
	cohort := CohortOf(course)

	busy, adjacent := tracker.CohortNear(cohort, Monday, 11)
	assert.False(t, busy)
	assert.False(t, adjacent)

	tracker.Commit(course, "f1", "r1", Monday, 10)

	busy, adjacent = tracker.CohortNear(cohort, Monday, 11)
	assert.True(t, busy)
	assert.True(t, adjacent)

	busy, adjacent = tracker.FacultyNear("f1", Monday, 14)
	assert.True(t, busy)
	assert.False(t, adjacent)

	assert.Equal(t, 1, tracker.CohortClasses(cohort, Monday))
	assert.Equal(t, 0, tracker.CohortClasses(cohort, Tuesday))
}

func TestTrackerFromEntriesSkipsIndex(t *testing.T) {
	grid := NewGrid(NewDaySet(Monday), nil)
	entries := []models.TimetableEntry{
		{FacultyID: "f1", ClassroomID: "r1", Day: "Monday", StartHour: 10, EndHour: 12, Department: "cse", Semester: 1},
		{FacultyID: "f2", ClassroomID: "r2", Day: "Monday", StartHour: 14, EndHour: 15, Department: "ece", Semester: 1},
	}
	probe := testCourse("probe", "f1", "r9", "me", 1, 1)

	full := TrackerFromEntries(grid, entries, -1)
	assert.False(t, full.IsFree(probe, "f1", "r9", Monday, 11), "second hour of the block is occupied")

	skipped := TrackerFromEntries(grid, entries, 0)
	assert.True(t, skipped.IsFree(probe, "f1", "r9", Monday, 11))
	assert.False(t, skipped.IsFree(probe, "f9", "r2", Monday, 14))
}

func testCourse(id, faculty, classroom, department string, semester, duration int) models.Course {
	course := models.Course{ID: id, Duration: duration, Department: department, Semester: semester}
	if faculty != "" {
		course.FacultyID = &faculty
	}
	if classroom != "" {
		course.ClassroomID = &classroom
	}
	return course
}
