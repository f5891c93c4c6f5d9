package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestDetectConflictsExpandsBlocks(t *testing.T) {
	entries := []models.TimetableEntry{
		entry("a", "f1", "r1", "cse", 1, Monday, 10, 2),
		entry("b", "f1", "r2", "ece", 2, Monday, 11, 1),
	}

	conflicts := DetectConflicts(entries)

	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictFaculty, conflicts[0].Dimension)
	assert.Equal(t, "f1", conflicts[0].Resource)
	assert.Equal(t, Monday, conflicts[0].Day)
	assert.Equal(t, 11, conflicts[0].Hour)
	assert.Equal(t, []string{"a", "b"}, conflicts[0].EntryIDs)
}

func TestDetectConflictsAllAxes(t *testing.T) {
	entries := []models.TimetableEntry{
		entry("a", "f1", "r1", "cse", 1, Tuesday, 14, 1),
		entry("b", "f1", "r1", "cse", 1, Tuesday, 14, 1),
	}

	conflicts := DetectConflicts(entries)

	require.Len(t, conflicts, 3)
	assert.Equal(t, ConflictFaculty, conflicts[0].Dimension)
	assert.Equal(t, ConflictClassroom, conflicts[1].Dimension)
	assert.Equal(t, ConflictCohort, conflicts[2].Dimension)
	assert.Equal(t, "cse/1", conflicts[2].Resource)
}

func TestDetectConflictsCleanSchedule(t *testing.T) {
	entries := []models.TimetableEntry{
		entry("a", "f1", "r1", "cse", 1, Monday, 10, 1),
		entry("b", "f1", "r1", "cse", 1, Monday, 11, 1),
		entry("c", "f1", "r1", "cse", 1, Tuesday, 10, 1),
	}
	assert.Empty(t, DetectConflicts(entries))
}
