package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestScorerWeights(t *testing.T) {
	grid := NewGrid(NewDaySet(Monday, Tuesday), nil)
	tracker := NewTracker(grid)
	scorer := NewScorer(grid, tracker, []models.Classroom{{ID: "r1"}}, map[string]DaySet{
		"f1": NewDaySet(Monday, Tuesday),
		"f2": NewDaySet(Monday, Tuesday),
	})

	single := testCourse("single", "f1", "r1", "cse", 1, 1)
	assert.Equal(t, 300+500+5*300+7*50, scorer.Score(single, "f1", Monday, 10))

	tracker.Commit(single, "f1", "r1", Tuesday, 10)
	peer := testCourse("peer", "f2", "r1", "cse", 1, 1)
	assert.Equal(t, 2000+500-150+4*300+6*50, scorer.Score(peer, "f2", Tuesday, 11))
	assert.Equal(t, -100+500-150+4*300+2*50, scorer.Score(peer, "f2", Tuesday, 15))

	block := testCourse("block", "f1", "r1", "ece", 2, 2)
	assert.Equal(t, 300-200+4*300+3*50, scorer.Score(block, "f1", Tuesday, 14))
	assert.Equal(t, 300+500+5*300+1000+14*50, scorer.Score(block, "f1", Monday, 14))
}

func TestScorerSkipsCourseWithoutFaculty(t *testing.T) {
	grid := NewGrid(NewDaySet(Monday), nil)
	scorer := NewScorer(grid, NewTracker(grid), []models.Classroom{{ID: "r1"}}, map[string]DaySet{})

	_, ok := scorer.Best(testCourse("orphan", "", "r1", "cse", 1, 1))
	assert.False(t, ok)
}

func TestScorerRanksDaysByGridPosition(t *testing.T) {
	grid := NewGrid(NewDaySet(Monday, Friday), nil)
	assert.Equal(t, 0, grid.DayPosition(Monday))
	assert.Equal(t, 1, grid.DayPosition(Friday))
	assert.Equal(t, 2, grid.DayPosition(Wednesday))

	tracker := NewTracker(grid)
	for i, hour := range []int{10, 14, 15} {
		peer := testCourse(fmt.Sprintf("peer-%d", i), "fb", "r1", "cse", 1, 1)
		tracker.Commit(peer, "fb", "r1", Friday, hour)
	}
	scorer := NewScorer(grid, tracker, []models.Classroom{{ID: "r1"}}, map[string]DaySet{
		"fa": NewDaySet(Monday, Friday),
		"fb": NewDaySet(Friday),
	})
	course := testCourse("lecture", "fa", "r1", "cse", 1, 1)

	assert.Equal(t, 2000+500-3*150+4*300+1*50, scorer.Score(course, "fa", Friday, 16))
	assert.Equal(t, 300+500+5*300+7*50, scorer.Score(course, "fa", Monday, 10))

	best, ok := scorer.Best(course)
	require.True(t, ok)
	assert.Equal(t, Friday, best.Day)
	assert.Equal(t, 11, best.Hour)
	assert.Equal(t, 2000+500-3*150+4*300+6*50, best.Score)
}
