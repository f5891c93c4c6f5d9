package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridOrdersByWeekdayThenHour(t *testing.T) {
	grid := NewGrid(NewDaySet(Friday, Monday, Wednesday), nil)

	slots := grid.Slots()
	require.Len(t, slots, 18)
	assert.Equal(t, Slot{Day: Monday, Hour: 10}, slots[0])
	assert.Equal(t, Slot{Day: Monday, Hour: 16}, slots[5])
	assert.Equal(t, Slot{Day: Wednesday, Hour: 10}, slots[6])
	assert.Equal(t, Slot{Day: Friday, Hour: 16}, slots[17])
	assert.Equal(t, []Day{Monday, Wednesday, Friday}, grid.Days())
}

func TestNewGridNormalisesHours(t *testing.T) {
	grid := NewGrid(NewDaySet(Monday), []int{14, 10, 10, 25, -1})
	assert.Equal(t, []int{10, 14}, grid.Hours())

	fallback := NewGrid(NewDaySet(Monday), nil)
	assert.Equal(t, DefaultHours, fallback.Hours())
}

func TestGridSpan(t *testing.T) {
	grid := NewGrid(NewDaySet(Monday), nil)

	hours, ok := grid.Span(10, 2)
	assert.True(t, ok)
	assert.Equal(t, []int{10, 11}, hours)

	_, ok = grid.Span(12, 2)
	assert.False(t, ok, "13:00 is the lunch break")

	_, ok = grid.Span(16, 2)
	assert.False(t, ok)

	hours, ok = grid.Span(14, 3)
	assert.True(t, ok)
	assert.Equal(t, []int{14, 15, 16}, hours)
}

func TestGridHoursBefore(t *testing.T) {
	grid := NewGrid(NewDaySet(Monday), nil)
	assert.Equal(t, []int{12, 11, 10}, grid.HoursBefore(14))
	assert.Empty(t, grid.HoursBefore(10))
	assert.True(t, grid.Contains(16))
	assert.False(t, grid.Contains(13))
}
