package scheduler

import "sort"

// DefaultHours lists the daily start hours. 13:00 is the lunch break.
var DefaultHours = []int{10, 11, 12, 14, 15, 16}

// Slot is an atomic (weekday, clock-hour) scheduling unit.
type Slot struct {
	Day  Day
	Hour int
}

// Grid is the ordered set of candidate slots for one run.
type Grid struct {
	days     []Day
	position map[Day]int
	hours []int
	legal map[int]struct{}
	slots []Slot
}

// NewGrid crosses the given days with the legal hours. Slots are ordered by
// canonical weekday and then ascending hour; that order is the scorer's
// tie-break. A nil or empty hour list falls back to DefaultHours.
func NewGrid(days DaySet, hours []int) Grid {
	normalized := normalizeHours(hours)
	if len(normalized) == 0 {
		normalized = normalizeHours(DefaultHours)
	}
	legal := make(map[int]struct{}, len(normalized))
	for _, hour := range normalized {
		legal[hour] = struct{}{}
	}

	ordered := days.Sorted()
	slots := make([]Slot, 0, len(ordered)*len(normalized))
	for _, day := range ordered {
		for _, hour := range normalized {
			slots = append(slots, Slot{Day: day, Hour: hour})
		}
	}
	position := make(map[Day]int, len(ordered))
	for i, day := range ordered {
		position[day] = i
	}
	return Grid{days: ordered, position: position, hours: normalized, legal: legal, slots: slots}
}

func normalizeHours(hours []int) []int {
	seen := make(map[int]struct{}, len(hours))
	result := make([]int, 0, len(hours))
	for _, hour := range hours {
		if hour < 0 || hour > 23 {
			continue
		}
		if _, ok := seen[hour]; ok {
			continue
		}
		seen[hour] = struct{}{}
		result = append(result, hour)
	}
	sort.Ints(result)
	return result
}

// Slots returns the ordered candidate slots.
func (g Grid) Slots() []Slot {
	return g.slots
}

// Days returns the grid days in canonical order.
func (g Grid) Days() []Day {
	return g.days
}

// DayPosition returns the index of day within the grid's own day list. Days
// off the grid sort after every grid day.
func (g Grid) DayPosition(day Day) int {
	if i, ok := g.position[day]; ok {
		return i
	}
	return len(g.days)
}

// Hours returns the legal start hours in ascending order.
func (g Grid) Hours() []int {
	return g.hours
}

// Contains reports whether hour is on the grid.
func (g Grid) Contains(hour int) bool {
	_, ok := g.legal[hour]
	return ok
}

// Span returns the consecutive clock hours covered by a block of duration
// hours starting at start. ok is false when any of them is off the grid.
func (g Grid) Span(start, duration int) ([]int, bool) {
	if duration < 1 {
		duration = 1
	}
	hours := make([]int, 0, duration)
	for i := 0; i < duration; i++ {
		hour := start + i
		if !g.Contains(hour) {
			return nil, false
		}
		hours = append(hours, hour)
	}
	return hours, true
}

// HoursBefore returns the legal hours strictly earlier than hour, closest first.
func (g Grid) HoursBefore(hour int) []int {
	var result []int
	for i := len(g.hours) - 1; i >= 0; i-- {
		if g.hours[i] < hour {
			result = append(result, g.hours[i])
		}
	}
	return result
}
