package scheduler

import (
	"sort"
	"strings"
)

// Day is a weekday label as stored on timetable entries.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
	Saturday  Day = "Saturday"
	Sunday    Day = "Sunday"
)

var canonicalDays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayTokens = map[string]Day{
	"mon":       Monday,
	"tue":       Tuesday,
	"wed":       Wednesday,
	"thu":       Thursday,
	"fri":       Friday,
	"sat":       Saturday,
	"sun":       Sunday,
	"monday":    Monday,
	"tuesday":   Tuesday,
	"wednesday": Wednesday,
	"thursday":  Thursday,
	"friday":    Friday,
	"saturday":  Saturday,
	"sunday":    Sunday,
}

// DayIndex returns the canonical position of d with Monday at 0.
// Unrecognised labels sort after Sunday.
func DayIndex(d Day) int {
	for i, candidate := range canonicalDays {
		if candidate == d {
			return i
		}
	}
	return len(canonicalDays)
}

// ParseDay resolves a day label or abbreviation, case-insensitively.
func ParseDay(raw string) (Day, bool) {
	day, ok := dayTokens[strings.ToLower(strings.TrimSpace(raw))]
	return day, ok
}

// DaySet is an unordered set of weekdays.
type DaySet map[Day]struct{}

// NewDaySet builds a set from the provided days.
func NewDaySet(days ...Day) DaySet {
	set := make(DaySet, len(days))
	for _, day := range days {
		set[day] = struct{}{}
	}
	return set
}

// Has reports whether day is part of the set.
func (s DaySet) Has(day Day) bool {
	_, ok := s[day]
	return ok
}

// Merge adds every day of other into s.
func (s DaySet) Merge(other DaySet) {
	for day := range other {
		s[day] = struct{}{}
	}
}

// Sorted returns the days in canonical weekday order.
func (s DaySet) Sorted() []Day {
	days := make([]Day, 0, len(s))
	for day := range s {
		days = append(days, day)
	}
	sortDays(days)
	return days
}

func sortDays(days []Day) {
	sort.SliceStable(days, func(i, j int) bool {
		left, right := DayIndex(days[i]), DayIndex(days[j])
		if left == right {
			return days[i] < days[j]
		}
		return left < right
	})
}

// ParseAvailability extracts the weekdays mentioned in a free-form availability
// string such as "Mon,Wed 9:00-17:00". Tokens that are not weekday names are
// ignored, so malformed input yields an empty set rather than an error.
func ParseAvailability(raw string) DaySet {
	set := make(DaySet)
	normalized := strings.ReplaceAll(strings.ToLower(raw), ",", " ")
	for _, token := range strings.Fields(normalized) {
		if day, ok := dayTokens[token]; ok {
			set[day] = struct{}{}
		}
	}
	return set
}
