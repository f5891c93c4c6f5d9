package scheduler

import "github.com/noah-isme/timetable-api/internal/models"

// Move records an entry shifted earlier by Compact.
type Move struct {
	Index    int
	FromHour int
	ToHour   int
}

// Compact slides each entry, in slice order, to the closest earlier hour on
// the same day where its whole block fits. Occupancy is rebuilt from the other
// entries for every candidate hour, so a shift made for one entry is visible to
// the entries after it. Entries are mutated in place; entries with no earlier
// feasible hour are left untouched.
func Compact(grid Grid, entries []models.TimetableEntry) []Move {
	var moves []Move
	for i := range entries {
		entry := entries[i]
		duration := entry.Duration()
		cohort := Cohort{Department: entry.Department, Semester: entry.Semester}
		day := Day(entry.Day)

		for _, hour := range grid.HoursBefore(entry.StartHour) {
			tracker := TrackerFromEntries(grid, entries, i)
			if !tracker.isFree(entry.FacultyID, entry.ClassroomID, cohort, day, hour, duration) {
				continue
			}
			entries[i].StartHour = hour
			entries[i].EndHour = hour + duration
			moves = append(moves, Move{Index: i, FromHour: entry.StartHour, ToHour: hour})
			break
		}
	}
	return moves
}
