package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/timetable-api/internal/models"
)

// ConflictDimension names the resource axis of a double booking.
type ConflictDimension string

const (
	ConflictFaculty   ConflictDimension = "FACULTY"
	ConflictClassroom ConflictDimension = "CLASSROOM"
	ConflictCohort    ConflictDimension = "COHORT"
)

var dimensionOrder = map[ConflictDimension]int{
	ConflictFaculty:   0,
	ConflictClassroom: 1,
	ConflictCohort:    2,
}

// Conflict is one resource hour claimed by more than one entry.
type Conflict struct {
	Dimension ConflictDimension `json:"dimension"`
	Resource  string            `json:"resource"`
	Day       Day               `json:"day"`
	Hour      int               `json:"hour"`
	EntryIDs  []string          `json:"entryIds"`
}

type bookingKey struct {
	dimension ConflictDimension
	resource  string
	day       Day
	hour      int
}

// DetectConflicts lists every double-booked (resource, day, hour) across the
// given entries. Multi-hour entries claim every hour they span. The result is
// sorted by dimension, resource, day and hour.
func DetectConflicts(entries []models.TimetableEntry) []Conflict {
	bookings := make(map[bookingKey][]string)
	var keys []bookingKey
	claim := func(key bookingKey, id string) {
		if _, ok := bookings[key]; !ok {
			keys = append(keys, key)
		}
		bookings[key] = append(bookings[key], id)
	}

	for _, entry := range entries {
		id := entry.ID
		if id == "" {
			id = fmt.Sprintf("#%d", entry.Seq)
		}
		day := Day(entry.Day)
		cohort := fmt.Sprintf("%s/%d", entry.Department, entry.Semester)
		for hour := entry.StartHour; hour < entry.StartHour+entry.Duration(); hour++ {
			claim(bookingKey{ConflictFaculty, entry.FacultyID, day, hour}, id)
			claim(bookingKey{ConflictClassroom, entry.ClassroomID, day, hour}, id)
			claim(bookingKey{ConflictCohort, cohort, day, hour}, id)
		}
	}

	conflicts := make([]Conflict, 0)
	for _, key := range keys {
		ids := bookings[key]
		if len(ids) < 2 {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Dimension: key.dimension,
			Resource:  key.resource,
			Day:       key.day,
			Hour:      key.hour,
			EntryIDs:  ids,
		})
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Dimension != b.Dimension {
			return dimensionOrder[a.Dimension] < dimensionOrder[b.Dimension]
		}
		if a.Resource != b.Resource {
			return a.Resource < b.Resource
		}
		if DayIndex(a.Day) != DayIndex(b.Day) {
			return DayIndex(a.Day) < DayIndex(b.Day)
		}
		return a.Hour < b.Hour
	})
	return conflicts
}
