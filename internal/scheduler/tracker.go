package scheduler

import "github.com/noah-isme/timetable-api/internal/models"

// Cohort is the department+semester student group. Its members cannot attend
// two classes at once.
type Cohort struct {
	Department string
	Semester   int
}

// CohortOf returns the cohort a course belongs to.
func CohortOf(course models.Course) Cohort {
	return Cohort{Department: course.Department, Semester: course.Semester}
}

type occupancy map[Day]map[int]struct{}

func (o occupancy) has(day Day, hour int) bool {
	hours := o[day]
	if hours == nil {
		return false
	}
	_, ok := hours[hour]
	return ok
}

func (o occupancy) mark(day Day, hour int) {
	if o[day] == nil {
		o[day] = make(map[int]struct{})
	}
	o[day][hour] = struct{}{}
}

// near classifies a day's occupancy relative to hour: busy is true when
// anything is booked that day, adjacent when a booked hour is exactly one
// hour away.
func (o occupancy) near(day Day, hour int) (busy, adjacent bool) {
	hours := o[day]
	if len(hours) == 0 {
		return false, false
	}
	_, before := hours[hour-1]
	_, after := hours[hour+1]
	return true, before || after
}

// Tracker records which hours are committed on the faculty, classroom and
// cohort axes while one generation is being built. It is owned by a single
// run and is not safe for concurrent use.
type Tracker struct {
	grid       Grid
	faculty    map[string]occupancy
	classrooms map[string]occupancy
	cohorts    map[Cohort]occupancy
	cohortLoad map[Cohort]map[Day]int
}

// NewTracker returns an empty tracker bound to grid.
func NewTracker(grid Grid) *Tracker {
	return &Tracker{
		grid:       grid,
		faculty:    make(map[string]occupancy),
		classrooms: make(map[string]occupancy),
		cohorts:    make(map[Cohort]occupancy),
		cohortLoad: make(map[Cohort]map[Day]int),
	}
}

// TrackerFromEntries rebuilds occupancy from committed entries, skipping the
// entry at index skip. Pass -1 to include every entry.
func TrackerFromEntries(grid Grid, entries []models.TimetableEntry, skip int) *Tracker {
	tracker := NewTracker(grid)
	for i, entry := range entries {
		if i == skip {
			continue
		}
		cohort := Cohort{Department: entry.Department, Semester: entry.Semester}
		tracker.reserve(entry.FacultyID, entry.ClassroomID, cohort, Day(entry.Day), entry.StartHour, entry.Duration())
	}
	return tracker
}

// IsFree reports whether course can occupy [start, start+duration) on day with
// the given faculty and classroom: every hour must be on the grid and unbooked
// on all three axes.
func (t *Tracker) IsFree(course models.Course, facultyID, classroomID string, day Day, start int) bool {
	return t.isFree(facultyID, classroomID, CohortOf(course), day, start, course.Hours())
}

func (t *Tracker) isFree(facultyID, classroomID string, cohort Cohort, day Day, start, duration int) bool {
	hours, ok := t.grid.Span(start, duration)
	if !ok {
		return false
	}
	for _, hour := range hours {
		if t.faculty[facultyID].has(day, hour) {
			return false
		}
		if t.classrooms[classroomID].has(day, hour) {
			return false
		}
		if t.cohorts[cohort].has(day, hour) {
			return false
		}
	}
	return true
}

// Commit marks every hour of the course block as occupied. Callers check
// IsFree first.
func (t *Tracker) Commit(course models.Course, facultyID, classroomID string, day Day, start int) {
	t.reserve(facultyID, classroomID, CohortOf(course), day, start, course.Hours())
}

func (t *Tracker) reserve(facultyID, classroomID string, cohort Cohort, day Day, start, duration int) {
	if duration < 1 {
		duration = 1
	}
	if t.faculty[facultyID] == nil {
		t.faculty[facultyID] = make(occupancy)
	}
	if t.classrooms[classroomID] == nil {
		t.classrooms[classroomID] = make(occupancy)
	}
	if t.cohorts[cohort] == nil {
		t.cohorts[cohort] = make(occupancy)
	}
	for hour := start; hour < start+duration; hour++ {
		t.faculty[facultyID].mark(day, hour)
		t.classrooms[classroomID].mark(day, hour)
		t.cohorts[cohort].mark(day, hour)
	}
	if t.cohortLoad[cohort] == nil {
		t.cohortLoad[cohort] = make(map[Day]int)
	}
	t.cohortLoad[cohort][day]++
}

// CohortNear reports the cohort's booking state around hour on day.
func (t *Tracker) CohortNear(cohort Cohort, day Day, hour int) (busy, adjacent bool) {
	return t.cohorts[cohort].near(day, hour)
}

// FacultyNear reports the faculty's booking state around hour on day.
func (t *Tracker) FacultyNear(facultyID string, day Day, hour int) (busy, adjacent bool) {
	return t.faculty[facultyID].near(day, hour)
}

// CohortClasses returns how many classes the cohort already has on day.
func (t *Tracker) CohortClasses(cohort Cohort, day Day) int {
	return t.cohortLoad[cohort][day]
}
