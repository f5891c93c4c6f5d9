package scheduler

import "github.com/noah-isme/timetable-api/internal/models"

// Heuristic weights. Adjacency bonuses dominate so that a cohort's and a
// lecturer's classes pack into contiguous blocks.
const (
	cohortAdjacentBonus   = 2000
	cohortScatterPenalty  = 100
	cohortFirstClassBonus = 300

	facultyAdjacentBonus   = 1200
	facultyScatterPenalty  = 200
	facultyFirstClassBonus = 500

	cohortLoadPenalty = 150

	earlyDayBase   = 5
	earlyDayWeight = 300

	mondayBlockBonus = 1000
	startHourWeight  = 50
	dayEndHour       = 17
)

// Candidate is a feasible (day, hour, classroom) choice for a course.
type Candidate struct {
	Day         Day
	Hour        int
	ClassroomID string
	FacultyID   string
	Score       int
}

// Scorer ranks feasible candidates for a course against the current tracker.
type Scorer struct {
	grid        Grid
	tracker     *Tracker
	classrooms  []models.Classroom
	facultyDays map[string]DaySet
}

// NewScorer binds a scorer to the run's grid, tracker and resources.
func NewScorer(grid Grid, tracker *Tracker, classrooms []models.Classroom, facultyDays map[string]DaySet) *Scorer {
	return &Scorer{grid: grid, tracker: tracker, classrooms: classrooms, facultyDays: facultyDays}
}

// Best returns the highest scoring feasible candidate. Slots are visited in
// grid order and classrooms in input order; the first candidate seen with the
// top score wins.
func (s *Scorer) Best(course models.Course) (Candidate, bool) {
	facultyID := course.AssignedFaculty()
	if facultyID == "" {
		return Candidate{}, false
	}
	days, ok := s.facultyDays[facultyID]
	if !ok {
		return Candidate{}, false
	}

	var (
		best  Candidate
		found bool
	)
	for _, slot := range s.grid.Slots() {
		if !days.Has(slot.Day) {
			continue
		}
		scored := false
		score := 0
		for _, room := range s.classrooms {
			if !s.tracker.IsFree(course, facultyID, room.ID, slot.Day, slot.Hour) {
				continue
			}
			if !scored {
				score = s.Score(course, facultyID, slot.Day, slot.Hour)
				scored = true
			}
			if !found || score > best.Score {
				best = Candidate{Day: slot.Day, Hour: slot.Hour, ClassroomID: room.ID, FacultyID: facultyID, Score: score}
				found = true
			}
		}
	}
	return best, found
}

// Score evaluates placing course at (day, hour). The classroom does not
// influence the score.
func (s *Scorer) Score(course models.Course, facultyID string, day Day, hour int) int {
	score := 0
	cohort := CohortOf(course)

	switch busy, adjacent := s.tracker.CohortNear(cohort, day, hour); {
	case adjacent:
		score += cohortAdjacentBonus
	case busy:
		score -= cohortScatterPenalty
	default:
		score += cohortFirstClassBonus
	}

	switch busy, adjacent := s.tracker.FacultyNear(facultyID, day, hour); {
	case adjacent:
		score += facultyAdjacentBonus
	case busy:
		score -= facultyScatterPenalty
	default:
		score += facultyFirstClassBonus
	}

	// Monday is exempt so the earliest weekday packs densely.
	if day != Monday {
		score -= s.tracker.CohortClasses(cohort, day) * cohortLoadPenalty
	}

	// Earlier days of this run's week score higher, whatever weekdays it spans.
	score += (earlyDayBase - s.grid.DayPosition(day)) * earlyDayWeight

	multiHour := course.Hours() > 1
	if day == Monday && multiHour {
		score += mondayBlockBonus
		score += hour * startHourWeight
	} else {
		score += (dayEndHour - hour) * startHourWeight
	}
	return score
}
