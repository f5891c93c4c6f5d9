package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
)

// Phase is a step of one generation run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseClearing
	PhaseScheduling
	PhasePersisting
	PhaseCompacting
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseIdle:       "idle",
	PhaseClearing:   "clearing",
	PhaseScheduling: "scheduling",
	PhasePersisting: "persisting",
	PhaseCompacting: "compacting",
	PhaseDone:       "done",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// OutcomeStatus classifies what happened to a course during a run.
type OutcomeStatus string

const (
	OutcomePlaced         OutcomeStatus = "PLACED"
	OutcomeNoFaculty      OutcomeStatus = "NO_FACULTY"
	OutcomeNoAvailability OutcomeStatus = "NO_AVAILABILITY"
	OutcomeNoFeasibleSlot OutcomeStatus = "NO_FEASIBLE_SLOT"
)

// Placement is a committed course block.
type Placement struct {
	Course      models.Course
	FacultyID   string
	ClassroomID string
	Day         Day
	StartHour   int
	EndHour     int
	Score       int
}

// Outcome reports the result for one input course.
type Outcome struct {
	CourseID string        `json:"courseId"`
	Status   OutcomeStatus `json:"status"`
}

// Input bundles the records of one run. Courses are scheduled in the given order.
type Input struct {
	Courses    []models.Course
	Faculty    []models.Faculty
	Classrooms []models.Classroom
	Hours      []int
}

// Result is the output of Assign.
type Result struct {
	Grid       Grid
	Placements []Placement
	Outcomes   []Outcome
}

// Dropped returns the outcomes of courses that were not placed.
func (r Result) Dropped() []Outcome {
	var dropped []Outcome
	for _, outcome := range r.Outcomes {
		if outcome.Status != OutcomePlaced {
			dropped = append(dropped, outcome)
		}
	}
	return dropped
}

// Entries converts placements into timetable rows tagged with generation.
// Seq follows commit order.
func (r Result) Entries(generation int) []models.TimetableEntry {
	entries := make([]models.TimetableEntry, 0, len(r.Placements))
	for i, placement := range r.Placements {
		entries = append(entries, models.TimetableEntry{
			Generation:  generation,
			Seq:         i + 1,
			CourseID:    placement.Course.ID,
			FacultyID:   placement.FacultyID,
			ClassroomID: placement.ClassroomID,
			Day:         string(placement.Day),
			StartHour:   placement.StartHour,
			EndHour:     placement.EndHour,
			Department:  placement.Course.Department,
			Semester:    placement.Course.Semester,
		})
	}
	return entries
}

// Engine runs the greedy single-pass assignment.
type Engine struct {
	logger *zap.Logger
}

// NewEngine constructs an engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Assign places every course it can, in input order, without backtracking.
// Courses with no feasible candidate are dropped and reported in Outcomes.
// The only error is ctx cancellation, checked between courses.
func (e *Engine) Assign(ctx context.Context, in Input) (Result, error) {
	facultyDays := make(map[string]DaySet, len(in.Faculty))
	union := make(DaySet)
	for _, faculty := range in.Faculty {
		days := ParseAvailability(faculty.Availability)
		facultyDays[faculty.ID] = days
		union.Merge(days)
	}

	grid := NewGrid(union, in.Hours)
	tracker := NewTracker(grid)
	scorer := NewScorer(grid, tracker, in.Classrooms, facultyDays)

	result := Result{
		Grid:       grid,
		Placements: make([]Placement, 0, len(in.Courses)),
		Outcomes:   make([]Outcome, 0, len(in.Courses)),
	}
	for _, course := range in.Courses {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		candidate, ok := scorer.Best(course)
		if !ok {
			status := dropReason(course, facultyDays)
			result.Outcomes = append(result.Outcomes, Outcome{CourseID: course.ID, Status: status})
			e.logger.Debug("course dropped",
				zap.String("course_id", course.ID),
				zap.String("reason", string(status)),
			)
			continue
		}

		tracker.Commit(course, candidate.FacultyID, candidate.ClassroomID, candidate.Day, candidate.Hour)
		result.Placements = append(result.Placements, Placement{
			Course:      course,
			FacultyID:   candidate.FacultyID,
			ClassroomID: candidate.ClassroomID,
			Day:         candidate.Day,
			StartHour:   candidate.Hour,
			EndHour:     candidate.Hour + course.Hours(),
			Score:       candidate.Score,
		})
		result.Outcomes = append(result.Outcomes, Outcome{CourseID: course.ID, Status: OutcomePlaced})
	}

	e.logger.Info("assignment finished",
		zap.Int("courses", len(in.Courses)),
		zap.Int("placed", len(result.Placements)),
		zap.Int("days", len(grid.Days())),
		zap.Int("slots", len(grid.Slots())),
	)
	return result, nil
}

func dropReason(course models.Course, facultyDays map[string]DaySet) OutcomeStatus {
	days, ok := facultyDays[course.AssignedFaculty()]
	if !ok {
		return OutcomeNoFaculty
	}
	if len(days) == 0 {
		return OutcomeNoAvailability
	}
	return OutcomeNoFeasibleSlot
}
