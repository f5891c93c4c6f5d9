package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableEntry is one committed placement inside a generation.
type TimetableEntry struct {
	ID          string    `db:"id" json:"id"`
	Generation  int       `db:"generation" json:"generation"`
	Seq         int       `db:"seq" json:"seq"`
	CourseID    string    `db:"course_id" json:"course_id"`
	FacultyID   string    `db:"faculty_id" json:"faculty_id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	Day         string    `db:"day" json:"day"`
	StartHour   int       `db:"start_hour" json:"start_hour"`
	EndHour     int       `db:"end_hour" json:"end_hour"`
	Department  string    `db:"department" json:"department"`
	Semester    int       `db:"semester" json:"semester"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the block length in hours.
func (e TimetableEntry) Duration() int {
	if d := e.EndHour - e.StartHour; d > 0 {
		return d
	}
	return 1
}

// TimetableGeneration records one run of the generator. Rows outlive the
// entries they tag so the counter never restarts.
type TimetableGeneration struct {
	ID           int            `db:"id" json:"id"`
	PlacedCount  int            `db:"placed_count" json:"placed_count"`
	DroppedCount int            `db:"dropped_count" json:"dropped_count"`
	Meta         types.JSONText `db:"meta" json:"meta"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// TimetableFilter narrows entry listings.
type TimetableFilter struct {
	Generation int
	Department string
	Semester   int
}
