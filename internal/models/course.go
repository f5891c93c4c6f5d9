package models

import "time"

// Course is a schedulable unit of teaching owned by the catalogue.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	FacultyID   *string   `db:"faculty_id" json:"faculty_id,omitempty"`
	ClassroomID *string   `db:"classroom_id" json:"classroom_id,omitempty"`
	Duration    int       `db:"duration" json:"duration"`
	Department  string    `db:"department" json:"department"`
	Year        int       `db:"year" json:"year"`
	Semester    int       `db:"semester" json:"semester"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Schedulable reports whether both faculty and classroom references are resolved.
func (c Course) Schedulable() bool {
	return c.FacultyID != nil && *c.FacultyID != "" && c.ClassroomID != nil && *c.ClassroomID != ""
}

// Hours returns the block length, treating non-positive durations as one hour.
func (c Course) Hours() int {
	if c.Duration < 1 {
		return 1
	}
	return c.Duration
}

// AssignedFaculty returns the faculty id or an empty string.
func (c Course) AssignedFaculty() string {
	if c.FacultyID == nil {
		return ""
	}
	return *c.FacultyID
}
