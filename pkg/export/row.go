package export

import (
	"fmt"

	"github.com/noah-isme/timetable-api/internal/models"
)

// Row is the flat shape of one timetable entry in exported documents.
type Row struct {
	Generation  int    `csv:"generation"`
	Day         string `csv:"day"`
	Start       string `csv:"start"`
	End         string `csv:"end"`
	CourseID    string `csv:"course_id"`
	FacultyID   string `csv:"faculty_id"`
	ClassroomID string `csv:"classroom_id"`
	Department  string `csv:"department"`
	Semester    int    `csv:"semester"`
}

var columns = []string{"Day", "Start", "End", "Course", "Faculty", "Classroom", "Department", "Semester"}

// RowsFromEntries flattens entries, preserving their order.
func RowsFromEntries(entries []models.TimetableEntry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Row{
			Generation:  e.Generation,
			Day:         e.Day,
			Start:       clock(e.StartHour),
			End:         clock(e.EndHour),
			CourseID:    e.CourseID,
			FacultyID:   e.FacultyID,
			ClassroomID: e.ClassroomID,
			Department:  e.Department,
			Semester:    e.Semester,
		})
	}
	return rows
}

func (r Row) cells() []string {
	return []string{r.Day, r.Start, r.End, r.CourseID, r.FacultyID, r.ClassroomID, r.Department, fmt.Sprintf("%d", r.Semester)}
}

func clock(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
