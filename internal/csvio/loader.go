// Package csvio reads scheduling inputs from CSV files for offline runs.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gocarina/gocsv"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// Default file names inside an input directory.
const (
	CoursesFile    = "courses.csv"
	FacultyFile    = "faculty.csv"
	ClassroomsFile = "classrooms.csv"
)

type courseRow struct {
	ID          string `csv:"id" validate:"required"`
	Name        string `csv:"name" validate:"required"`
	FacultyID   string `csv:"faculty_id"`
	ClassroomID string `csv:"classroom_id"`
	Duration    int    `csv:"duration" validate:"min=1,max=8"`
	Department  string `csv:"department" validate:"required"`
	Year        int    `csv:"year" validate:"min=0"`
	Semester    int    `csv:"semester" validate:"min=1,max=12"`
}

type facultyRow struct {
	ID           string `csv:"id" validate:"required"`
	Name         string `csv:"name" validate:"required"`
	Availability string `csv:"availability"`
	MaxLoad      int    `csv:"max_load" validate:"min=0"`
	Department   string `csv:"department"`
}

type classroomRow struct {
	ID       string `csv:"id" validate:"required"`
	Name     string `csv:"name" validate:"required"`
	Capacity int    `csv:"capacity" validate:"min=0"`
	Type     string `csv:"type" validate:"omitempty,oneof=smart-classroom lab seminar"`
}

// Loader parses input CSVs with a configurable delimiter.
type Loader struct {
	comma    rune
	validate *validator.Validate
}

// NewLoader returns a loader. A zero comma means ','.
func NewLoader(comma rune) *Loader {
	if comma == 0 {
		comma = ','
	}
	return &Loader{comma: comma, validate: validator.New()}
}

// Courses reads course rows in file order, which is the scheduling order.
// Rows without a faculty or classroom are kept and filtered by Schedulable.
func (l *Loader) Courses(r io.Reader) ([]models.Course, error) {
	var rows []courseRow
	if err := l.decode(r, &rows); err != nil {
		return nil, fmt.Errorf("courses: %w", err)
	}
	courses := make([]models.Course, 0, len(rows))
	for i, row := range rows {
		if err := l.validate.Struct(row); err != nil {
			return nil, fmt.Errorf("courses line %d: %w", i+2, err)
		}
		courses = append(courses, models.Course{
			ID:          row.ID,
			Name:        row.Name,
			FacultyID:   optional(row.FacultyID),
			ClassroomID: optional(row.ClassroomID),
			Duration:    row.Duration,
			Department:  row.Department,
			Year:        row.Year,
			Semester:    row.Semester,
		})
	}
	return courses, nil
}

// Faculty reads faculty rows.
func (l *Loader) Faculty(r io.Reader) ([]models.Faculty, error) {
	var rows []facultyRow
	if err := l.decode(r, &rows); err != nil {
		return nil, fmt.Errorf("faculty: %w", err)
	}
	faculty := make([]models.Faculty, 0, len(rows))
	for i, row := range rows {
		if err := l.validate.Struct(row); err != nil {
			return nil, fmt.Errorf("faculty line %d: %w", i+2, err)
		}
		faculty = append(faculty, models.Faculty(row))
	}
	return faculty, nil
}

// Classrooms reads classroom rows.
func (l *Loader) Classrooms(r io.Reader) ([]models.Classroom, error) {
	var rows []classroomRow
	if err := l.decode(r, &rows); err != nil {
		return nil, fmt.Errorf("classrooms: %w", err)
	}
	classrooms := make([]models.Classroom, 0, len(rows))
	for i, row := range rows {
		if err := l.validate.Struct(row); err != nil {
			return nil, fmt.Errorf("classrooms line %d: %w", i+2, err)
		}
		classrooms = append(classrooms, models.Classroom{
			ID:       row.ID,
			Name:     row.Name,
			Capacity: row.Capacity,
			Type:     models.ClassroomType(row.Type),
		})
	}
	return classrooms, nil
}

// LoadDir reads the three input files from dir and returns engine input with
// unschedulable courses removed.
func (l *Loader) LoadDir(dir string, hours []int) (scheduler.Input, error) {
	var in scheduler.Input

	courses, err := readFile(filepath.Join(dir, CoursesFile), l.Courses)
	if err != nil {
		return in, err
	}
	for _, course := range courses {
		if course.Schedulable() {
			in.Courses = append(in.Courses, course)
		}
	}
	if in.Faculty, err = readFile(filepath.Join(dir, FacultyFile), l.Faculty); err != nil {
		return in, err
	}
	if in.Classrooms, err = readFile(filepath.Join(dir, ClassroomsFile), l.Classrooms); err != nil {
		return in, err
	}
	in.Hours = hours
	return in, nil
}

func (l *Loader) decode(r io.Reader, out interface{}) error {
	reader := csv.NewReader(r)
	reader.Comma = l.comma
	reader.TrimLeadingSpace = true
	if err := gocsv.UnmarshalCSV(reader, out); err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return err
	}
	return nil
}

func readFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
