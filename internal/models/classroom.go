package models

// ClassroomType enumerates room categories.
type ClassroomType string

const (
	ClassroomTypeSmart   ClassroomType = "smart-classroom"
	ClassroomTypeLab     ClassroomType = "lab"
	ClassroomTypeSeminar ClassroomType = "seminar"
)

// Classroom is a bookable room. Capacity and type are informational.
type Classroom struct {
	ID       string        `db:"id" json:"id"`
	Name     string        `db:"name" json:"name"`
	Capacity int           `db:"capacity" json:"capacity"`
	Type     ClassroomType `db:"type" json:"type"`
}
