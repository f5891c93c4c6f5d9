package models

// Faculty is a lecturer with a free-form weekly availability.
type Faculty struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Availability string `db:"availability" json:"availability"`
	MaxLoad      int    `db:"max_load" json:"max_load"`
	Department   string `db:"department" json:"department"`
}
