package dto

import (
	"time"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// ExportFormat selects the rendering of a timetable export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// TimetableQuery narrows timetable listings. Generation zero means latest.
type TimetableQuery struct {
	Generation int    `form:"generation" json:"generation" validate:"omitempty,min=1"`
	Department string `form:"department" json:"department" validate:"omitempty,max=50"`
	Semester   int    `form:"semester" json:"semester" validate:"omitempty,min=1,max=12"`
}

// ExportQuery extends the listing filter with an output format.
type ExportQuery struct {
	TimetableQuery
	Format ExportFormat `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
}

// GenerateTimetableResponse summarises one generator run.
type GenerateTimetableResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Generation int                 `json:"generation"`
	Placed     int                 `json:"placed"`
	Dropped    int                 `json:"dropped"`
	Moved      int                 `json:"moved"`
	Outcomes   []scheduler.Outcome `json:"outcomes"`
	Duration   string              `json:"duration"`
}

// EnqueueTimetableResponse acknowledges an asynchronous generator run.
type EnqueueTimetableResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// TimetableListResponse carries entries of one generation.
type TimetableListResponse struct {
	Generation int                     `json:"generation"`
	Entries    []models.TimetableEntry `json:"entries"`
}

// TimetableGroup holds the entries of one department and semester.
type TimetableGroup struct {
	Department string                  `json:"department"`
	Semester   int                     `json:"semester"`
	Entries    []models.TimetableEntry `json:"entries"`
}

// TimetableGroupsResponse lists entries grouped by cohort.
type TimetableGroupsResponse struct {
	Generation int              `json:"generation"`
	Groups     []TimetableGroup `json:"groups"`
}

// ConflictReport lists double bookings found in a generation.
type ConflictReport struct {
	Generation int                  `json:"generation"`
	Clean      bool                 `json:"clean"`
	Conflicts  []scheduler.Conflict `json:"conflicts"`
}

// ClearTimetableResponse reports how many entries were removed.
type ClearTimetableResponse struct {
	Deleted int64 `json:"deleted"`
}

// GenerationSummary is one row of the generation history.
type GenerationSummary struct {
	ID           int            `json:"id"`
	PlacedCount  int            `json:"placedCount"`
	DroppedCount int            `json:"droppedCount"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
