package export

import (
	"fmt"

	"github.com/gocarina/gocsv"
)

// CSVExporter renders timetable rows into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes with a header line. An empty listing
// still yields the header.
func (e *CSVExporter) Render(rows []Row) ([]byte, error) {
	if rows == nil {
		rows = []Row{}
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return out, nil
}
