package audit

import (
	"context"
	"fmt"
	"time"
)

// TableExporter reads audit tables for a creation-time window.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	// GetTableData returns rows created within [from, to) as column maps.
	GetTableData(ctx context.Context, tableName string, from, to time.Time) ([]map[string]interface{}, []string, error)
}

// ExcelWriter builds a workbook sheet by sheet.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	SaveToFile(path string) error
	Close() error
}

// MonthNames in Indonesian for report filenames.
var MonthNames = map[time.Month]string{
	time.January:   "Januari",
	time.February:  "Februari",
	time.March:     "Maret",
	time.April:     "April",
	time.May:       "Mei",
	time.June:      "Juni",
	time.July:      "Juli",
	time.August:    "Agustus",
	time.September: "September",
	time.October:   "Oktober",
	time.November:  "November",
	time.December:  "Desember",
}

// GenerateFilename creates a filename like "Januari_2025.xlsx".
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("%s_%d.xlsx", MonthNames[t.Month()], t.Year())
}

// MonthBounds returns [first of t's month, first of next month) in t's location.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
