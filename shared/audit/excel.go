package audit

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// ExcelizeWriter implements ExcelWriter on an in-memory excelize workbook.
type ExcelizeWriter struct {
	file    *excelize.File
	sheet   string
	row     int
	bold    int
	columns int
}

func NewExcelizeWriter() ExcelWriter {
	return &ExcelizeWriter{file: excelize.NewFile()}
}

// AddSheet starts a new sheet. The workbook's default sheet is reused for the first one.
func (w *ExcelizeWriter) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.sheet == "" {
		if err := w.file.SetSheetName(w.file.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename default sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.row = 1
	w.columns = 0
	return nil
}

// WriteHeader writes a bold, frozen header row.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	if w.bold == 0 {
		style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		w.bold = style
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := w.setRow(header); err != nil {
		return err
	}

	first, _ := excelize.CoordinatesToCellName(1, w.row)
	last, _ := excelize.CoordinatesToCellName(len(columns), w.row)
	if err := w.file.SetCellStyle(w.sheet, first, last, w.bold); err != nil {
		return err
	}
	if err := w.file.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	w.columns = len(columns)
	w.row++
	return nil
}

// WriteRow appends one data row. SQLite text columns arrive as []byte and are written as strings.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = cellValue(v)
	}
	if err := w.setRow(values); err != nil {
		return err
	}
	w.row++
	return nil
}

func (w *ExcelizeWriter) setRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.file.SetSheetRow(w.sheet, cell, &values)
}

func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	}
	return v
}

func (w *ExcelizeWriter) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
