// Package export renders records and reports as xlsx workbooks.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/healthlog/healthlog/internal/models"
	"github.com/healthlog/healthlog/internal/record"
	"github.com/healthlog/healthlog/internal/report"
)

// Records writes one row per daily record. Columns are the date followed by
// the given field definitions in catalog order; fields a record never stored
// stay blank.
func Records(records []record.FlatRecord, fields []models.FieldDefinition) ([]byte, error) {
	f := excelize.NewFile()

	const sheet = "Records"
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := make([]string, 0, len(fields)+1)
	headers = append(headers, "Date")
	for _, fd := range fields {
		h := fd.Name
		if fd.Unit != "" {
			h = fmt.Sprintf("%s (%s)", fd.Name, fd.Unit)
		}
		headers = append(headers, h)
	}
	if err := writeHeader(f, sheet, headers); err != nil {
		f.Close()
		return nil, err
	}

	for rowIdx, rec := range records {
		row := rowIdx + 2
		if err := setCell(f, sheet, 1, row, rec.RecordDate); err != nil {
			f.Close()
			return nil, err
		}
		for col, fd := range fields {
			value, ok := rec.FieldValues[fd.Name]
			if !ok {
				continue
			}
			if err := setCell(f, sheet, col+2, row, value); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	return finish(f, sheet)
}

// NumberReport writes the trend series of a numeric field followed by a
// statistics block.
func NumberReport(fieldName string, rep *report.NumberReport) ([]byte, error) {
	f := excelize.NewFile()

	const sheet = "Report"
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := writeHeader(f, sheet, []string{"Date", fieldName}); err != nil {
		f.Close()
		return nil, err
	}
	row := 2
	for _, point := range rep.Trend {
		if err := setCell(f, sheet, 1, row, point.Date); err != nil {
			f.Close()
			return nil, err
		}
		if err := setCell(f, sheet, 2, row, point.Value); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}

	row++ // blank separator row
	stats := []struct {
		label string
		value interface{}
	}{
		{"Count", rep.Statistics.Count},
		{"Average", floatCell(rep.Statistics.Average)},
		{"Max", floatCell(rep.Statistics.Max)},
		{"Min", floatCell(rep.Statistics.Min)},
		{"Sum", floatCell(rep.Statistics.Sum)},
		{"Standard Deviation", floatCell(rep.Statistics.StandardDeviation)},
		{"Median", floatCell(rep.Statistics.Median)},
	}
	for _, stat := range stats {
		if err := setCell(f, sheet, 1, row, stat.label); err != nil {
			f.Close()
			return nil, err
		}
		if stat.value != nil {
			if err := setCell(f, sheet, 2, row, stat.value); err != nil {
				f.Close()
				return nil, err
			}
		}
		row++
	}

	return finish(f, sheet)
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, 18); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// finish freezes the header row and serializes the workbook. The file must
// stay open until WriteTo returns.
func finish(f *excelize.File, sheet string) ([]byte, error) {
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
