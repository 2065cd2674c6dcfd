package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Writer persists a table at a destination path.
type Writer interface {
	Write(ctx context.Context, t Table, path string) error
	// Ext is the file extension the writer produces, without a dot.
	Ext() string
}

// NewWriter returns the writer for a format name ("xlsx" or "csv").
func NewWriter(format string) (Writer, error) {
	switch format {
	case "", "xlsx":
		return XLSXWriter{}, nil
	case "csv":
		return CSVWriter{}, nil
	}
	return nil, errs.Configf("export-format", "unsupported format %q (want xlsx or csv)", format)
}

// XLSXWriter writes a single-sheet workbook with a bold, frozen header row.
type XLSXWriter struct{}

func (XLSXWriter) Ext() string { return "xlsx" }

func (XLSXWriter) Write(ctx context.Context, t Table, path string) error {
	if len(t.Rows) == 0 {
		return fmt.Errorf("XLSXWriter.Write: %s: %w", t.Name, errs.ErrEmptyExport)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("XLSXWriter.Write: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(t.Name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("XLSXWriter.Write: rename sheet: %w", err)
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("XLSXWriter.Write: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("XLSXWriter.Write: header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("XLSXWriter.Write: header style: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("XLSXWriter.Write: freeze header: %w", err)
	}

	for i, row := range t.Rows {
		cells := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			cells[j] = xlsxValue(row[c])
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("XLSXWriter.Write: row %d: %w", i, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("XLSXWriter.Write: create dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("XLSXWriter.Write: save %s: %w", path, err)
	}
	return nil
}

// sheetName fits a table name into Excel's 31-character sheet name limit.
func sheetName(name string) string {
	if name == "" {
		return "Sheet1"
	}
	if len(name) > 31 {
		return name[:31]
	}
	return name
}

// xlsxValue keeps numbers numeric so the sheet can be summed and sorted.
func xlsxValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return x.InexactFloat64()
	case time.Time:
		return formatTime(x)
	}
	return v
}

// CSVWriter writes RFC 4180 CSV with a header row.
type CSVWriter struct{}

func (CSVWriter) Ext() string { return "csv" }

func (CSVWriter) Write(ctx context.Context, t Table, path string) error {
	if len(t.Rows) == 0 {
		return fmt.Errorf("CSVWriter.Write: %s: %w", t.Name, errs.ErrEmptyExport)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("CSVWriter.Write: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("CSVWriter.Write: create dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("CSVWriter.Write: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("CSVWriter.Write: header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		for j, c := range t.Columns {
			record[j] = FormatCell(row[c])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("CSVWriter.Write: row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("CSVWriter.Write: flush: %w", err)
	}
	return f.Close()
}

// FormatCell renders a cell value as text. Decimals keep their exact
// representation and nil becomes an empty string.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return formatTime(x)
	}
	return fmt.Sprint(v)
}

// formatTime writes calendar dates without a clock component.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}
