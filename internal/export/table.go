// Package export flattens records into tabular ground-truth views and
// writes them as spreadsheets.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/dvloznov/artifact-engine/internal/record"
)

// Row maps a column name to a scalar: string, int, decimal.Decimal,
// time.Time, or nil for an empty cell.
type Row map[string]any

// Table is an ordered set of rows with a fixed column order.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Aggregator builds the two views of a record collection.
type Aggregator struct {
	// ImageExt is the extension used to predict image_filename when Images
	// is nil.
	ImageExt string
	// Images maps a record ID to the degraded image files written for it.
	Images map[string][]string
}

// Denormalized returns one row per line item, receipt item or statement
// transaction, with every parent field repeated. Uses png file names.
func Denormalized(records []record.Record) (Table, error) {
	return Aggregator{ImageExt: "png"}.Denormalized(records)
}

// Summary returns exactly one row per record. Uses png file names.
func Summary(records []record.Record) (Table, error) {
	return Aggregator{ImageExt: "png"}.Summary(records)
}

// Denormalized returns one row per line item, receipt item or statement
// transaction, with every parent field repeated. A statement with no
// transactions still contributes one row with empty transaction cells.
func (a Aggregator) Denormalized(records []record.Record) (Table, error) {
	kind, err := collectionKind(records)
	if err != nil {
		return Table{}, fmt.Errorf("Denormalized: %w", err)
	}
	t := Table{Name: kind.Plural() + "_ground_truth", Columns: denormalizedColumns[kind]}
	for _, r := range records {
		switch rec := r.(type) {
		case *record.Invoice:
			t.Rows = append(t.Rows, a.invoiceRows(rec)...)
		case *record.Receipt:
			t.Rows = append(t.Rows, a.receiptRows(rec)...)
		case *record.Statement:
			t.Rows = append(t.Rows, a.statementRows(rec)...)
		}
	}
	return t, nil
}

// Summary returns exactly one row per record.
func (a Aggregator) Summary(records []record.Record) (Table, error) {
	kind, err := collectionKind(records)
	if err != nil {
		return Table{}, fmt.Errorf("Summary: %w", err)
	}
	t := Table{Name: kind.Plural() + "_summary", Columns: summaryColumns[kind]}
	for _, r := range records {
		switch rec := r.(type) {
		case *record.Invoice:
			t.Rows = append(t.Rows, invoiceSummary(rec))
		case *record.Receipt:
			t.Rows = append(t.Rows, receiptSummary(rec))
		case *record.Statement:
			t.Rows = append(t.Rows, statementSummary(rec))
		}
	}
	return t, nil
}

// collectionKind refuses empty and mixed collections.
func collectionKind(records []record.Record) (record.Kind, error) {
	if len(records) == 0 {
		return "", errs.ErrEmptyExport
	}
	kind := records[0].Kind()
	for _, r := range records[1:] {
		if r.Kind() != kind {
			return "", fmt.Errorf("mixed record kinds %s and %s in one export", kind, r.Kind())
		}
	}
	if _, ok := denormalizedColumns[kind]; !ok {
		return "", fmt.Errorf("no export layout for kind %q", kind)
	}
	return kind, nil
}

// imageFilename names the image files of a record, joined by ";" for
// multi-page documents. Without an image index it predicts the single-page
// name <id>.<ext>. With one, a record that produced no image gets "".
func (a Aggregator) imageFilename(id string) string {
	if a.Images == nil {
		ext := a.ImageExt
		if ext == "" {
			ext = "png"
		}
		return id + "." + ext
	}
	paths := a.Images[id]
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ";")
}
