// Package record defines the ground-truth data model for fabricated
// invoices, receipts and bank statements.
//
// Records are built whole by their constructors, which validate every
// arithmetic and ordering invariant. After construction the only permitted
// mutation is a single template stamp, made through a Stamper held by the
// render collaborator.
package record

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/shopspring/decimal"
)

// Kind identifies a document kind.
type Kind string

const (
	KindInvoice   Kind = "invoice"
	KindReceipt   Kind = "receipt"
	KindStatement Kind = "statement"
)

// Kinds lists every supported kind in pipeline order.
var Kinds = []Kind{KindInvoice, KindReceipt, KindStatement}

// Plural returns the prefix used for output directories and files.
func (k Kind) Plural() string {
	return string(k) + "s"
}

// ParseKind maps a name to a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ErrTemplateAlreadyStamped is returned when a record is stamped twice.
var ErrTemplateAlreadyStamped = errors.New("template already stamped")

// Record is implemented by every fabricated document. It is read-only and
// sealed: only the record types in this package satisfy it.
type Record interface {
	RecordID() string
	Kind() Kind
	TemplateUsed() string
	header() *Header
}

// Header carries the fields common to all records.
type Header struct {
	ID           string
	templateUsed string
}

// RecordID returns the globally unique identifier.
func (h *Header) RecordID() string { return h.ID }

// TemplateUsed is empty until the record has been rendered.
func (h *Header) TemplateUsed() string { return h.templateUsed }

func (h *Header) header() *Header { return h }

// Stamper is the capability to record which template rendered a document.
// The renderer owns one; records expose no setter of their own.
type Stamper struct {
	issued bool
}

// NewStamper issues a stamping capability.
func NewStamper() *Stamper {
	return &Stamper{issued: true}
}

// Stamp sets rec's TemplateUsed. Each record can be stamped once.
func (s *Stamper) Stamp(rec Record, name string) error {
	if s == nil || !s.issued {
		return errors.New("Stamp: stamper not issued by NewStamper")
	}
	if name == "" {
		return errors.New("Stamp: empty template name")
	}
	h := rec.header()
	if h.templateUsed != "" {
		return ErrTemplateAlreadyStamped
	}
	h.templateUsed = name
	return nil
}

// LineEntry is one priced line on an invoice or receipt.
type LineEntry struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal computes round(quantity * unit price, 2).
func LineTotal(qty, price decimal.Decimal) decimal.Decimal {
	return Round2(qty.Mul(price))
}

// Totals holds the aggregation chain shared by invoices and receipts.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxRate   decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals rounds at every aggregation step: subtotal, then tax, then
// grand total.
func ComputeTotals(lines []LineEntry, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total)
	}
	subtotal = Round2(subtotal)
	tax := Round2(subtotal.Mul(taxRate))
	return Totals{
		Subtotal:  subtotal,
		TaxRate:   taxRate,
		TaxAmount: tax,
		Total:     Round2(subtotal.Add(tax)),
	}
}

// validateLines checks each line total and the aggregation chain.
func validateLines(kind Kind, id string, lines []LineEntry, t Totals) error {
	if len(lines) == 0 {
		return invalid(kind, id, "line_items", "at least one line is required")
	}
	for i, l := range lines {
		if l.Description == "" {
			return invalidf(kind, id, "line_items", "line %d has an empty description", i)
		}
		if !l.Quantity.IsPositive() {
			return invalidf(kind, id, "line_items", "line %d quantity %s is not positive", i, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return invalidf(kind, id, "line_items", "line %d unit price %s is negative", i, l.UnitPrice)
		}
		if want := LineTotal(l.Quantity, l.UnitPrice); !l.Total.Equal(want) {
			return invalidf(kind, id, "line_items", "line %d total %s, want %s", i, l.Total, want)
		}
	}
	want := ComputeTotals(lines, t.TaxRate)
	switch {
	case !t.Subtotal.Equal(want.Subtotal):
		return invalidf(kind, id, "subtotal", "%s, want %s", t.Subtotal, want.Subtotal)
	case !t.TaxAmount.Equal(want.TaxAmount):
		return invalidf(kind, id, "tax_amount", "%s, want %s", t.TaxAmount, want.TaxAmount)
	case !t.Total.Equal(want.Total):
		return invalidf(kind, id, "total", "%s, want %s", t.Total, want.Total)
	}
	return nil
}

func invalid(kind Kind, id, field, reason string) error {
	return &errs.ValidationError{Kind: string(kind), ID: id, Field: field, Reason: reason}
}

func invalidf(kind Kind, id, field, format string, args ...any) error {
	return invalid(kind, id, field, fmt.Sprintf(format, args...))
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
