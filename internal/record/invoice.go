package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the ground truth for one synthetic invoice.
type Invoice struct {
	Header

	InvoiceNumber string
	Date          time.Time
	DueDate       time.Time

	SenderName       string
	SenderAddress    string
	RecipientName    string
	RecipientAddress string

	LineItems []LineEntry

	Subtotal  decimal.Decimal
	TaxRate   decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
	Currency  string
}

// InvoiceParams carries everything NewInvoice needs.
type InvoiceParams struct {
	ID               string
	InvoiceNumber    string
	Date             time.Time
	DueDate          time.Time
	SenderName       string
	SenderAddress    string
	RecipientName    string
	RecipientAddress string
	LineItems        []LineEntry
	Totals           Totals
	Currency         string
}

// Kind implements Record.
func (*Invoice) Kind() Kind { return KindInvoice }

// NewInvoice validates p and builds an Invoice.
func NewInvoice(p InvoiceParams) (*Invoice, error) {
	if p.ID == "" {
		return nil, invalid(KindInvoice, p.ID, "id", "empty identifier")
	}
	if p.InvoiceNumber == "" {
		return nil, invalid(KindInvoice, p.ID, "invoice_number", "empty invoice number")
	}
	if p.DueDate.Before(p.Date) {
		return nil, invalidf(KindInvoice, p.ID, "due_date", "%s is before issue date %s",
			p.DueDate.Format(time.DateOnly), p.Date.Format(time.DateOnly))
	}
	if p.Currency == "" {
		return nil, invalid(KindInvoice, p.ID, "currency", "empty currency")
	}
	if err := validateLines(KindInvoice, p.ID, p.LineItems, p.Totals); err != nil {
		return nil, err
	}

	lines := make([]LineEntry, len(p.LineItems))
	copy(lines, p.LineItems)

	return &Invoice{
		Header:           Header{ID: p.ID},
		InvoiceNumber:    p.InvoiceNumber,
		Date:             p.Date,
		DueDate:          p.DueDate,
		SenderName:       p.SenderName,
		SenderAddress:    p.SenderAddress,
		RecipientName:    p.RecipientName,
		RecipientAddress: p.RecipientAddress,
		LineItems:        lines,
		Subtotal:         p.Totals.Subtotal,
		TaxRate:          p.Totals.TaxRate,
		TaxAmount:        p.Totals.TaxAmount,
		Total:            p.Totals.Total,
		Currency:         p.Currency,
	}, nil
}
