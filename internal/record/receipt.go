package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a receipt was settled.
type PaymentMethod struct {
	Name string
	Card bool
}

// IsCard reports whether the method carries a masked card suffix.
func (p PaymentMethod) IsCard() bool { return p.Card }

// ReceiptItem is a line on a receipt.
type ReceiptItem struct {
	LineEntry
	Category string
}

// Receipt is the ground truth for one synthetic till receipt.
type Receipt struct {
	Header

	ReceiptNumber string
	TransactionID string
	Timestamp     time.Time

	StoreName     string
	StoreAddress  string
	StorePhone    string
	StoreCategory string

	Items []ReceiptItem

	Subtotal  decimal.Decimal
	TaxRate   decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal

	PaymentMethod PaymentMethod
	// CardLastFour is set iff PaymentMethod.IsCard().
	CardLastFour *string
	Currency     string
}

// ReceiptParams carries everything NewReceipt needs.
type ReceiptParams struct {
	ID            string
	ReceiptNumber string
	TransactionID string
	Timestamp     time.Time
	StoreName     string
	StoreAddress  string
	StorePhone    string
	StoreCategory string
	Items         []ReceiptItem
	Totals        Totals
	PaymentMethod PaymentMethod
	CardLastFour  *string
	Currency      string
}

// Kind implements Record.
func (*Receipt) Kind() Kind { return KindReceipt }

// Lines returns the priced lines without category information.
func (r *Receipt) Lines() []LineEntry {
	lines := make([]LineEntry, len(r.Items))
	for i, it := range r.Items {
		lines[i] = it.LineEntry
	}
	return lines
}

// NewReceipt validates p and builds a Receipt.
func NewReceipt(p ReceiptParams) (*Receipt, error) {
	if p.ID == "" {
		return nil, invalid(KindReceipt, p.ID, "id", "empty identifier")
	}
	if p.StoreCategory == "" || p.StoreName == "" {
		return nil, invalid(KindReceipt, p.ID, "store", "store name and category are required")
	}
	if p.PaymentMethod.Name == "" {
		return nil, invalid(KindReceipt, p.ID, "payment_method", "empty payment method")
	}
	if p.PaymentMethod.IsCard() != (p.CardLastFour != nil) {
		return nil, invalidf(KindReceipt, p.ID, "card_last_four",
			"presence must match card payment (method %q, card=%t, suffix present=%t)",
			p.PaymentMethod.Name, p.PaymentMethod.IsCard(), p.CardLastFour != nil)
	}
	if p.CardLastFour != nil && !isFourDigits(*p.CardLastFour) {
		return nil, invalidf(KindReceipt, p.ID, "card_last_four", "%q is not four digits", *p.CardLastFour)
	}
	for i, it := range p.Items {
		if it.Category != p.StoreCategory {
			return nil, invalidf(KindReceipt, p.ID, "items", "item %d category %q differs from store category %q",
				i, it.Category, p.StoreCategory)
		}
	}

	lines := make([]LineEntry, len(p.Items))
	for i, it := range p.Items {
		lines[i] = it.LineEntry
	}
	if err := validateLines(KindReceipt, p.ID, lines, p.Totals); err != nil {
		return nil, err
	}

	items := make([]ReceiptItem, len(p.Items))
	copy(items, p.Items)

	var suffix *string
	if p.CardLastFour != nil {
		s := *p.CardLastFour
		suffix = &s
	}

	return &Receipt{
		Header:        Header{ID: p.ID},
		ReceiptNumber: p.ReceiptNumber,
		TransactionID: p.TransactionID,
		Timestamp:     p.Timestamp,
		StoreName:     p.StoreName,
		StoreAddress:  p.StoreAddress,
		StorePhone:    p.StorePhone,
		StoreCategory: p.StoreCategory,
		Items:         items,
		Subtotal:      p.Totals.Subtotal,
		TaxRate:       p.Totals.TaxRate,
		TaxAmount:     p.Totals.TaxAmount,
		Total:         p.Totals.Total,
		PaymentMethod: p.PaymentMethod,
		CardLastFour:  suffix,
		Currency:      p.Currency,
	}, nil
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
