package fabricate

import (
	"fmt"

	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/shopspring/decimal"
)

// FabricateInvoice produces one invoice dated within the lookback window.
func (e *Engine) FabricateInvoice() (*record.Invoice, error) {
	iv := e.profile.Invoice

	id, err := e.newID()
	if err != nil {
		return nil, fmt.Errorf("FabricateInvoice: %w", err)
	}

	issued := e.today().AddDate(0, 0, -e.rng.IntN(iv.LookbackDays+1))
	due := issued.AddDate(0, 0, pick(e.rng, iv.DueOffsetsDays))

	n := between(e.rng, iv.LineItems)
	lines := make([]record.LineEntry, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, e.invoiceLine(issued.Month().String()))
	}

	rate := pick(e.rng, iv.TaxRates).Decimal
	inv, err := record.NewInvoice(record.InvoiceParams{
		ID:               id,
		InvoiceNumber:    bothify(e.rng, iv.NumberPattern),
		Date:             issued,
		DueDate:          due,
		SenderName:       e.companyName(),
		SenderAddress:    e.address(),
		RecipientName:    e.personName(),
		RecipientAddress: e.address(),
		LineItems:        lines,
		Totals:           record.ComputeTotals(lines, rate),
		Currency:         e.profile.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("FabricateInvoice: %w", err)
	}
	return inv, nil
}

// invoiceLine draws either a billed service (whole units, monthly label) or
// a product (fractional quantity to one decimal).
func (e *Engine) invoiceLine(month string) record.LineEntry {
	iv := e.profile.Invoice

	var desc string
	var qty, price decimal.Decimal
	if chance(e.rng, iv.ServiceShare) {
		desc = pick(e.rng, iv.Services) + " - " + month
		qty = decimal.NewFromInt(int64(between(e.rng, iv.ServiceQuantity)))
		price = uniform(e.rng, iv.ServicePrice, 2)
	} else {
		desc = pick(e.rng, iv.Products)
		qty = uniform(e.rng, iv.ProductQuantity, 1)
		price = uniform(e.rng, iv.ProductPrice, 2)
	}
	return record.LineEntry{
		Description: desc,
		Quantity:    qty,
		UnitPrice:   price,
		Total:       record.LineTotal(qty, price),
	}
}
