package fabricate

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/dvloznov/artifact-engine/internal/vocab"
	"github.com/shopspring/decimal"
)

// FabricateReceipt produces one till receipt from a uniformly chosen store
// category.
func (e *Engine) FabricateReceipt() (*record.Receipt, error) {
	rv := e.profile.Receipt

	id, err := e.newID()
	if err != nil {
		return nil, fmt.Errorf("FabricateReceipt: %w", err)
	}

	cat := pick(e.rng, rv.Categories)
	store := strings.ReplaceAll(pick(e.rng, cat.NameTemplates), "{adj}", pick(e.rng, cat.Adjectives))

	n := between(e.rng, rv.Items)
	items := make([]record.ReceiptItem, 0, n)
	lines := make([]record.LineEntry, 0, n)
	for i := 0; i < n; i++ {
		line := e.receiptLine(cat)
		items = append(items, record.ReceiptItem{LineEntry: line, Category: cat.Name})
		lines = append(lines, line)
	}

	method := pick(e.rng, rv.PaymentMethods)
	var suffix *string
	if method.Card {
		s := bothify(e.rng, "####")
		suffix = &s
	}

	rct, err := record.NewReceipt(record.ReceiptParams{
		ID:            id,
		ReceiptNumber: bothify(e.rng, rv.NumberPattern),
		TransactionID: bothify(e.rng, rv.TransactionPattern),
		Timestamp:     e.receiptTime(),
		StoreName:     store,
		StoreAddress:  e.address(),
		StorePhone:    e.phone(),
		StoreCategory: cat.Name,
		Items:         items,
		Totals:        record.ComputeTotals(lines, rv.TaxRate.Decimal),
		PaymentMethod: record.PaymentMethod{Name: method.Name, Card: method.Card},
		CardLastFour:  suffix,
		Currency:      e.profile.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("FabricateReceipt: %w", err)
	}
	return rct, nil
}

// receiptLine draws one line bound to cat. Fuel lines take a metered volume
// at the pump price; shelf lines take a weighted whole quantity.
func (e *Engine) receiptLine(cat vocab.StoreCategory) record.LineEntry {
	var desc string
	var qty, price decimal.Decimal

	if f := cat.Fuel; f != nil && chance(e.rng, f.Share) {
		desc = pick(e.rng, f.Descriptions)
		qty = uniform(e.rng, f.Volume, 2)
		price = uniform(e.rng, f.UnitPrice, precision(f.UnitPrice))
	} else {
		it := pick(e.rng, cat.Items)
		desc = it.Description
		qty = decimal.NewFromInt(int64(1 + weighted(e.rng, e.profile.Receipt.QuantityWeights)))
		price = uniform(e.rng, it.Price, 2)
	}
	return record.LineEntry{
		Description: desc,
		Quantity:    qty,
		UnitPrice:   price,
		Total:       record.LineTotal(qty, price),
	}
}

// receiptTime draws a moment inside business hours on one of the
// LookbackDays+1 most recent trading days, never later than now. The most
// recent trading day is today once opening time has passed, else yesterday.
func (e *Engine) receiptTime() time.Time {
	rv := e.profile.Receipt
	now := e.now().UTC()
	open := time.Duration(rv.BusinessHours.Min) * time.Hour
	window := time.Duration(rv.BusinessHours.Max-rv.BusinessHours.Min) * time.Hour

	latest := e.today()
	if now.Before(latest.Add(open)) {
		latest = latest.AddDate(0, 0, -1)
	}
	day := latest.AddDate(0, 0, -e.rng.IntN(rv.LookbackDays+1))
	if elapsed := now.Sub(day.Add(open)); elapsed < window {
		window = elapsed
	}
	secs := int64(window / time.Second)
	if secs <= 0 {
		return day.Add(open)
	}
	return day.Add(open + time.Duration(e.rng.Int64N(secs))*time.Second)
}
