package vocab

import (
	"strings"

	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/shopspring/decimal"
)

// Validate fails fast on the first empty vocabulary or blank entry, inverted
// range or non-positive weight. Every error wraps errs.ErrConfiguration.
func (p *Profile) Validate() error {
	if p.Region == "" {
		return bad("region", "empty region code")
	}
	if p.Currency == "" {
		return bad("currency", "empty currency code")
	}

	words := []struct {
		field string
		list  []string
	}{
		{"people.first_names", p.People.FirstNames},
		{"people.last_names", p.People.LastNames},
		{"companies.words", p.Companies.Words},
		{"companies.suffixes", p.Companies.Suffixes},
		{"addresses.streets", p.Addresses.Streets},
		{"addresses.towns", p.Addresses.Towns},
		{"addresses.postcode_areas", p.Addresses.PostcodeAreas},
		{"invoice.services", p.Invoice.Services},
		{"invoice.products", p.Invoice.Products},
	}
	for _, w := range words {
		if err := vocabulary(w.field, w.list); err != nil {
			return err
		}
	}

	lists := []struct {
		field string
		n     int
	}{
		{"invoice.tax_rates", len(p.Invoice.TaxRates)},
		{"invoice.due_offsets_days", len(p.Invoice.DueOffsetsDays)},
		{"receipt.quantity_weights", len(p.Receipt.QuantityWeights)},
		{"receipt.payment_methods", len(p.Receipt.PaymentMethods)},
		{"receipt.categories", len(p.Receipt.Categories)},
		{"statement.banks", len(p.Statement.Banks)},
		{"statement.categories", len(p.Statement.Categories)},
	}
	for _, l := range lists {
		if l.n == 0 {
			return bad(l.field, "list is empty")
		}
	}

	if err := p.validateInvoice(); err != nil {
		return err
	}
	if err := p.validateReceipt(); err != nil {
		return err
	}
	return p.validateStatement()
}

func (p *Profile) validateInvoice() error {
	iv := p.Invoice
	if iv.NumberPattern == "" {
		return bad("invoice.number_pattern", "empty pattern")
	}
	for _, r := range iv.TaxRates {
		if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return badf("invoice.tax_rates", "rate %s outside [0, 1)", r)
		}
	}
	for _, d := range iv.DueOffsetsDays {
		if d < 0 {
			return badf("invoice.due_offsets_days", "negative offset %d", d)
		}
	}
	if iv.LookbackDays < 0 {
		return bad("invoice.lookback_days", "negative")
	}
	if err := intRange("invoice.line_items", iv.LineItems, 1); err != nil {
		return err
	}
	if err := probability("invoice.service_share", iv.ServiceShare); err != nil {
		return err
	}
	if err := intRange("invoice.service_quantity", iv.ServiceQuantity, 1); err != nil {
		return err
	}
	if err := decRange("invoice.service_price", iv.ServicePrice, false); err != nil {
		return err
	}
	if err := decRange("invoice.product_quantity", iv.ProductQuantity, true); err != nil {
		return err
	}
	return decRange("invoice.product_price", iv.ProductPrice, false)
}

func (p *Profile) validateReceipt() error {
	rv := p.Receipt
	if rv.NumberPattern == "" || rv.TransactionPattern == "" {
		return bad("receipt.number_pattern", "number and transaction patterns are required")
	}
	if err := probability("receipt.tax_rate", rv.TaxRate); err != nil {
		return err
	}
	if rv.LookbackDays < 0 {
		return bad("receipt.lookback_days", "negative")
	}
	bh := rv.BusinessHours
	if bh.Min < 0 || bh.Max > 24 || bh.Min >= bh.Max {
		return badf("receipt.business_hours", "window %d..%d is not inside a day", bh.Min, bh.Max)
	}
	if err := intRange("receipt.items", rv.Items, 1); err != nil {
		return err
	}
	for i, w := range rv.QuantityWeights {
		if w <= 0 {
			return badf("receipt.quantity_weights", "weight %d for quantity %d is not positive", w, i+1)
		}
	}

	hasCard := false
	for _, m := range rv.PaymentMethods {
		if m.Name == "" {
			return bad("receipt.payment_methods", "payment method with empty name")
		}
		hasCard = hasCard || m.Card
	}
	if !hasCard {
		return bad("receipt.payment_methods", "no card-like payment method")
	}

	seen := make(map[string]bool, len(rv.Categories))
	for _, c := range rv.Categories {
		field := "receipt.categories." + c.Name
		switch {
		case c.Name == "":
			return bad("receipt.categories", "category with empty name")
		case seen[c.Name]:
			return bad(field, "duplicate category")
		case len(c.Items) == 0:
			return bad(field+".items", "list is empty")
		}
		seen[c.Name] = true
		if err := vocabulary(field+".name_templates", c.NameTemplates); err != nil {
			return err
		}
		if err := vocabulary(field+".adjectives", c.Adjectives); err != nil {
			return err
		}
		for _, it := range c.Items {
			if strings.TrimSpace(it.Description) == "" {
				return bad(field+".items", "item with empty description")
			}
			if err := decRange(field+".items."+it.Description, it.Price, false); err != nil {
				return err
			}
		}
		if f := c.Fuel; f != nil {
			if err := probability(field+".fuel.share", f.Share); err != nil {
				return err
			}
			if err := vocabulary(field+".fuel.descriptions", f.Descriptions); err != nil {
				return err
			}
			if err := decRange(field+".fuel.volume", f.Volume, true); err != nil {
				return err
			}
			if err := decRange(field+".fuel.unit_price", f.UnitPrice, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Profile) validateStatement() error {
	sv := p.Statement
	if err := intRange("statement.transactions", sv.Transactions, 0); err != nil {
		return err
	}
	if err := intRange("statement.months_back", sv.MonthsBack, 1); err != nil {
		return err
	}
	if err := intRange("statement.issue_delay_days", sv.IssueDelayDays, 1); err != nil {
		return err
	}
	if err := decRange("statement.opening_balance", sv.OpeningBalance, false); err != nil {
		return err
	}
	if sv.AccountDigits < 4 {
		return badf("statement.account_digits", "%d digits cannot hold a four digit mask", sv.AccountDigits)
	}
	for _, b := range sv.Banks {
		if b.Name == "" || len(b.SortCodePrefix) != 2 {
			return badf("statement.banks", "bank %q needs a name and a two digit sort code prefix", b.Name)
		}
	}
	for _, c := range sv.Categories {
		field := "statement.categories." + c.Name
		if c.Name == "" {
			return bad("statement.categories", "category with empty name")
		}
		if c.Direction != Debit && c.Direction != Credit {
			return badf(field+".direction", "%q is neither debit nor credit", c.Direction)
		}
		if c.Weight <= 0 {
			return badf(field+".weight", "weight %d is not positive", c.Weight)
		}
		if err := decRange(field+".amount", c.Amount, true); err != nil {
			return err
		}
		if c.Step != nil && (!c.Step.IsPositive() || c.Step.GreaterThan(c.Amount.Max.Decimal)) {
			return badf(field+".step", "step %s must be positive and no larger than the maximum amount", c.Step)
		}
		if err := vocabulary(field+".descriptions", c.Descriptions); err != nil {
			return err
		}
		if len(c.Payees) > 0 {
			if err := vocabulary(field+".payees", c.Payees); err != nil {
				return err
			}
		}
	}
	return nil
}

// vocabulary rejects an empty list and any blank entry in it.
func vocabulary(field string, list []string) error {
	if len(list) == 0 {
		return bad(field, "list is empty")
	}
	for i, w := range list {
		if strings.TrimSpace(w) == "" {
			return badf(field, "entry %d is blank", i)
		}
	}
	return nil
}

func intRange(field string, r IntRange, floor int) error {
	if r.Min < floor {
		return badf(field, "minimum %d is below %d", r.Min, floor)
	}
	if r.Min > r.Max {
		return badf(field, "inverted range %d..%d", r.Min, r.Max)
	}
	return nil
}

func decRange(field string, r DecRange, strictlyPositive bool) error {
	if r.Min.IsNegative() || (strictlyPositive && !r.Min.IsPositive()) {
		return badf(field, "minimum %s is out of bounds", r.Min)
	}
	if r.Min.GreaterThan(r.Max.Decimal) {
		return badf(field, "inverted range %s..%s", r.Min, r.Max)
	}
	return nil
}

func probability(field string, d Dec) error {
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return badf(field, "%s is outside [0, 1]", d)
	}
	return nil
}

func bad(field, reason string) error {
	return &errs.ConfigError{Source: "profile " + field, Reason: reason}
}

func badf(field, format string, args ...any) error {
	return errs.Configf("profile "+field, format, args...)
}
