package render

import (
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/shopspring/decimal"
)

var registerOnce sync.Once

// registerFilters installs the money and qty filters. pongo2 filters are
// process-global, so registration happens once.
func registerFilters() {
	registerOnce.Do(func() {
		if !pongo2.FilterExists("money") {
			_ = pongo2.RegisterFilter("money", filterMoney)
		}
		if !pongo2.FilterExists("qty") {
			_ = pongo2.RegisterFilter("qty", filterQty)
		}
	})
}

// filterMoney prints a decimal with two places and thousands separators.
// A nil pointer prints as an empty cell.
func filterMoney(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	d, ok := asDecimal(in.Interface())
	if !ok {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(FormatMoney(d)), nil
}

// filterQty prints a quantity without trailing zeros.
func filterQty(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	d, ok := asDecimal(in.Interface())
	if !ok {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(d.String()), nil
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, true
	case *decimal.Decimal:
		if d == nil {
			return decimal.Decimal{}, false
		}
		return *d, true
	}
	return decimal.Decimal{}, false
}

// FormatMoney renders d as "-1,234.50".
func FormatMoney(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
