package record

import (
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func line(desc, qty, price string) LineEntry {
	return LineEntry{Description: desc, Quantity: d(qty), UnitPrice: d(price), Total: LineTotal(d(qty), d(price))}
}

func validInvoiceParams() InvoiceParams {
	lines := []LineEntry{
		line("Code Review - March", "3", "120.50"),
		line("Cloud Storage", "2.5", "33.33"),
	}
	return InvoiceParams{
		ID:            "inv-1",
		InvoiceNumber: "INV-1234-ABCD",
		Date:          time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		SenderName:    "Acme Ltd",
		RecipientName: "Jane Doe",
		LineItems:     lines,
		Totals:        ComputeTotals(lines, d("0.20")),
		Currency:      "GBP",
	}
}

func TestComputeTotals_RoundsAtEachStep(t *testing.T) {
	lines := []LineEntry{
		line("a", "2.5", "33.33"), // 83.325 -> 83.33
		line("b", "1", "0.01"),
	}
	got := ComputeTotals(lines, d("0.05"))

	if !got.Subtotal.Equal(d("83.34")) {
		t.Errorf("Subtotal = %s, want 83.34", got.Subtotal)
	}
	// 83.34 * 0.05 = 4.167 -> 4.17
	if !got.TaxAmount.Equal(d("4.17")) {
		t.Errorf("TaxAmount = %s, want 4.17", got.TaxAmount)
	}
	if !got.Total.Equal(d("87.51")) {
		t.Errorf("Total = %s, want 87.51", got.Total)
	}
}

func TestNewInvoice(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *InvoiceParams)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *InvoiceParams) {}},
		{
			name:    "due date before issue date",
			mutate:  func(p *InvoiceParams) { p.DueDate = p.Date.AddDate(0, 0, -1) },
			wantErr: true,
		},
		{
			name:    "line total off by a penny",
			mutate:  func(p *InvoiceParams) { p.LineItems[0].Total = p.LineItems[0].Total.Add(d("0.01")) },
			wantErr: true,
		},
		{
			name:    "subtotal mismatch",
			mutate:  func(p *InvoiceParams) { p.Totals.Subtotal = p.Totals.Subtotal.Add(d("1")) },
			wantErr: true,
		},
		{
			name:    "tax mismatch",
			mutate:  func(p *InvoiceParams) { p.Totals.TaxAmount = d("0") },
			wantErr: true,
		},
		{
			name:    "grand total mismatch",
			mutate:  func(p *InvoiceParams) { p.Totals.Total = p.Totals.Subtotal },
			wantErr: true,
		},
		{
			name:    "no lines",
			mutate:  func(p *InvoiceParams) { p.LineItems = nil; p.Totals = ComputeTotals(nil, p.Totals.TaxRate) },
			wantErr: true,
		},
		{
			name:    "empty description",
			mutate:  func(p *InvoiceParams) { p.LineItems[1].Description = "" },
			wantErr: true,
		},
		{
			name:    "same-day due date is allowed",
			mutate:  func(p *InvoiceParams) { p.DueDate = p.Date },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validInvoiceParams()
			tt.mutate(&p)
			inv, err := NewInvoice(p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewInvoice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errs.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if inv.Kind() != KindInvoice {
				t.Errorf("Kind() = %s", inv.Kind())
			}
		})
	}
}

func TestStamper_WriteOnce(t *testing.T) {
	inv, err := NewInvoice(validInvoiceParams())
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	if inv.TemplateUsed() != "" {
		t.Fatalf("TemplateUsed before render = %q, want empty", inv.TemplateUsed())
	}
	st := NewStamper()
	if err := st.Stamp(inv, "classic"); err != nil {
		t.Fatalf("Stamp: %v", err)
	}
	if err := st.Stamp(inv, "modern"); !errors.Is(err, ErrTemplateAlreadyStamped) {
		t.Errorf("second Stamp error = %v, want ErrTemplateAlreadyStamped", err)
	}
	if err := NewStamper().Stamp(inv, "modern"); !errors.Is(err, ErrTemplateAlreadyStamped) {
		t.Errorf("Stamp from another stamper error = %v, want ErrTemplateAlreadyStamped", err)
	}
	if inv.TemplateUsed() != "classic" {
		t.Errorf("TemplateUsed = %q, want classic", inv.TemplateUsed())
	}
}

func TestStamper_Rejects(t *testing.T) {
	inv, err := NewInvoice(validInvoiceParams())
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	if err := NewStamper().Stamp(inv, ""); err == nil {
		t.Error("expected error for empty template name")
	}
	var zero Stamper
	if err := zero.Stamp(inv, "classic"); err == nil {
		t.Error("expected error for a stamper not built by NewStamper")
	}
	var none *Stamper
	if err := none.Stamp(inv, "classic"); err == nil {
		t.Error("expected error for a nil stamper")
	}
	if inv.TemplateUsed() != "" {
		t.Errorf("rejected stamps changed TemplateUsed to %q", inv.TemplateUsed())
	}
}

func receiptParams(method PaymentMethod, suffix *string) ReceiptParams {
	item := ReceiptItem{LineEntry: line("Semi-Skimmed Milk 2L", "2", "1.45"), Category: "grocery"}
	items := []ReceiptItem{item}
	return ReceiptParams{
		ID:            "rct-1",
		ReceiptNumber: "RCT-00000001",
		StoreName:     "Fresh Market",
		StoreCategory: "grocery",
		Items:         items,
		Totals:        ComputeTotals([]LineEntry{item.LineEntry}, d("0.20")),
		PaymentMethod: method,
		CardLastFour:  suffix,
		Currency:      "GBP",
	}
}

func TestNewReceipt_CardSuffixPresence(t *testing.T) {
	four := "1234"
	bad := "12a4"
	card := PaymentMethod{Name: "Visa", Card: true}
	cash := PaymentMethod{Name: "Cash"}

	tests := []struct {
		name    string
		method  PaymentMethod
		suffix  *string
		wantErr bool
	}{
		{"card with suffix", card, &four, false},
		{"cash without suffix", cash, nil, false},
		{"card without suffix", card, nil, true},
		{"cash with suffix", cash, &four, true},
		{"card with malformed suffix", card, &bad, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReceipt(receiptParams(tt.method, tt.suffix))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewReceipt() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewReceipt_ItemCategoryMustMatchStore(t *testing.T) {
	p := receiptParams(PaymentMethod{Name: "Cash"}, nil)
	p.Items[0].Category = "petrol"
	if _, err := NewReceipt(p); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func statementParams() StatementParams {
	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{Date: start.AddDate(0, 0, 2), Description: "SALARY", Credit: dp("2500.00"), Balance: d("3500.00")},
		{Date: start.AddDate(0, 0, 5), Description: "TESCO", Debit: dp("45.10"), Balance: d("3454.90")},
		{Date: start.AddDate(0, 0, 5), Description: "ATM", Debit: dp("100.00"), Balance: d("3354.90")},
	}
	return StatementParams{
		ID:             "stmt-1",
		AccountHolder:  "Jane Doe",
		PeriodStart:    start,
		PeriodEnd:      end,
		IssueDate:      end.AddDate(0, 0, 3),
		OpeningBalance: d("1000.00"),
		ClosingBalance: d("3354.90"),
		Transactions:   txs,
		Currency:       "GBP",
	}
}

func TestNewStatement(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *StatementParams)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *StatementParams) {}},
		{
			name:    "both debit and credit",
			mutate:  func(p *StatementParams) { p.Transactions[1].Credit = dp("1.00") },
			wantErr: true,
		},
		{
			name:    "neither debit nor credit",
			mutate:  func(p *StatementParams) { p.Transactions[1].Debit = nil },
			wantErr: true,
		},
		{
			name: "out of date order",
			mutate: func(p *StatementParams) {
				p.Transactions[0].Date, p.Transactions[1].Date = p.Transactions[1].Date, p.Transactions[0].Date
			},
			wantErr: true,
		},
		{
			name:    "broken balance chain",
			mutate:  func(p *StatementParams) { p.Transactions[1].Balance = d("3455.00") },
			wantErr: true,
		},
		{
			name:    "closing balance mismatch",
			mutate:  func(p *StatementParams) { p.ClosingBalance = d("0") },
			wantErr: true,
		},
		{
			name:    "partial month",
			mutate:  func(p *StatementParams) { p.PeriodEnd = p.PeriodEnd.AddDate(0, 0, -1) },
			wantErr: true,
		},
		{
			name:    "issue date inside period",
			mutate:  func(p *StatementParams) { p.IssueDate = p.PeriodEnd },
			wantErr: true,
		},
		{
			name: "no transactions closes at opening balance",
			mutate: func(p *StatementParams) {
				p.Transactions = nil
				p.ClosingBalance = p.OpeningBalance
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := statementParams()
			tt.mutate(&p)
			_, err := NewStatement(p)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewStatement() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatementTotals(t *testing.T) {
	s, err := NewStatement(statementParams())
	if err != nil {
		t.Fatalf("NewStatement: %v", err)
	}
	got := s.OpeningBalance.Add(s.TotalCredits()).Sub(s.TotalDebits())
	if !got.Equal(s.ClosingBalance) {
		t.Errorf("opening + credits - debits = %s, closing = %s", got, s.ClosingBalance)
	}
}

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		in        time.Time
		wantStart string
		wantEnd   string
	}{
		{time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), "2024-12-01", "2024-12-31"},
		{time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), "2024-02-01", "2024-02-29"},
		{time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), "2025-02-01", "2025-02-28"},
		{time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "2025-04-01", "2025-04-30"},
	}
	for _, tt := range tests {
		t.Run(tt.in.Format(time.DateOnly), func(t *testing.T) {
			start, end := MonthBounds(tt.in)
			if start.Format(time.DateOnly) != tt.wantStart || end.Format(time.DateOnly) != tt.wantEnd {
				t.Errorf("MonthBounds = %s..%s, want %s..%s",
					start.Format(time.DateOnly), end.Format(time.DateOnly), tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, ok := ParseKind(string(k))
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, ok)
		}
	}
	if _, ok := ParseKind("memo"); ok {
		t.Error("ParseKind(memo) should fail")
	}
	if KindStatement.Plural() != "statements" {
		t.Errorf("Plural = %q", KindStatement.Plural())
	}
}
