package fabricate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/dvloznov/artifact-engine/internal/vocab"
	"github.com/shopspring/decimal"
)

// Period is an inclusive range of calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// Days is the number of calendar days in the period.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// FabricateStatement produces one monthly statement for a full calendar
// month between MonthsBack.Min and MonthsBack.Max months ago.
func (e *Engine) FabricateStatement() (*record.Statement, error) {
	sv := e.profile.Statement

	id, err := e.newID()
	if err != nil {
		return nil, fmt.Errorf("FabricateStatement: %w", err)
	}

	bank := pick(e.rng, sv.Banks)
	today := e.today()
	// Step from the first of the month so AddDate never normalises 31 March
	// minus one month into 3 March.
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	start, end := record.MonthBounds(first.AddDate(0, -between(e.rng, sv.MonthsBack), 0))
	period := Period{Start: start, End: end}

	opening := uniform(e.rng, sv.OpeningBalance, 2)
	txs, closing := Reconcile(opening, e.AssignTransactions(period))

	account := bothify(e.rng, strings.Repeat("#", sv.AccountDigits))

	st, err := record.NewStatement(record.StatementParams{
		ID:                   id,
		AccountHolder:        e.personName(),
		AccountHolderAddress: e.address(),
		AccountNumberMasked:  strings.Repeat("*", sv.AccountDigits-4) + account[len(account)-4:],
		SortCode:             bank.SortCodePrefix + bothify(e.rng, "-##-##"),
		PeriodStart:          start,
		PeriodEnd:            end,
		IssueDate:            end.AddDate(0, 0, between(e.rng, sv.IssueDelayDays)),
		OpeningBalance:       opening,
		ClosingBalance:       closing,
		BankName:             bank.Name,
		BankAddress:          bank.Address,
		Transactions:         txs,
		Currency:             e.profile.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("FabricateStatement: %w", err)
	}
	return st, nil
}

// AssignTransactions draws the category, amount and date of every
// transaction in the period. The result is in generation order, not date
// order, and every Balance is a provisional zero for Reconcile to replace.
func (e *Engine) AssignTransactions(period Period) []record.Transaction {
	sv := e.profile.Statement

	weights := make([]int, len(sv.Categories))
	for i, c := range sv.Categories {
		weights[i] = c.Weight
	}

	days := period.Days()
	n := between(e.rng, sv.Transactions)
	txs := make([]record.Transaction, 0, n)
	for i := 0; i < n; i++ {
		cat := sv.Categories[weighted(e.rng, weights)]
		amount := e.amount(cat)
		tx := record.Transaction{
			Date:        period.Start.AddDate(0, 0, e.rng.IntN(days)),
			Description: e.describe(cat),
			Category:    cat.Name,
		}
		if cat.Direction == vocab.Debit {
			tx.Debit = &amount
		} else {
			tx.Credit = &amount
		}
		txs = append(txs, tx)
	}
	return txs
}

// Reconcile stable-sorts txs by date and recomputes every running balance
// in one forward pass from opening. It returns the sorted copy and the
// closing balance. Balances already present on txs are ignored.
func Reconcile(opening decimal.Decimal, txs []record.Transaction) ([]record.Transaction, decimal.Decimal) {
	sorted := slices.Clone(txs)
	slices.SortStableFunc(sorted, func(a, b record.Transaction) int {
		return a.Date.Compare(b.Date)
	})

	balance := record.Round2(opening)
	for i := range sorted {
		balance = record.Round2(balance.Add(sorted[i].Delta()))
		sorted[i].Balance = balance
	}
	return sorted, balance
}

func (e *Engine) amount(cat vocab.TransactionCategory) decimal.Decimal {
	v := uniform(e.rng, cat.Amount, 2)
	if cat.Step != nil {
		step := cat.Step.Decimal
		v = v.Div(step).Floor().Mul(step)
		if !v.IsPositive() {
			v = step
		}
	}
	return v
}

func (e *Engine) describe(cat vocab.TransactionCategory) string {
	desc := pick(e.rng, cat.Descriptions)
	if len(cat.Payees) > 0 {
		desc = strings.ReplaceAll(desc, "{payee}", pick(e.rng, cat.Payees))
	}
	return strings.TrimSpace(strings.ReplaceAll(desc, "{payee}", ""))
}
