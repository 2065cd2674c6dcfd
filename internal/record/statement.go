package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one statement line. Exactly one of Debit and Credit is set.
type Transaction struct {
	Date        time.Time
	Description string
	Category    string
	Debit       *decimal.Decimal
	Credit      *decimal.Decimal
	// Balance is the running balance after this transaction is applied.
	Balance decimal.Decimal
}

// Delta is the signed effect of the transaction on the balance.
func (t Transaction) Delta() decimal.Decimal {
	switch {
	case t.Credit != nil:
		return *t.Credit
	case t.Debit != nil:
		return t.Debit.Neg()
	}
	return decimal.Zero
}

// IsDebit reports whether money left the account.
func (t Transaction) IsDebit() bool { return t.Debit != nil }

// Statement is the ground truth for one monthly bank statement.
type Statement struct {
	Header

	AccountHolder        string
	AccountHolderAddress string
	AccountNumberMasked  string
	SortCode             string

	PeriodStart time.Time
	PeriodEnd   time.Time
	IssueDate   time.Time

	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal

	BankName    string
	BankAddress string

	Transactions []Transaction
	Currency     string
}

// StatementParams carries everything NewStatement needs.
type StatementParams struct {
	ID                   string
	AccountHolder        string
	AccountHolderAddress string
	AccountNumberMasked  string
	SortCode             string
	PeriodStart          time.Time
	PeriodEnd            time.Time
	IssueDate            time.Time
	OpeningBalance       decimal.Decimal
	ClosingBalance       decimal.Decimal
	BankName             string
	BankAddress          string
	Transactions         []Transaction
	Currency             string
}

// Kind implements Record.
func (*Statement) Kind() Kind { return KindStatement }

// TotalDebits sums every debit amount.
func (s *Statement) TotalDebits() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range s.Transactions {
		if t.Debit != nil {
			sum = sum.Add(*t.Debit)
		}
	}
	return sum
}

// TotalCredits sums every credit amount.
func (s *Statement) TotalCredits() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range s.Transactions {
		if t.Credit != nil {
			sum = sum.Add(*t.Credit)
		}
	}
	return sum
}

// MonthBounds returns the first and last calendar day of the month holding t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month normalises to the last day of this one,
	// including the December -> January rollover.
	end := time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	return start, end
}

// NewStatement validates p and builds a Statement.
func NewStatement(p StatementParams) (*Statement, error) {
	const k = KindStatement
	if p.ID == "" {
		return nil, invalid(k, p.ID, "id", "empty identifier")
	}
	start, end := MonthBounds(p.PeriodStart)
	if !p.PeriodStart.Equal(start) || !p.PeriodEnd.Equal(end) {
		return nil, invalidf(k, p.ID, "period", "%s..%s is not a full calendar month",
			p.PeriodStart.Format(time.DateOnly), p.PeriodEnd.Format(time.DateOnly))
	}
	if !p.IssueDate.After(p.PeriodEnd) {
		return nil, invalidf(k, p.ID, "issue_date", "%s is not after period end", p.IssueDate.Format(time.DateOnly))
	}

	balance := p.OpeningBalance
	for i, t := range p.Transactions {
		if (t.Debit == nil) == (t.Credit == nil) {
			return nil, invalidf(k, p.ID, "transactions", "transaction %d must set exactly one of debit or credit", i)
		}
		if t.Debit != nil && !t.Debit.IsPositive() {
			return nil, invalidf(k, p.ID, "transactions", "transaction %d debit %s is not positive", i, *t.Debit)
		}
		if t.Credit != nil && !t.Credit.IsPositive() {
			return nil, invalidf(k, p.ID, "transactions", "transaction %d credit %s is not positive", i, *t.Credit)
		}
		if t.Date.Before(p.PeriodStart) || t.Date.After(p.PeriodEnd) {
			return nil, invalidf(k, p.ID, "transactions", "transaction %d date %s outside period", i, t.Date.Format(time.DateOnly))
		}
		if i > 0 && t.Date.Before(p.Transactions[i-1].Date) {
			return nil, invalidf(k, p.ID, "transactions", "transaction %d is out of date order", i)
		}
		balance = Round2(balance.Add(t.Delta()))
		if !t.Balance.Equal(balance) {
			return nil, invalidf(k, p.ID, "transactions", "transaction %d balance %s, want %s", i, t.Balance, balance)
		}
	}
	if !p.ClosingBalance.Equal(balance) {
		return nil, invalidf(k, p.ID, "closing_balance", "%s, want %s", p.ClosingBalance, balance)
	}

	txs := make([]Transaction, len(p.Transactions))
	copy(txs, p.Transactions)

	return &Statement{
		Header:               Header{ID: p.ID},
		AccountHolder:        p.AccountHolder,
		AccountHolderAddress: p.AccountHolderAddress,
		AccountNumberMasked:  p.AccountNumberMasked,
		SortCode:             p.SortCode,
		PeriodStart:          p.PeriodStart,
		PeriodEnd:            p.PeriodEnd,
		IssueDate:            p.IssueDate,
		OpeningBalance:       p.OpeningBalance,
		ClosingBalance:       p.ClosingBalance,
		BankName:             p.BankName,
		BankAddress:          p.BankAddress,
		Transactions:         txs,
		Currency:             p.Currency,
	}, nil
}
