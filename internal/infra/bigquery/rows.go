package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/shopspring/decimal"
)

// InvoiceSummaryRow is one row of <dataset>.invoices_summary.
type InvoiceSummaryRow struct {
	RunID   string `bigquery:"run_id"`   // REQUIRED
	ImageID string `bigquery:"image_id"` // REQUIRED

	InvoiceNumber string     `bigquery:"invoice_number"`
	InvoiceDate   civil.Date `bigquery:"invoice_date"`
	DueDate       civil.Date `bigquery:"due_date"`
	Sender        string     `bigquery:"sender"`
	Recipient     string     `bigquery:"recipient"`
	Template      string     `bigquery:"template"`
	NumLineItems  int64      `bigquery:"num_line_items"`

	Subtotal  *big.Rat `bigquery:"subtotal"` // NUMERIC
	TaxRate   *big.Rat `bigquery:"tax_rate"`
	TaxAmount *big.Rat `bigquery:"tax_amount"`
	Total     *big.Rat `bigquery:"total"`
	Currency  string   `bigquery:"currency"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// ReceiptSummaryRow is one row of <dataset>.receipts_summary.
type ReceiptSummaryRow struct {
	RunID   string `bigquery:"run_id"`
	ImageID string `bigquery:"image_id"`

	ReceiptNumber string         `bigquery:"receipt_number"`
	TransactionID string         `bigquery:"transaction_id"`
	Timestamp     civil.DateTime `bigquery:"timestamp"` // DATETIME, local till time
	StoreName     string         `bigquery:"store_name"`
	StoreCategory string         `bigquery:"store_category"`
	Template      string         `bigquery:"template"`
	NumItems      int64          `bigquery:"num_items"`

	Subtotal  *big.Rat `bigquery:"subtotal"`
	TaxRate   *big.Rat `bigquery:"tax_rate"`
	TaxAmount *big.Rat `bigquery:"tax_amount"`
	Total     *big.Rat `bigquery:"total"`

	PaymentMethod string              `bigquery:"payment_method"`
	CardLastFour  bigquery.NullString `bigquery:"card_last_four"` // NULLABLE
	Currency      string              `bigquery:"currency"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// StatementSummaryRow is one row of <dataset>.statements_summary.
type StatementSummaryRow struct {
	RunID   string `bigquery:"run_id"`
	ImageID string `bigquery:"image_id"`

	BankName            string     `bigquery:"bank_name"`
	AccountHolder       string     `bigquery:"account_holder"`
	AccountNumberMasked string     `bigquery:"account_number_masked"`
	SortCode            string     `bigquery:"sort_code"`
	PeriodStart         civil.Date `bigquery:"period_start"`
	PeriodEnd           civil.Date `bigquery:"period_end"`
	IssueDate           civil.Date `bigquery:"issue_date"`
	Template            string     `bigquery:"template"`
	NumTransactions     int64      `bigquery:"num_transactions"`

	OpeningBalance *big.Rat `bigquery:"opening_balance"`
	TotalDebits    *big.Rat `bigquery:"total_debits"`
	TotalCredits   *big.Rat `bigquery:"total_credits"`
	ClosingBalance *big.Rat `bigquery:"closing_balance"`
	Currency       string   `bigquery:"currency"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// StatementTransactionRow is one row of <dataset>.statement_transactions.
type StatementTransactionRow struct {
	RunID            string     `bigquery:"run_id"`
	ImageID          string     `bigquery:"image_id"`
	TransactionIndex int64      `bigquery:"transaction_index"`
	TransactionDate  civil.Date `bigquery:"transaction_date"`
	Description      string     `bigquery:"description"`
	Category         string     `bigquery:"category"`

	Debit   *big.Rat `bigquery:"debit"`  // NULLABLE NUMERIC
	Credit  *big.Rat `bigquery:"credit"` // NULLABLE NUMERIC
	Balance *big.Rat `bigquery:"balance"`

	Currency string `bigquery:"currency"`
}

// Table names per kind.
const (
	statementTransactionsTable = "statement_transactions"
)

// SummaryTable is the warehouse table holding one row per record of kind.
func SummaryTable(kind record.Kind) string {
	return kind.Plural() + "_summary"
}

func numeric(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func nullableNumeric(d *decimal.Decimal) *big.Rat {
	if d == nil {
		return nil
	}
	return d.Rat()
}

// summaryRows converts records of one kind to their summary rows.
func summaryRows(runID string, created time.Time, records []record.Record) ([]any, error) {
	rows := make([]any, 0, len(records))
	for _, r := range records {
		switch rec := r.(type) {
		case *record.Invoice:
			rows = append(rows, &InvoiceSummaryRow{
				RunID:         runID,
				ImageID:       rec.ID,
				InvoiceNumber: rec.InvoiceNumber,
				InvoiceDate:   civil.DateOf(rec.Date),
				DueDate:       civil.DateOf(rec.DueDate),
				Sender:        rec.SenderName,
				Recipient:     rec.RecipientName,
				Template:      rec.TemplateUsed(),
				NumLineItems:  int64(len(rec.LineItems)),
				Subtotal:      numeric(rec.Subtotal),
				TaxRate:       numeric(rec.TaxRate),
				TaxAmount:     numeric(rec.TaxAmount),
				Total:         numeric(rec.Total),
				Currency:      rec.Currency,
				CreatedTS:     created,
			})
		case *record.Receipt:
			card := bigquery.NullString{}
			if rec.CardLastFour != nil {
				card = bigquery.NullString{StringVal: *rec.CardLastFour, Valid: true}
			}
			rows = append(rows, &ReceiptSummaryRow{
				RunID:         runID,
				ImageID:       rec.ID,
				ReceiptNumber: rec.ReceiptNumber,
				TransactionID: rec.TransactionID,
				Timestamp:     civil.DateTimeOf(rec.Timestamp),
				StoreName:     rec.StoreName,
				StoreCategory: rec.StoreCategory,
				Template:      rec.TemplateUsed(),
				NumItems:      int64(len(rec.Items)),
				Subtotal:      numeric(rec.Subtotal),
				TaxRate:       numeric(rec.TaxRate),
				TaxAmount:     numeric(rec.TaxAmount),
				Total:         numeric(rec.Total),
				PaymentMethod: rec.PaymentMethod.Name,
				CardLastFour:  card,
				Currency:      rec.Currency,
				CreatedTS:     created,
			})
		case *record.Statement:
			rows = append(rows, &StatementSummaryRow{
				RunID:               runID,
				ImageID:             rec.ID,
				BankName:            rec.BankName,
				AccountHolder:       rec.AccountHolder,
				AccountNumberMasked: rec.AccountNumberMasked,
				SortCode:            rec.SortCode,
				PeriodStart:         civil.DateOf(rec.PeriodStart),
				PeriodEnd:           civil.DateOf(rec.PeriodEnd),
				IssueDate:           civil.DateOf(rec.IssueDate),
				Template:            rec.TemplateUsed(),
				NumTransactions:     int64(len(rec.Transactions)),
				OpeningBalance:      numeric(rec.OpeningBalance),
				TotalDebits:         numeric(rec.TotalDebits()),
				TotalCredits:        numeric(rec.TotalCredits()),
				ClosingBalance:      numeric(rec.ClosingBalance),
				Currency:            rec.Currency,
				CreatedTS:           created,
			})
		default:
			return nil, fmt.Errorf("summaryRows: unsupported record %T", r)
		}
	}
	return rows, nil
}

// transactionRows flattens every statement's transactions.
func transactionRows(runID string, records []record.Record) []any {
	var rows []any
	for _, r := range records {
		st, ok := r.(*record.Statement)
		if !ok {
			continue
		}
		for i, tx := range st.Transactions {
			rows = append(rows, &StatementTransactionRow{
				RunID:            runID,
				ImageID:          st.ID,
				TransactionIndex: int64(i),
				TransactionDate:  civil.DateOf(tx.Date),
				Description:      tx.Description,
				Category:         tx.Category,
				Debit:            nullableNumeric(tx.Debit),
				Credit:           nullableNumeric(tx.Credit),
				Balance:          numeric(tx.Balance),
				Currency:         st.Currency,
			})
		}
	}
	return rows
}
