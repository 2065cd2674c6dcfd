package bigquery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/artifact-engine/internal/fabricate"
	"github.com/dvloznov/artifact-engine/internal/record"
	"github.com/dvloznov/artifact-engine/internal/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRowInserter is a mock implementation of RowInserter.
type MockRowInserter struct {
	PutFunc func(ctx context.Context, src any) error
	batches [][]any
}

func (m *MockRowInserter) Put(ctx context.Context, src any) error {
	if m.PutFunc != nil {
		if err := m.PutFunc(ctx, src); err != nil {
			return err
		}
	}
	m.batches = append(m.batches, src.([]any))
	return nil
}

func (m *MockRowInserter) rows() []any {
	var out []any
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testSink(tables map[string]*MockRowInserter) *Sink {
	return &Sink{
		project: "proj",
		dataset: "synthetic",
		runID:   "run-1",
		now:     func() time.Time { return fixedNow },
		inserter: func(table string) RowInserter {
			if tables[table] == nil {
				tables[table] = &MockRowInserter{}
			}
			return tables[table]
		},
	}
}

func fabricateN(t *testing.T, kind record.Kind, n int) []record.Record {
	t.Helper()
	p, err := vocab.Default()
	require.NoError(t, err)
	e, err := fabricate.New(p, fabricate.WithSeed(9), fabricate.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	recs, err := e.FabricateN(kind, n)
	require.NoError(t, err)
	st := record.NewStamper()
	for _, r := range recs {
		require.NoError(t, st.Stamp(r, "standard"))
	}
	return recs
}

func TestPublish_Invoices(t *testing.T) {
	tables := map[string]*MockRowInserter{}
	recs := fabricateN(t, record.KindInvoice, 3)

	require.NoError(t, testSink(tables).Publish(context.Background(), record.KindInvoice, recs))

	require.Contains(t, tables, "invoices_summary")
	rows := tables["invoices_summary"].rows()
	require.Len(t, rows, 3)

	inv := recs[0].(*record.Invoice)
	row := rows[0].(*InvoiceSummaryRow)
	assert.Equal(t, "run-1", row.RunID)
	assert.Equal(t, inv.ID, row.ImageID)
	assert.Equal(t, civil.DateOf(inv.Date), row.InvoiceDate)
	assert.Equal(t, int64(len(inv.LineItems)), row.NumLineItems)
	assert.Equal(t, "standard", row.Template)
	assert.Equal(t, inv.Total.StringFixed(2), row.Total.FloatString(2))
	assert.Equal(t, fixedNow, row.CreatedTS)
}

func TestPublish_Receipts(t *testing.T) {
	tables := map[string]*MockRowInserter{}
	recs := fabricateN(t, record.KindReceipt, 10)

	require.NoError(t, testSink(tables).Publish(context.Background(), record.KindReceipt, recs))

	rows := tables["receipts_summary"].rows()
	require.Len(t, rows, 10)
	for i, r := range rows {
		rec := recs[i].(*record.Receipt)
		row := r.(*ReceiptSummaryRow)
		assert.Equal(t, rec.CardLastFour != nil, row.CardLastFour.Valid, "card suffix nullability for %s", rec.PaymentMethod.Name)
		assert.Equal(t, int64(len(rec.Items)), row.NumItems)
		assert.Equal(t, civil.DateTimeOf(rec.Timestamp), row.Timestamp)
	}
}

func TestPublish_StatementsIncludeTransactions(t *testing.T) {
	tables := map[string]*MockRowInserter{}
	recs := fabricateN(t, record.KindStatement, 2)

	require.NoError(t, testSink(tables).Publish(context.Background(), record.KindStatement, recs))

	assert.Len(t, tables["statements_summary"].rows(), 2)

	want := 0
	for _, r := range recs {
		want += len(r.(*record.Statement).Transactions)
	}
	txRows := tables[statementTransactionsTable].rows()
	require.Len(t, txRows, want)

	st := recs[0].(*record.Statement)
	for i, tx := range st.Transactions {
		row := txRows[i].(*StatementTransactionRow)
		assert.Equal(t, int64(i), row.TransactionIndex)
		assert.Equal(t, tx.IsDebit(), row.Debit != nil)
		assert.Equal(t, !tx.IsDebit(), row.Credit != nil)
		assert.Equal(t, tx.Balance.StringFixed(2), row.Balance.FloatString(2))
	}
}

func TestPublish_Batches(t *testing.T) {
	tables := map[string]*MockRowInserter{}
	s := testSink(tables)
	rows := make([]any, 1203)
	for i := range rows {
		rows[i] = fmt.Sprint(i)
	}
	require.NoError(t, s.put(context.Background(), "t", rows))

	var sizes []int
	for _, b := range tables["t"].batches {
		sizes = append(sizes, len(b))
	}
	assert.Equal(t, []int{500, 500, 203}, sizes)
}

func TestPublish_Errors(t *testing.T) {
	boom := errors.New("quota exceeded")
	tables := map[string]*MockRowInserter{
		"invoices_summary": {PutFunc: func(context.Context, any) error { return boom }},
	}
	err := testSink(tables).Publish(context.Background(), record.KindInvoice, fabricateN(t, record.KindInvoice, 1))
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, testSink(map[string]*MockRowInserter{}).Publish(context.Background(), record.KindInvoice, nil))
}

func TestSummaryTable(t *testing.T) {
	assert.Equal(t, "invoices_summary", SummaryTable(record.KindInvoice))
	assert.Equal(t, "statements_summary", SummaryTable(record.KindStatement))
}
