// Package bigquery streams run summaries into BigQuery tables.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/artifact-engine/internal/logger"
	"github.com/dvloznov/artifact-engine/internal/record"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// insertBatch caps rows per streaming insert request.
const insertBatch = 500

// RowInserter is the streaming-insert surface of a table.
type RowInserter interface {
	Put(ctx context.Context, src any) error
}

// Sink publishes records of a run to <project>.<dataset>. It implements
// pipeline.Publisher.
type Sink struct {
	client  *bigquery.Client
	project string
	dataset string
	runID   string
	now     func() time.Time

	inserter func(table string) RowInserter
}

// NewSink connects to BigQuery. Every row it writes carries runID.
func NewSink(ctx context.Context, project, dataset, runID string) (*Sink, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewSink: creating client: %w", err)
	}
	s := &Sink{client: client, project: project, dataset: dataset, runID: runID, now: time.Now}
	s.inserter = func(table string) RowInserter {
		return client.DatasetInProject(project, dataset).Table(table).Inserter()
	}
	return s, nil
}

// Close closes the BigQuery client connection.
func (s *Sink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// RunID identifies the rows written by this sink.
func (s *Sink) RunID() string { return s.runID }

// Publish streams one summary row per record, plus one row per transaction
// for statements.
func (s *Sink) Publish(ctx context.Context, kind record.Kind, records []record.Record) error {
	log := logger.FromContext(ctx)
	if len(records) == 0 {
		return nil
	}

	rows, err := summaryRows(s.runID, s.now().UTC(), records)
	if err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	table := SummaryTable(kind)
	if err := s.put(ctx, table, rows); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}

	if kind == record.KindStatement {
		if err := s.put(ctx, statementTransactionsTable, transactionRows(s.runID, records)); err != nil {
			return fmt.Errorf("Publish: %w", err)
		}
	}

	log.Info().
		Str("kind", string(kind)).
		Str("table", fmt.Sprintf("%s.%s.%s", s.project, s.dataset, table)).
		Str("run_id", s.runID).
		Int("rows", len(rows)).
		Msg("Published summary rows")
	return nil
}

func (s *Sink) put(ctx context.Context, table string, rows []any) error {
	ins := s.inserter(table)
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		if err := ins.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("inserting rows %d-%d into %s: %w", start, end-1, table, err)
		}
	}
	return nil
}

// EnsureTables creates the dataset's tables for kinds when missing, with
// schemas inferred from the row types.
func (s *Sink) EnsureTables(ctx context.Context, kinds []record.Kind) error {
	ds := s.client.DatasetInProject(s.project, s.dataset)
	for _, kind := range kinds {
		if err := ensureTable(ctx, ds, SummaryTable(kind), rowTypeFor(kind)); err != nil {
			return fmt.Errorf("EnsureTables: %w", err)
		}
		if kind == record.KindStatement {
			if err := ensureTable(ctx, ds, statementTransactionsTable, StatementTransactionRow{}); err != nil {
				return fmt.Errorf("EnsureTables: %w", err)
			}
		}
	}
	return nil
}

func rowTypeFor(kind record.Kind) any {
	switch kind {
	case record.KindReceipt:
		return ReceiptSummaryRow{}
	case record.KindStatement:
		return StatementSummaryRow{}
	}
	return InvoiceSummaryRow{}
}

func ensureTable(ctx context.Context, ds *bigquery.Dataset, name string, row any) error {
	table := ds.Table(name)
	if _, err := table.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("table %s metadata: %w", name, err)
	}

	schema, err := bigquery.InferSchema(row)
	if err != nil {
		return fmt.Errorf("infer schema for %s: %w", name, err)
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("table", name).Msg("Created table")
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// CountRows reads back how many summary rows this run wrote for kind.
// Streaming inserts can take a few seconds to become visible.
func (s *Sink) CountRows(ctx context.Context, kind record.Kind) (int64, error) {
	q := s.client.Query(fmt.Sprintf(
		"SELECT COUNT(*) AS n FROM `%s.%s.%s` WHERE run_id = @run_id",
		s.project, s.dataset, SummaryTable(kind)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: s.runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountRows: query read: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	for {
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("CountRows: iter next: %w", err)
		}
	}
	return row.N, nil
}
