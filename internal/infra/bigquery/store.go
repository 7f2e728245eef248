// Package bigquery implements ledger.Store on BigQuery tables created by the
// migrations in internal/migrations/bigquery. All writes are DML jobs so that
// rows are visible to the next query and can be deleted immediately.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/ledger"
)

const (
	accountsTable     = "accounts"
	categoriesTable   = "categories"
	transactionsTable = "transactions"
	dateFormat        = "2006-01-02"
)

// Store is the BigQuery ledger. It holds a shared client to avoid creating a
// new connection for each operation.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewStore creates a client for projectID and returns a store over datasetID.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, datasetID), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *bigquery.Client, datasetID string) *Store {
	return &Store{client: client, projectID: client.Project(), datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// table returns the fully qualified, quoted table name.
func (s *Store) table(name string) string {
	return tableRef(s.projectID, s.datasetID, name)
}

func tableRef(projectID, datasetID, name string) string {
	return "`" + projectID + "." + datasetID + "." + name + "`"
}

// exec runs a DML statement and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) (int64, error) {
	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}

// Ensure Store implements the ledger interfaces.
var (
	_ ledger.Store        = (*Store)(nil)
	_ ledger.DeltaApplier = (*Store)(nil)
)
