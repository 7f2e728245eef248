package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const transactionColumns = `transaction_id, owner_id, account_id, category_id, amount, occurred_at, date,
			description, source, fingerprint, provider_order_id, merchant_order_id, created_at`

// InsertTransactions implements ledger.Store.
//
// BigQuery has no unique constraints, so (owner, fingerprint) uniqueness is
// checked with a lookup before a single multi-row INSERT. The INSERT is one
// DML statement and therefore all-or-nothing.
func (s *Store) InsertTransactions(ctx context.Context, ownerID string, rows []*ledger.Transaction) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	if err := s.checkFingerprints(ctx, ownerID, rows); err != nil {
		return nil, err
	}

	now := time.Now()
	ids := make([]string, len(rows))
	params := make([]*TransactionRow, len(rows))
	for i, r := range rows {
		ids[i] = uuid.NewString()
		params[i] = newTransactionRow(ids[i], ownerID, r, now)
	}

	_, err := s.exec(ctx, `
		INSERT INTO `+s.table(transactionsTable)+` (`+transactionColumns+`)
		SELECT `+transactionColumns+`
		FROM UNNEST(@rows)
	`, []bigquery.QueryParameter{
		{Name: "rows", Value: params},
	})
	if err != nil {
		return nil, fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return ids, nil
}

// checkFingerprints fails when a row repeats a fingerprint in the batch or
// one already stored for the owner.
func (s *Store) checkFingerprints(ctx context.Context, ownerID string, rows []*ledger.Transaction) error {
	seen := make(map[string]bool, len(rows))
	var fps []string
	for i, r := range rows {
		if r.Fingerprint == "" {
			continue
		}
		if seen[r.Fingerprint] {
			return fmt.Errorf("InsertTransactions: row %d fingerprint %s repeated: %w", i, r.Fingerprint, ledger.ErrUniqueViolation)
		}
		seen[r.Fingerprint] = true
		fps = append(fps, r.Fingerprint)
	}
	if len(fps) == 0 {
		return nil
	}

	existing, err := s.FindTransactionsByFingerprints(ctx, ownerID, fps)
	if err != nil {
		return fmt.Errorf("InsertTransactions: checking fingerprints: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("InsertTransactions: fingerprint %s exists: %w", existing[0].Fingerprint, ledger.ErrUniqueViolation)
	}
	return nil
}

// FindTransactionsByFingerprints implements ledger.Store.
func (s *Store) FindTransactionsByFingerprints(ctx context.Context, ownerID string, fps []string) ([]*ledger.Transaction, error) {
	if len(fps) == 0 {
		return nil, nil
	}
	out, err := s.queryTransactions(ctx, `
		WHERE owner_id = @owner_id AND fingerprint IN UNNEST(@fps)
	`, []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "fps", Value: fps},
	})
	if err != nil {
		return nil, fmt.Errorf("FindTransactionsByFingerprints: %w", err)
	}
	return out, nil
}

// FindTransactionsByFields implements ledger.Store.
func (s *Store) FindTransactionsByFields(ctx context.Context, ownerID string, keys []ledger.FieldKey) ([]*ledger.Transaction, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out, err := s.queryTransactions(ctx, `
		WHERE owner_id = @owner_id
		  AND EXISTS (
			SELECT 1 FROM UNNEST(@keys) k
			WHERE k.date = t.date
			  AND k.abs_cents = CAST(ABS(t.amount) * 100 AS INT64)
			  AND k.description = IFNULL(t.description, '')
		  )
	`, []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "keys", Value: fieldKeyParams(keys)},
	})
	if err != nil {
		return nil, fmt.Errorf("FindTransactionsByFields: %w", err)
	}
	return out, nil
}

func fieldKeyParams(keys []ledger.FieldKey) []fieldKeyParam {
	out := make([]fieldKeyParam, len(keys))
	for i, k := range keys {
		out[i] = fieldKeyParam{Date: k.Date, AbsCents: k.AbsCents, Description: k.Description}
	}
	return out
}

func (s *Store) queryTransactions(ctx context.Context, where string, params []bigquery.QueryParameter) ([]*ledger.Transaction, error) {
	q := s.client.Query(`
		SELECT ` + transactionColumns + `
		FROM ` + s.table(transactionsTable) + ` t
		` + where + `
		ORDER BY created_at
	`)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var out []*ledger.Transaction
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		out = append(out, r.toLedger())
	}

	return out, nil
}
