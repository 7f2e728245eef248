package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// DeleteTransactionsByIDs implements ledger.Store.
func (s *Store) DeleteTransactionsByIDs(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.exec(ctx, `
		DELETE FROM `+s.table(transactionsTable)+`
		WHERE owner_id = @owner_id AND transaction_id IN UNNEST(@ids)
	`, []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "ids", Value: ids},
	})
	if err != nil {
		return fmt.Errorf("DeleteTransactionsByIDs: %w", err)
	}
	return nil
}

// DeleteCategory implements ledger.Store.
func (s *Store) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	_, err := s.exec(ctx, `
		DELETE FROM `+s.table(categoriesTable)+`
		WHERE owner_id = @owner_id AND category_id = @category_id
	`, []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "category_id", Value: categoryID},
	})
	if err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	return nil
}
