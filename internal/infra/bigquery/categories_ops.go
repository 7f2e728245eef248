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

// FindCategoriesByOwner implements ledger.Store.
func (s *Store) FindCategoriesByOwner(ctx context.Context, ownerID string) ([]*ledger.Category, error) {
	q := s.client.Query(`
		SELECT category_id, owner_id, name, type, icon, color, is_system, created_at
		FROM ` + s.table(categoriesTable) + `
		WHERE owner_id = @owner_id
		ORDER BY created_at
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindCategoriesByOwner: reading query: %w", err)
	}

	var categories []*ledger.Category
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FindCategoriesByOwner: iterating: %w", err)
		}
		categories = append(categories, row.toLedger())
	}

	return categories, nil
}

// CreateCategory implements ledger.Store.
func (s *Store) CreateCategory(ctx context.Context, c *ledger.Category) (string, error) {
	if c.OwnerID == "" {
		return "", fmt.Errorf("CreateCategory: owner ID is required")
	}
	id := c.CategoryID
	if id == "" {
		id = uuid.NewString()
	}
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.exec(ctx, `
		INSERT INTO `+s.table(categoriesTable)+` (category_id, owner_id, name, type, icon, color, is_system, created_at)
		VALUES (@category_id, @owner_id, @name, @type, @icon, @color, @is_system, @created_at)
	`, []bigquery.QueryParameter{
		{Name: "category_id", Value: id},
		{Name: "owner_id", Value: c.OwnerID},
		{Name: "name", Value: c.Name},
		{Name: "type", Value: c.Type},
		{Name: "icon", Value: nullString(c.Icon)},
		{Name: "color", Value: nullString(c.Color)},
		{Name: "is_system", Value: c.IsSystem},
		{Name: "created_at", Value: created},
	})
	if err != nil {
		return "", fmt.Errorf("CreateCategory: %w", err)
	}
	return id, nil
}

// CountTransactionsByCategory implements ledger.Store.
func (s *Store) CountTransactionsByCategory(ctx context.Context, ownerID, categoryID string) (int, error) {
	q := s.client.Query(`
		SELECT COUNT(*) AS n
		FROM ` + s.table(transactionsTable) + `
		WHERE owner_id = @owner_id AND category_id = @category_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "category_id", Value: categoryID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTransactionsByCategory: reading query: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("CountTransactionsByCategory: iterating: %w", err)
	}
	return int(row.N), nil
}
