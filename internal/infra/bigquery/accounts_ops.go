package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// FindAccountsByOwner implements ledger.Store.
func (s *Store) FindAccountsByOwner(ctx context.Context, ownerID string) ([]*ledger.Account, error) {
	q := s.client.Query(`
		SELECT account_id, owner_id, name, type, balance, created_at
		FROM ` + s.table(accountsTable) + `
		WHERE owner_id = @owner_id
		ORDER BY created_at
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindAccountsByOwner: reading query: %w", err)
	}

	var accounts []*ledger.Account
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FindAccountsByOwner: iterating: %w", err)
		}
		accounts = append(accounts, row.toLedger())
	}

	return accounts, nil
}

// CreateAccount inserts an account and returns its ID.
func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) (string, error) {
	if a.OwnerID == "" {
		return "", fmt.Errorf("CreateAccount: owner ID is required")
	}
	row := AccountRow{
		AccountID: a.AccountID,
		OwnerID:   a.OwnerID,
		Name:      a.Name,
		Type:      a.Type,
		Balance:   toRat(a.Balance),
		CreatedAt: a.CreatedAt,
	}
	if row.AccountID == "" {
		row.AccountID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	_, err := s.exec(ctx, `
		INSERT INTO `+s.table(accountsTable)+` (account_id, owner_id, name, type, balance, created_at)
		VALUES (@account_id, @owner_id, @name, @type, @balance, @created_at)
	`, []bigquery.QueryParameter{
		{Name: "account_id", Value: row.AccountID},
		{Name: "owner_id", Value: row.OwnerID},
		{Name: "name", Value: row.Name},
		{Name: "type", Value: row.Type},
		{Name: "balance", Value: row.Balance},
		{Name: "created_at", Value: row.CreatedAt},
	})
	if err != nil {
		return "", fmt.Errorf("CreateAccount: %w", err)
	}
	return row.AccountID, nil
}

// UpdateAccountBalance implements ledger.Store.
func (s *Store) UpdateAccountBalance(ctx context.Context, ownerID, accountID string, balance decimal.Decimal) error {
	n, err := s.exec(ctx, `
		UPDATE `+s.table(accountsTable)+`
		SET balance = @balance
		WHERE owner_id = @owner_id AND account_id = @account_id
	`, []bigquery.QueryParameter{
		{Name: "balance", Value: toRat(balance)},
		{Name: "owner_id", Value: ownerID},
		{Name: "account_id", Value: accountID},
	})
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateAccountBalance: account %s: %w", accountID, ledger.ErrNotFound)
	}
	return nil
}

// ApplyDelta implements ledger.DeltaApplier with a single UPDATE statement.
func (s *Store) ApplyDelta(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error {
	n, err := s.exec(ctx, `
		UPDATE `+s.table(accountsTable)+`
		SET balance = balance + @delta
		WHERE owner_id = @owner_id AND account_id = @account_id
	`, []bigquery.QueryParameter{
		{Name: "delta", Value: toRat(delta)},
		{Name: "owner_id", Value: ownerID},
		{Name: "account_id", Value: accountID},
	})
	if err != nil {
		return fmt.Errorf("ApplyDelta: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ApplyDelta: account %s: %w", accountID, ledger.ErrNotFound)
	}
	return nil
}
