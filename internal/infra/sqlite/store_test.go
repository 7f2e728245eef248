package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func newAccount(t *testing.T, s *Store, owner, balance string) string {
	t.Helper()
	id, err := s.CreateAccount(context.Background(), &ledger.Account{
		OwnerID: owner, Name: "Cash", Type: ledger.AccountCash, Balance: decimal.RequireFromString(balance),
	})
	require.NoError(t, err)
	return id
}

func tx(accountID, amount, fp string) *ledger.Transaction {
	return &ledger.Transaction{
		AccountID:   accountID,
		Amount:      decimal.RequireFromString(amount),
		OccurredAt:  time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Date:        civil.Date{Year: 2024, Month: 3, Day: 1},
		Description: "lunch",
		Source:      "manual.csv",
		Fingerprint: fp,
	}
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	s, path := openTemp(t)
	acc := newAccount(t, s, "u1", "10")
	require.NoError(t, s.Close())

	again, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer again.Close()

	accounts, err := again.FindAccountsByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, acc, accounts[0].AccountID)
	assert.Equal(t, "10.00", accounts[0].Balance.StringFixed(2))
}

func TestInsertTransactions_UniqueFingerprint(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	acc := newAccount(t, s, "u1", "0")

	ids, err := s.InsertTransactions(ctx, "u1", []*ledger.Transaction{tx(acc, "-12.50", "fp-1")})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	_, err = s.InsertTransactions(ctx, "u1", []*ledger.Transaction{
		tx(acc, "-3.00", "fp-2"),
		tx(acc, "-12.50", "fp-1"),
	})
	assert.True(t, errors.Is(err, ledger.ErrUniqueViolation), "got %v", err)

	found, err := s.FindTransactionsByFingerprints(ctx, "u1", []string{"fp-1", "fp-2"})
	require.NoError(t, err)
	require.Len(t, found, 1, "failed insert must roll back")
	assert.Equal(t, "-12.50", found[0].Amount.StringFixed(2))
	assert.Equal(t, civil.Date{Year: 2024, Month: 3, Day: 1}, found[0].Date)
}

func TestInsertTransactions_LegacyRowsWithoutFingerprint(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	acc := newAccount(t, s, "u1", "0")

	_, err := s.InsertTransactions(ctx, "u1", []*ledger.Transaction{tx(acc, "-1", ""), tx(acc, "-1", "")})
	require.NoError(t, err)

	found, err := s.FindTransactionsByFields(ctx, "u1", []ledger.FieldKey{
		{Date: civil.Date{Year: 2024, Month: 3, Day: 1}, AbsCents: 100, Description: "lunch"},
	})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Empty(t, found[0].Fingerprint)
}

func TestBalanceOperations(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	acc := newAccount(t, s, "u1", "100.10")

	require.NoError(t, s.ApplyDelta(ctx, "u1", acc, decimal.RequireFromString("-0.20")))
	a, err := ledger.FindAccount(ctx, s, "u1", acc)
	require.NoError(t, err)
	assert.Equal(t, "99.90", a.Balance.StringFixed(2))

	require.NoError(t, s.UpdateAccountBalance(ctx, "u1", acc, decimal.NewFromInt(5)))
	err = s.ApplyDelta(ctx, "u2", acc, decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	acc := newAccount(t, s, "u1", "0")

	catID, err := s.CreateCategory(ctx, &ledger.Category{OwnerID: "u1", Name: "餐饮", Type: ledger.CategoryExpense, Icon: "tag"})
	require.NoError(t, err)

	row := tx(acc, "-8", "fp")
	row.CategoryID = catID
	ids, err := s.InsertTransactions(ctx, "u1", []*ledger.Transaction{row})
	require.NoError(t, err)

	n, err := s.CountTransactionsByCategory(ctx, "u1", catID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteTransactionsByIDs(ctx, "u1", ids))
	require.NoError(t, s.DeleteCategory(ctx, "u1", catID))
	cats, err := s.FindCategoriesByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestCoordinator_CommitAndUndo(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	acc := newAccount(t, s, "u1", "1000.37")

	c := commit.NewCoordinator(s, 2)
	res, err := c.Commit(ctx, commit.Batch{
		OwnerID:   "u1",
		AccountID: acc,
		Rows:      []*ledger.Transaction{tx(acc, "-100", "a"), tx(acc, "-12.43", "b"), tx(acc, "0", "c")},
	})
	require.NoError(t, err)
	assert.Len(t, res.IDs, 3)

	a, _ := ledger.FindAccount(ctx, s, "u1", acc)
	assert.Equal(t, "887.94", a.Balance.StringFixed(2))

	require.NoError(t, res.Undo.Run(ctx))
	a, _ = ledger.FindAccount(ctx, s, "u1", acc)
	assert.Equal(t, "1000.37", a.Balance.StringFixed(2))
}
