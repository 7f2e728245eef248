// Package sqlite implements ledger.Store on a single SQLite file using the
// pure-Go modernc driver. Money is stored as integer cents.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/migrations"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Store is a SQLite-backed ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Open: opening database at %s: %w", path, err)
	}
	// One connection keeps :memory: databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded SQLite migrations that have not run yet.
func (s *Store) Migrate(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			checksum   TEXT
		)`); err != nil {
		return fmt.Errorf("Migrate: creating schema_migrations: %w", err)
	}

	all, err := migrations.Load(migrations.Files, migrations.DirSQLite, nil)
	if err != nil {
		return fmt.Errorf("Migrate: %w", err)
	}

	applied := make(map[int]string)
	rows, err := s.db.QueryContext(ctx, "SELECT version, COALESCE(checksum, '') FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("Migrate: querying applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		var sum string
		if err := rows.Scan(&v, &sum); err != nil {
			rows.Close()
			return fmt.Errorf("Migrate: scanning applied migration: %w", err)
		}
		applied[v] = sum
	}
	rows.Close()

	pending, err := migrations.Pending(all, applied)
	if err != nil {
		return fmt.Errorf("Migrate: %w", err)
	}

	for _, m := range pending {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("Migrate: begin %s: %w", m.Filename, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("Migrate: executing %s: %w", m.Filename, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at, checksum) VALUES (?, ?, ?, ?)",
			m.Version, m.Name, time.Now().UTC().Format(timeLayout), m.Checksum); err != nil {
			tx.Rollback()
			return fmt.Errorf("Migrate: recording %s: %w", m.Filename, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("Migrate: commit %s: %w", m.Filename, err)
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration")
	}
	return nil
}

// CreateAccount inserts an account and returns its ID.
func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) (string, error) {
	if a.OwnerID == "" {
		return "", fmt.Errorf("CreateAccount: owner ID is required")
	}
	id := a.AccountID
	if id == "" {
		id = uuid.NewString()
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (account_id, owner_id, name, type, balance_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, a.OwnerID, a.Name, a.Type, toCents(a.Balance), formatTime(created))
	if err != nil {
		return "", fmt.Errorf("CreateAccount: %w", mapErr(err))
	}
	return id, nil
}

// FindAccountsByOwner implements ledger.Store.
func (s *Store) FindAccountsByOwner(ctx context.Context, ownerID string) ([]*ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, owner_id, name, type, balance_cents, created_at
		 FROM accounts WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("FindAccountsByOwner: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Account
	for rows.Next() {
		var a ledger.Account
		var cents int64
		var created string
		if err := rows.Scan(&a.AccountID, &a.OwnerID, &a.Name, &a.Type, &cents, &created); err != nil {
			return nil, fmt.Errorf("FindAccountsByOwner: scanning row: %w", err)
		}
		a.Balance = fromCents(cents)
		a.CreatedAt = parseTime(created)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// FindCategoriesByOwner implements ledger.Store.
func (s *Store) FindCategoriesByOwner(ctx context.Context, ownerID string) ([]*ledger.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category_id, owner_id, name, type, icon, color, is_system, created_at
		 FROM categories WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("FindCategoriesByOwner: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Category
	for rows.Next() {
		var c ledger.Category
		var created string
		if err := rows.Scan(&c.CategoryID, &c.OwnerID, &c.Name, &c.Type, &c.Icon, &c.Color, &c.IsSystem, &created); err != nil {
			return nil, fmt.Errorf("FindCategoriesByOwner: scanning row: %w", err)
		}
		c.CreatedAt = parseTime(created)
		out = append(out, &c)
	}
	return out, rows.Err()
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (category_id, owner_id, name, type, icon, color, is_system, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.OwnerID, c.Name, c.Type, c.Icon, c.Color, c.IsSystem, formatTime(created))
	if err != nil {
		return "", fmt.Errorf("CreateCategory: %w", mapErr(err))
	}
	return id, nil
}

// InsertTransactions implements ledger.Store. All rows go in one SQL
// transaction, so a uniqueness failure leaves nothing behind.
func (s *Store) InsertTransactions(ctx context.Context, ownerID string, rows []*ledger.Transaction) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("InsertTransactions: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (transaction_id, owner_id, account_id, category_id, amount_cents,
			occurred_at, date, description, source, fingerprint, provider_order_id, merchant_order_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("InsertTransactions: prepare: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	ids := make([]string, 0, len(rows))
	for i, r := range rows {
		id := uuid.NewString()
		_, err := stmt.ExecContext(ctx,
			id, ownerID, r.AccountID, nullString(r.CategoryID), toCents(r.Amount),
			formatTime(r.OccurredAt), r.Date.String(), r.Description, r.Source,
			nullString(r.Fingerprint), nullString(r.ProviderOrderID), nullString(r.MerchantOrderID), now)
		if err != nil {
			return nil, fmt.Errorf("InsertTransactions: row %d: %w", i, mapErr(err))
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("InsertTransactions: commit: %w", err)
	}
	return ids, nil
}

// UpdateAccountBalance implements ledger.Store.
func (s *Store) UpdateAccountBalance(ctx context.Context, ownerID, accountID string, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET balance_cents = ? WHERE owner_id = ? AND account_id = ?",
		toCents(balance), ownerID, accountID)
	if err != nil {
		return fmt.Errorf("UpdateAccountBalance: %w", err)
	}
	return expectRow(res, "UpdateAccountBalance", accountID)
}

// ApplyDelta implements ledger.DeltaApplier as a single UPDATE.
func (s *Store) ApplyDelta(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET balance_cents = balance_cents + ? WHERE owner_id = ? AND account_id = ?",
		toCents(delta), ownerID, accountID)
	if err != nil {
		return fmt.Errorf("ApplyDelta: %w", err)
	}
	return expectRow(res, "ApplyDelta", accountID)
}

// DeleteTransactionsByIDs implements ledger.Store.
func (s *Store) DeleteTransactionsByIDs(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{ownerID}, stringArgs(ids)...)
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE owner_id = ? AND transaction_id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return fmt.Errorf("DeleteTransactionsByIDs: %w", err)
	}
	return nil
}

// FindTransactionsByFingerprints implements ledger.Store.
func (s *Store) FindTransactionsByFingerprints(ctx context.Context, ownerID string, fps []string) ([]*ledger.Transaction, error) {
	if len(fps) == 0 {
		return nil, nil
	}
	args := append([]any{ownerID}, stringArgs(fps)...)
	out, err := s.queryTransactions(ctx,
		"WHERE owner_id = ? AND fingerprint IN ("+placeholders(len(fps))+")", args...)
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
	clauses := make([]string, len(keys))
	args := []any{ownerID}
	for i, k := range keys {
		clauses[i] = "(date = ? AND ABS(amount_cents) = ? AND description = ?)"
		args = append(args, k.Date.String(), k.AbsCents, k.Description)
	}
	out, err := s.queryTransactions(ctx, "WHERE owner_id = ? AND ("+strings.Join(clauses, " OR ")+")", args...)
	if err != nil {
		return nil, fmt.Errorf("FindTransactionsByFields: %w", err)
	}
	return out, nil
}

// CountTransactionsByCategory implements ledger.Store.
func (s *Store) CountTransactionsByCategory(ctx context.Context, ownerID, categoryID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE owner_id = ? AND category_id = ?", ownerID, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountTransactionsByCategory: %w", err)
	}
	return n, nil
}

// DeleteCategory implements ledger.Store.
func (s *Store) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM categories WHERE owner_id = ? AND category_id = ?", ownerID, categoryID)
	if err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	return nil
}

func (s *Store) queryTransactions(ctx context.Context, where string, args ...any) ([]*ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT transaction_id, owner_id, account_id, COALESCE(category_id, ''), amount_cents,
			occurred_at, date, description, source, COALESCE(fingerprint, ''),
			COALESCE(provider_order_id, ''), COALESCE(merchant_order_id, ''), created_at
		 FROM transactions `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		var cents int64
		var occurred, date, created string
		if err := rows.Scan(&t.TransactionID, &t.OwnerID, &t.AccountID, &t.CategoryID, &cents,
			&occurred, &date, &t.Description, &t.Source, &t.Fingerprint,
			&t.ProviderOrderID, &t.MerchantOrderID, &created); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		t.Amount = fromCents(cents)
		t.OccurredAt = parseTime(occurred)
		t.CreatedAt = parseTime(created)
		if t.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("row %s: %w", t.TransactionID, err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// mapErr translates driver constraint failures into ledger errors.
func mapErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ledger.ErrUniqueViolation, err)
	}
	return err
}

func expectRow(res sql.Result, op, accountID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: account %s: %w", op, accountID, ledger.ErrNotFound)
	}
	return nil
}

// Ensure Store implements the ledger interfaces.
var (
	_ ledger.Store        = (*Store)(nil)
	_ ledger.DeltaApplier = (*Store)(nil)
)
