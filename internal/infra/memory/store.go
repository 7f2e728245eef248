package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is an in-memory implementation of ledger.Store.
// It is safe for concurrent use and returns copies so callers cannot
// mutate stored rows. Data is lost on restart.
type Store struct {
	mu           sync.RWMutex
	accounts     []*ledger.Account
	categories   []*ledger.Category
	transactions []*ledger.Transaction
	// fingerprints indexes owner -> fingerprint -> transaction ID.
	fingerprints map[string]map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{fingerprints: make(map[string]map[string]string)}
}

// AddAccount seeds an account and returns its ID.
func (s *Store) AddAccount(a ledger.Account) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.AccountID == "" {
		a.AccountID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.accounts = append(s.accounts, &a)
	return a.AccountID
}

// CreateAccount inserts an account and returns its ID.
func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) (string, error) {
	if a.OwnerID == "" {
		return "", fmt.Errorf("CreateAccount: owner ID is required")
	}
	return s.AddAccount(*a), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// AddTransaction seeds a row without going through the uniqueness check.
// It models rows written before fingerprinting existed.
func (s *Store) AddTransaction(t ledger.Transaction) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.TransactionID == "" {
		t.TransactionID = uuid.NewString()
	}
	s.transactions = append(s.transactions, &t)
	if t.Fingerprint != "" {
		s.index(t.OwnerID)[t.Fingerprint] = t.TransactionID
	}
	return t.TransactionID
}

// Transactions returns copies of the owner's rows.
func (s *Store) Transactions(ownerID string) []ledger.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Transaction
	for _, t := range s.transactions {
		if t.OwnerID == ownerID {
			out = append(out, *t)
		}
	}
	return out
}

func (s *Store) index(ownerID string) map[string]string {
	idx, ok := s.fingerprints[ownerID]
	if !ok {
		idx = make(map[string]string)
		s.fingerprints[ownerID] = idx
	}
	return idx
}

// FindAccountsByOwner implements ledger.Store.
func (s *Store) FindAccountsByOwner(ctx context.Context, ownerID string) ([]*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ledger.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			acc := *a
			out = append(out, &acc)
		}
	}
	return out, nil
}

// FindCategoriesByOwner implements ledger.Store.
func (s *Store) FindCategoriesByOwner(ctx context.Context, ownerID string) ([]*ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ledger.Category
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			cat := *c
			out = append(out, &cat)
		}
	}
	return out, nil
}

// CreateCategory implements ledger.Store.
func (s *Store) CreateCategory(ctx context.Context, c *ledger.Category) (string, error) {
	if c.OwnerID == "" {
		return "", fmt.Errorf("CreateCategory: owner ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cat := *c
	if cat.CategoryID == "" {
		cat.CategoryID = uuid.NewString()
	}
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = time.Now()
	}
	s.categories = append(s.categories, &cat)
	return cat.CategoryID, nil
}

// InsertTransactions implements ledger.Store. The call is all-or-nothing.
func (s *Store) InsertTransactions(ctx context.Context, ownerID string, rows []*ledger.Transaction) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(ownerID)
	seen := make(map[string]bool, len(rows))
	for i, r := range rows {
		if r.Fingerprint == "" {
			continue
		}
		if _, exists := idx[r.Fingerprint]; exists || seen[r.Fingerprint] {
			return nil, fmt.Errorf("InsertTransactions: row %d fingerprint %s: %w", i, r.Fingerprint, ledger.ErrUniqueViolation)
		}
		seen[r.Fingerprint] = true
	}

	ids := make([]string, 0, len(rows))
	now := time.Now()
	for _, r := range rows {
		t := *r
		t.OwnerID = ownerID
		t.TransactionID = uuid.NewString()
		t.CreatedAt = now
		s.transactions = append(s.transactions, &t)
		if t.Fingerprint != "" {
			idx[t.Fingerprint] = t.TransactionID
		}
		ids = append(ids, t.TransactionID)
	}
	return ids, nil
}

// UpdateAccountBalance implements ledger.Store.
func (s *Store) UpdateAccountBalance(ctx context.Context, ownerID, accountID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.OwnerID == ownerID && a.AccountID == accountID {
			a.Balance = balance
			return nil
		}
	}
	return fmt.Errorf("UpdateAccountBalance: account %s: %w", accountID, ledger.ErrNotFound)
}

// ApplyDelta implements ledger.DeltaApplier.
func (s *Store) ApplyDelta(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.OwnerID == ownerID && a.AccountID == accountID {
			a.Balance = a.Balance.Add(delta)
			return nil
		}
	}
	return fmt.Errorf("ApplyDelta: account %s: %w", accountID, ledger.ErrNotFound)
}

// DeleteTransactionsByIDs implements ledger.Store.
func (s *Store) DeleteTransactionsByIDs(ctx context.Context, ownerID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	idx := s.index(ownerID)
	kept := s.transactions[:0]
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && drop[t.TransactionID] {
			if t.Fingerprint != "" {
				delete(idx, t.Fingerprint)
			}
			continue
		}
		kept = append(kept, t)
	}
	s.transactions = kept
	return nil
}

// FindTransactionsByFingerprints implements ledger.Store.
func (s *Store) FindTransactionsByFingerprints(ctx context.Context, ownerID string, fps []string) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(fps))
	for _, fp := range fps {
		want[fp] = true
	}

	var out []*ledger.Transaction
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && t.Fingerprint != "" && want[t.Fingerprint] {
			tx := *t
			out = append(out, &tx)
		}
	}
	return out, nil
}

// FindTransactionsByFields implements ledger.Store.
func (s *Store) FindTransactionsByFields(ctx context.Context, ownerID string, keys []ledger.FieldKey) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[ledger.FieldKey]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	var out []*ledger.Transaction
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && want[t.Key()] {
			tx := *t
			out = append(out, &tx)
		}
	}
	return out, nil
}

// CountTransactionsByCategory implements ledger.Store.
func (s *Store) CountTransactionsByCategory(ctx context.Context, ownerID, categoryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && t.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// DeleteCategory implements ledger.Store.
func (s *Store) DeleteCategory(ctx context.Context, ownerID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.categories[:0]
	for _, c := range s.categories {
		if c.OwnerID == ownerID && c.CategoryID == categoryID {
			continue
		}
		kept = append(kept, c)
	}
	s.categories = kept
	return nil
}

// Ensure Store implements ledger.Store and ledger.DeltaApplier.
var (
	_ ledger.Store        = (*Store)(nil)
	_ ledger.DeltaApplier = (*Store)(nil)
)
