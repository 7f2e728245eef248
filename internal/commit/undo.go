package commit

import (
	"context"
	"errors"
	"sync"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/shopspring/decimal"
)

// Undo is the one-shot compensating action for a committed batch. It deletes
// the inserted rows, reverses the balance delta and removes auto-created
// categories nothing references. A failed step is retried by the next Run;
// once every step succeeded further runs do nothing.
type Undo struct {
	store    ledger.Store
	balances BalanceApplier

	ownerID    string
	accountID  string
	ids        []string
	delta      decimal.Decimal
	categories []string

	mu            sync.Mutex
	rowsDeleted   bool
	deltaReversed bool
	done          bool
}

func newUndo(store ledger.Store, balances BalanceApplier, ownerID, accountID string, ids []string, delta decimal.Decimal, categories []string) *Undo {
	return &Undo{
		store:      store,
		balances:   balances,
		ownerID:    ownerID,
		accountID:  accountID,
		ids:        append([]string(nil), ids...),
		delta:      delta,
		categories: append([]string(nil), categories...),
	}
}

// IDs returns the transaction IDs the action removes.
func (u *Undo) IDs() []string { return append([]string(nil), u.ids...) }

// Delta returns the balance change the action reverses.
func (u *Undo) Delta() decimal.Decimal { return u.delta }

// Done reports whether the action has completed.
func (u *Undo) Done() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.done
}

// Run executes the compensating action.
func (u *Undo) Run(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil
	}
	log := logger.FromContext(ctx).With().Str("account_id", u.accountID).Int("rows", len(u.ids)).Logger()

	if !u.rowsDeleted {
		if len(u.ids) > 0 {
			if err := u.store.DeleteTransactionsByIDs(ctx, u.ownerID, u.ids); err != nil {
				return &domain.StoreError{Op: "delete transactions", Err: err}
			}
		}
		u.rowsDeleted = true
	}

	if !u.deltaReversed {
		if !u.delta.IsZero() {
			if err := u.balances.ApplyDelta(ctx, u.ownerID, u.accountID, u.delta.Neg()); err != nil {
				return &domain.StoreError{Op: "reverse balance delta", Err: err}
			}
		}
		u.deltaReversed = true
	}

	if err := CleanupCategories(ctx, u.store, u.ownerID, u.categories); err != nil {
		return err
	}

	u.done = true
	log.Info().Str("delta", u.delta.Neg().String()).Msg("import undone")
	return nil
}

// CleanupCategories deletes the given categories that no row references.
func CleanupCategories(ctx context.Context, store ledger.Store, ownerID string, ids []string) error {
	for _, id := range ids {
		n, err := store.CountTransactionsByCategory(ctx, ownerID, id)
		if err != nil {
			return &domain.StoreError{Op: "count transactions by category", Err: err}
		}
		if n > 0 {
			continue
		}
		if err := store.DeleteCategory(ctx, ownerID, id); err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return &domain.StoreError{Op: "delete category", Err: err}
		}
	}
	return nil
}
