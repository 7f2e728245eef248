package commit

import (
	"context"

	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/shopspring/decimal"
)

// BalanceApplier adds a signed delta to an account balance.
type BalanceApplier interface {
	ApplyDelta(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error
}

// ReadModifyWrite applies a delta by reading the balance and writing the sum.
// It is not safe against concurrent writers to the same account.
type ReadModifyWrite struct {
	Store ledger.Store
}

// ApplyDelta implements BalanceApplier.
func (rmw ReadModifyWrite) ApplyDelta(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error {
	acc, err := ledger.FindAccount(ctx, rmw.Store, ownerID, accountID)
	if err != nil {
		return err
	}
	return rmw.Store.UpdateAccountBalance(ctx, ownerID, accountID, acc.Balance.Add(delta))
}

// NewBalanceApplier prefers the store's atomic delta when it has one.
func NewBalanceApplier(store ledger.Store) BalanceApplier {
	if d, ok := store.(ledger.DeltaApplier); ok {
		return d
	}
	return ReadModifyWrite{Store: store}
}
