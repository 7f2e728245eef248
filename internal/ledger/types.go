package ledger

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ErrUniqueViolation is wrapped by stores when an insert breaks the
// (owner, fingerprint) uniqueness invariant.
var ErrUniqueViolation = errors.New("unique constraint violation")

// ErrNotFound is returned when an owner-scoped row does not exist.
var ErrNotFound = errors.New("not found")

// Category types.
const (
	CategoryIncome  = "income"
	CategoryExpense = "expense"
)

// Account types the resolver understands. Stores may hold others.
const (
	AccountWeChat = "wechat"
	AccountAlipay = "alipay"
	AccountBank   = "bank"
	AccountCash   = "cash"
	AccountCredit = "credit"
)

// Store is the ledger store consumed by the import engine.
// Every operation is scoped by owner; the store is the sole enforcer of
// (owner, fingerprint) uniqueness among its rows.
type Store interface {
	// FindAccountsByOwner lists the owner's accounts in creation order.
	FindAccountsByOwner(ctx context.Context, ownerID string) ([]*Account, error)

	// FindCategoriesByOwner lists the owner's categories in creation order.
	FindCategoriesByOwner(ctx context.Context, ownerID string) ([]*Category, error)

	// CreateCategory inserts a category and returns its ID.
	CreateCategory(ctx context.Context, c *Category) (string, error)

	// InsertTransactions inserts rows and returns their IDs in input order.
	// A uniqueness failure is reported wrapping ErrUniqueViolation and leaves
	// no row of the call inserted.
	InsertTransactions(ctx context.Context, ownerID string, rows []*Transaction) ([]string, error)

	// UpdateAccountBalance overwrites the account balance.
	UpdateAccountBalance(ctx context.Context, ownerID, accountID string, balance decimal.Decimal) error

	// DeleteTransactionsByIDs removes the given rows. Missing IDs are ignored.
	DeleteTransactionsByIDs(ctx context.Context, ownerID string, ids []string) error

	// FindTransactionsByFingerprints returns rows whose fingerprint is in fps.
	FindTransactionsByFingerprints(ctx context.Context, ownerID string, fps []string) ([]*Transaction, error)

	// FindTransactionsByFields returns rows matching any key on
	// (date, |amount| in cents, description).
	FindTransactionsByFields(ctx context.Context, ownerID string, keys []FieldKey) ([]*Transaction, error)

	// CountTransactionsByCategory counts rows referencing a category.
	CountTransactionsByCategory(ctx context.Context, ownerID, categoryID string) (int, error)

	// DeleteCategory removes a category.
	DeleteCategory(ctx context.Context, ownerID, categoryID string) error
}

// DeltaApplier is implemented by stores that can add to a balance atomically.
type DeltaApplier interface {
	ApplyDelta(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) error
}

// Account is a ledger account. Balance is owned by the store.
type Account struct {
	AccountID string          `json:"account_id"`
	OwnerID   string          `json:"owner_id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Category is a ledger category.
type Category struct {
	CategoryID string    `json:"category_id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"` // income or expense
	Icon       string    `json:"icon"`
	Color      string    `json:"color"`
	IsSystem   bool      `json:"is_system"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transaction is a persisted ledger row.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	OwnerID       string          `json:"owner_id"`
	AccountID     string          `json:"account_id"`
	CategoryID    string          `json:"category_id"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Date          civil.Date      `json:"date"`
	Description   string          `json:"description"`
	Source        string          `json:"source"`
	// Fingerprint is empty for rows that predate fingerprinting.
	Fingerprint     string    `json:"fingerprint,omitempty"`
	ProviderOrderID string    `json:"provider_order_id,omitempty"`
	MerchantOrderID string    `json:"merchant_order_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// AbsCents returns |amount| in cents.
func (t *Transaction) AbsCents() int64 {
	return t.Amount.Abs().Shift(2).Round(0).IntPart()
}

// FieldKey is the content key used for rows without a fingerprint.
type FieldKey struct {
	Date        civil.Date
	AbsCents    int64
	Description string
}

// Key returns the FieldKey of a stored row.
func (t *Transaction) Key() FieldKey {
	return FieldKey{Date: t.Date, AbsCents: t.AbsCents(), Description: t.Description}
}

// FindAccount returns the owner's account with the given ID.
func FindAccount(ctx context.Context, s Store, ownerID, accountID string) (*Account, error) {
	accounts, err := s.FindAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.AccountID == accountID {
			return a, nil
		}
	}
	return nil, ErrNotFound
}
