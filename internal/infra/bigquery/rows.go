package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/shopspring/decimal"
)

type AccountRow struct {
	AccountID string    `bigquery:"account_id"` // REQUIRED
	OwnerID   string    `bigquery:"owner_id"`   // REQUIRED
	Name      string    `bigquery:"name"`       // REQUIRED
	Type      string    `bigquery:"type"`       // REQUIRED
	Balance   *big.Rat  `bigquery:"balance"`    // REQUIRED NUMERIC
	CreatedAt time.Time `bigquery:"created_at"` // REQUIRED
}

type CategoryRow struct {
	CategoryID string              `bigquery:"category_id"` // REQUIRED
	OwnerID    string              `bigquery:"owner_id"`    // REQUIRED
	Name       string              `bigquery:"name"`        // REQUIRED
	Type       string              `bigquery:"type"`        // REQUIRED: income | expense
	Icon       bigquery.NullString `bigquery:"icon"`        // NULLABLE
	Color      bigquery.NullString `bigquery:"color"`       // NULLABLE
	IsSystem   bool                `bigquery:"is_system"`   // REQUIRED
	CreatedAt  time.Time           `bigquery:"created_at"`  // REQUIRED
}

type TransactionRow struct {
	TransactionID string              `bigquery:"transaction_id"` // REQUIRED
	OwnerID       string              `bigquery:"owner_id"`       // REQUIRED
	AccountID     string              `bigquery:"account_id"`     // REQUIRED
	CategoryID    bigquery.NullString `bigquery:"category_id"`    // NULLABLE

	Amount     *big.Rat   `bigquery:"amount"`      // REQUIRED NUMERIC, signed
	OccurredAt time.Time  `bigquery:"occurred_at"` // REQUIRED
	Date       civil.Date `bigquery:"date"`        // REQUIRED, partition column

	Description bigquery.NullString `bigquery:"description"` // NULLABLE
	Source      bigquery.NullString `bigquery:"source"`      // NULLABLE

	// Fingerprint is NULL for rows written before fingerprinting.
	Fingerprint     bigquery.NullString `bigquery:"fingerprint"`
	ProviderOrderID bigquery.NullString `bigquery:"provider_order_id"`
	MerchantOrderID bigquery.NullString `bigquery:"merchant_order_id"`

	CreatedAt time.Time `bigquery:"created_at"` // REQUIRED
}

// fieldKeyParam is one element of the @keys array in field lookups.
type fieldKeyParam struct {
	Date        civil.Date `bigquery:"date"`
	AbsCents    int64      `bigquery:"abs_cents"`
	Description string     `bigquery:"description"`
}

func toRat(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func fromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, 9)
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func (r *AccountRow) toLedger() *ledger.Account {
	return &ledger.Account{
		AccountID: r.AccountID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Type:      r.Type,
		Balance:   fromRat(r.Balance),
		CreatedAt: r.CreatedAt,
	}
}

func (r *CategoryRow) toLedger() *ledger.Category {
	return &ledger.Category{
		CategoryID: r.CategoryID,
		OwnerID:    r.OwnerID,
		Name:       r.Name,
		Type:       r.Type,
		Icon:       r.Icon.StringVal,
		Color:      r.Color.StringVal,
		IsSystem:   r.IsSystem,
		CreatedAt:  r.CreatedAt,
	}
}

func newTransactionRow(id, ownerID string, t *ledger.Transaction, now time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID:   id,
		OwnerID:         ownerID,
		AccountID:       t.AccountID,
		CategoryID:      nullString(t.CategoryID),
		Amount:          toRat(t.Amount),
		OccurredAt:      t.OccurredAt,
		Date:            t.Date,
		Description:     nullString(t.Description),
		Source:          nullString(t.Source),
		Fingerprint:     nullString(t.Fingerprint),
		ProviderOrderID: nullString(t.ProviderOrderID),
		MerchantOrderID: nullString(t.MerchantOrderID),
		CreatedAt:       now,
	}
}

func (r *TransactionRow) toLedger() *ledger.Transaction {
	return &ledger.Transaction{
		TransactionID:   r.TransactionID,
		OwnerID:         r.OwnerID,
		AccountID:       r.AccountID,
		CategoryID:      r.CategoryID.StringVal,
		Amount:          fromRat(r.Amount).Round(2),
		OccurredAt:      r.OccurredAt,
		Date:            r.Date,
		Description:     r.Description.StringVal,
		Source:          r.Source.StringVal,
		Fingerprint:     r.Fingerprint.StringVal,
		ProviderOrderID: r.ProviderOrderID.StringVal,
		MerchantOrderID: r.MerchantOrderID.StringVal,
		CreatedAt:       r.CreatedAt,
	}
}
