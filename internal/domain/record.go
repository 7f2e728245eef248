package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ParsedRecord is the canonical pre-ledger record produced by a normalizer.
// SignedAmount is positive for income and negative for expense; it is never zero
// for a record that reaches commit.
type ParsedRecord struct {
	SignedAmount decimal.Decimal
	OccurredAt   time.Time
	// Date is the calendar date shown to the user. It survives even when
	// OccurredAt falls back to midnight.
	Date    civil.Date
	HasTime bool

	Description     string
	ProviderOrderID string
	MerchantOrderID string

	RunningBalance *decimal.Decimal

	// TypeHint carries the provider's own transaction-type text for category matching.
	TypeHint string

	Source Provider

	// Row and Page locate the source row for error context.
	Row  int
	Page int
}

// Direction derives the direction from the sign of the amount.
func (r *ParsedRecord) Direction() Direction {
	switch r.SignedAmount.Sign() {
	case 1:
		return DirectionIncome
	case -1:
		return DirectionExpense
	default:
		return DirectionNeutral
	}
}

// AbsCents returns |amount| in cents, rounded half away from zero.
func (r *ParsedRecord) AbsCents() int64 {
	return r.SignedAmount.Abs().Shift(2).Round(0).IntPart()
}
