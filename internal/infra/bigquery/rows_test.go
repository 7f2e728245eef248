package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/shopspring/decimal"
)

func TestTransactionRow_RoundTrip(t *testing.T) {
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	in := &ledger.Transaction{
		AccountID:   "acc-1",
		Amount:      decimal.RequireFromString("-112.43"),
		OccurredAt:  now,
		Date:        civil.DateOf(now),
		Description: "美团外卖",
		Fingerprint: "20240201100000_-112.43",
	}

	row := newTransactionRow("tx-1", "u1", in, now)
	if row.CategoryID.Valid {
		t.Errorf("empty category must be NULL")
	}
	if !row.Fingerprint.Valid {
		t.Errorf("fingerprint must be set")
	}
	if got := row.Amount.FloatString(2); got != "-112.43" {
		t.Errorf("amount = %s, want -112.43", got)
	}

	out := row.toLedger()
	if out.TransactionID != "tx-1" || out.OwnerID != "u1" {
		t.Errorf("ids not carried: %+v", out)
	}
	if !out.Amount.Equal(in.Amount) {
		t.Errorf("amount = %s, want %s", out.Amount, in.Amount)
	}
	if out.Key() != in.Key() {
		t.Errorf("field key changed: %+v vs %+v", out.Key(), in.Key())
	}
}

func TestLegacyRowHasEmptyFingerprint(t *testing.T) {
	row := newTransactionRow("tx-2", "u1", &ledger.Transaction{Amount: decimal.NewFromInt(1)}, time.Now())
	if row.Fingerprint.Valid {
		t.Fatal("empty fingerprint must be stored as NULL")
	}
	if got := row.toLedger().Fingerprint; got != "" {
		t.Errorf("fingerprint = %q, want empty", got)
	}
}

func TestFromRat_Nil(t *testing.T) {
	if !fromRat(nil).IsZero() {
		t.Error("nil NUMERIC should read as zero")
	}
}

func TestTableRef(t *testing.T) {
	if got := tableRef("p", "d", accountsTable); got != "`p.d.accounts`" {
		t.Errorf("tableRef = %s", got)
	}
}

func TestFieldKeyParams(t *testing.T) {
	day := civil.Date{Year: 2023, Month: 1, Day: 2}
	got := fieldKeyParams([]ledger.FieldKey{{Date: day, AbsCents: 500, Description: "x"}})
	if len(got) != 1 || got[0].Date != day || got[0].AbsCents != 500 || got[0].Description != "x" {
		t.Errorf("fieldKeyParams = %+v", got)
	}
}
