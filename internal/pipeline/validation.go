package pipeline

import (
	"github.com/dvloznov/statement-import/internal/domain"
)

// ValidateRecords rejects records that normalized cleanly but cannot be
// committed. The first offending record aborts the import.
func ValidateRecords(file string, records []*domain.ParsedRecord) error {
	for _, rec := range records {
		switch {
		case rec.SignedAmount.IsZero():
			return invalidRecord(file, rec, domain.ColAmount, "amount is zero")
		case rec.OccurredAt.IsZero():
			return invalidRecord(file, rec, domain.ColDate, "missing date")
		case rec.SignedAmount.Exponent() < -2 && !rec.SignedAmount.Equal(rec.SignedAmount.Round(2)):
			return invalidRecord(file, rec, domain.ColAmount, "more than two decimal places")
		}
	}
	return nil
}

func invalidRecord(file string, rec *domain.ParsedRecord, field, reason string) error {
	return &domain.ValidationError{File: file, Row: rec.Row, Page: rec.Page, Field: field, Reason: reason}
}
