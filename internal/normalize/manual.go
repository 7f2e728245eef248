package normalize

import (
	"strings"
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
)

type manual struct{}

func (manual) variant() {}

func (manual) Provider() domain.Provider { return domain.ProviderManual }

func (manual) Layout() domain.Layout {
	return domain.Layout{
		Kinds:     []domain.Kind{domain.KindCSV, domain.KindXLSX},
		Encodings: []string{"utf-8", "gb18030"},
		Anchors:   []string{"日期", "Date"},
		HeaderPrefixes: [][]string{
			{"日期", "类型", "金额"},
			{"Date", "Type", "Amount"},
		},
		Columns: []domain.Column{
			{Key: domain.ColDate, Synonyms: []string{"日期", "Date"}, Required: true},
			{Key: domain.ColDirection, Synonyms: []string{"类型", "Type"}},
			{Key: domain.ColAmount, Synonyms: []string{"金额", "Amount"}, Required: true},
			{Key: domain.ColNote, Synonyms: []string{"备注", "Description"}},
		},
	}
}

// Normalize honours an explicit type and falls back to the amount's sign.
// Transfers are neutral.
func (manual) Normalize(row domain.RawRow, loc *time.Location) (*domain.ParsedRecord, bool, error) {
	kind := strings.ToLower(row.Get(domain.ColDirection))
	if kind == "转账" || kind == "transfer" {
		return nil, true, nil
	}

	amount, err := parseAmount(domain.ColAmount, row.Get(domain.ColAmount))
	if err != nil {
		return nil, false, err
	}
	if dir, ok := directionWord(kind); ok {
		amount = signed(dir, amount)
	} else if kind != "" {
		return nil, false, invalid(domain.ColDirection, "unknown type %q", row.Get(domain.ColDirection))
	}

	at, date, hasTime, err := parseDateTime(domain.ColDate, row.Get(domain.ColDate), loc)
	if err != nil {
		return nil, false, err
	}

	note := row.Get(domain.ColNote)
	return &domain.ParsedRecord{
		SignedAmount: amount,
		OccurredAt:   at,
		Date:         date,
		HasTime:      hasTime,
		Description:  note,
		TypeHint:     note,
	}, false, nil
}
