package normalize

import (
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	dateAnchors         = []string{"记账日期", "交易日期", "日期"}
	summaryAnchors      = []string{"交易摘要", "摘要", "交易名称"}
	counterpartyAnchors = []string{"对手信息", "对方户名", "对方账户名"}
)

type cmb struct{}

func (cmb) variant() {}

func (cmb) Provider() domain.Provider { return domain.ProviderCMB }

func (cmb) Layout() domain.Layout {
	return domain.Layout{
		Kinds: []domain.Kind{domain.KindPDF},
		Columns: []domain.Column{
			{Key: domain.ColDate, Synonyms: dateAnchors, Required: true},
			{Key: domain.ColCurrency, Synonyms: []string{"货币", "币种"}},
			{Key: domain.ColAmount, Synonyms: []string{"交易金额", "金额"}, Required: true},
			{Key: domain.ColBalance, Synonyms: []string{"联机余额", "余额"}},
			{Key: domain.ColSummary, Synonyms: summaryAnchors},
			{Key: domain.ColCounterparty, Synonyms: counterpartyAnchors},
		},
	}
}

// Normalize takes the sign from the combined amount column.
func (cmb) Normalize(row domain.RawRow, loc *time.Location) (*domain.ParsedRecord, bool, error) {
	amount, err := parseAmount(domain.ColAmount, row.Get(domain.ColAmount))
	if err != nil {
		return nil, false, err
	}
	return bankRecord(row, loc, amount)
}

type boc struct{}

func (boc) variant() {}

func (boc) Provider() domain.Provider { return domain.ProviderBOC }

func (boc) Layout() domain.Layout {
	return domain.Layout{
		Kinds: []domain.Kind{domain.KindPDF},
		Columns: []domain.Column{
			{Key: domain.ColDate, Synonyms: dateAnchors, Required: true},
			{Key: domain.ColTime, Synonyms: []string{"记账时间", "交易时间"}},
			{Key: domain.ColDebit, Synonyms: []string{"支出金额", "借方发生额"}},
			{Key: domain.ColCredit, Synonyms: []string{"收入金额", "贷方发生额"}},
			{Key: domain.ColAmount, Synonyms: []string{"金额", "交易金额"}},
			{Key: domain.ColBalance, Synonyms: []string{"余额", "账户余额"}},
			{Key: domain.ColSummary, Synonyms: summaryAnchors},
			{Key: domain.ColCounterparty, Synonyms: counterpartyAnchors},
		},
	}
}

// Normalize prefers the credit column, then debit, then the sign of the amount.
func (boc) Normalize(row domain.RawRow, loc *time.Location) (*domain.ParsedRecord, bool, error) {
	credit, hasCredit, err := optionalAmount(domain.ColCredit, row.Get(domain.ColCredit))
	if err != nil {
		return nil, false, err
	}
	debit, hasDebit, err := optionalAmount(domain.ColDebit, row.Get(domain.ColDebit))
	if err != nil {
		return nil, false, err
	}

	switch {
	case hasCredit && !credit.IsZero():
		return bankRecord(row, loc, signed(domain.DirectionIncome, credit))
	case hasDebit && !debit.IsZero():
		return bankRecord(row, loc, signed(domain.DirectionExpense, debit))
	}

	amount, ok, err := optionalAmount(domain.ColAmount, row.Get(domain.ColAmount))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, invalid(domain.ColAmount, "no debit, credit or amount")
	}
	return bankRecord(row, loc, amount)
}

func bankRecord(row domain.RawRow, loc *time.Location, amount decimal.Decimal) (*domain.ParsedRecord, bool, error) {
	raw := row.Get(domain.ColDate)
	if t := row.Get(domain.ColTime); t != "" {
		raw += " " + t
	}
	at, date, hasTime, err := parseDateTime(domain.ColDate, raw, loc)
	if err != nil {
		return nil, false, err
	}
	balance, err := balancePtr(domain.ColBalance, row.Get(domain.ColBalance))
	if err != nil {
		return nil, false, err
	}

	summary := row.Get(domain.ColSummary)
	return &domain.ParsedRecord{
		SignedAmount:   amount,
		OccurredAt:     at,
		Date:           date,
		HasTime:        hasTime,
		Description:    joinUseful(summary, row.Get(domain.ColCounterparty)),
		RunningBalance: balance,
		TypeHint:       firstUseful(summary),
	}, false, nil
}
