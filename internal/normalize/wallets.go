package normalize

import (
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
)

type wechat struct{}

func (wechat) variant() {}

func (wechat) Provider() domain.Provider { return domain.ProviderWeChat }

func (wechat) Layout() domain.Layout {
	return domain.Layout{
		Kinds:     []domain.Kind{domain.KindCSV, domain.KindXLSX},
		Encodings: []string{"utf-8", "gb18030"},
		Anchors:   []string{"交易时间"},
		HeaderPrefixes: [][]string{
			{"交易时间", "交易类型", "交易对方", "商品", "收/支", "金额(元)"},
		},
		Columns: []domain.Column{
			{Key: domain.ColDate, Synonyms: []string{"交易时间"}, Required: true},
			{Key: domain.ColType, Synonyms: []string{"交易类型"}},
			{Key: domain.ColCounterparty, Synonyms: []string{"交易对方"}},
			{Key: domain.ColGoods, Synonyms: []string{"商品"}},
			{Key: domain.ColDirection, Synonyms: []string{"收/支"}, Required: true},
			{Key: domain.ColAmount, Synonyms: []string{"金额(元)", "金额"}, Required: true},
			{Key: domain.ColStatus, Synonyms: []string{"当前状态"}},
			{Key: domain.ColOrderID, Synonyms: []string{"交易单号"}},
			{Key: domain.ColMerchantID, Synonyms: []string{"商户单号"}},
			{Key: domain.ColNote, Synonyms: []string{"备注"}},
		},
	}
}

func (wechat) Normalize(row domain.RawRow, loc *time.Location) (*domain.ParsedRecord, bool, error) {
	return walletRecord(row, loc, row.Get(domain.ColGoods), row.Get(domain.ColCounterparty))
}

type alipay struct{}

func (alipay) variant() {}

func (alipay) Provider() domain.Provider { return domain.ProviderAlipay }

func (alipay) Layout() domain.Layout {
	return domain.Layout{
		Kinds:     []domain.Kind{domain.KindCSV},
		Encodings: []string{"gb18030", "gbk", "gb2312", "utf-8"},
		Anchors:   []string{"交易时间", "交易创建时间"},
		HeaderPrefixes: [][]string{
			{"交易时间", "交易分类", "交易对方", "对方账号", "商品说明", "收/支", "金额"},
		},
		Columns: []domain.Column{
			{Key: domain.ColDate, Synonyms: []string{"交易时间"}, Required: true},
			{Key: domain.ColType, Synonyms: []string{"交易分类"}},
			{Key: domain.ColCounterparty, Synonyms: []string{"交易对方"}},
			{Key: domain.ColGoods, Synonyms: []string{"商品说明"}},
			{Key: domain.ColDirection, Synonyms: []string{"收/支"}, Required: true},
			{Key: domain.ColAmount, Synonyms: []string{"金额"}, Required: true},
			{Key: domain.ColStatus, Synonyms: []string{"交易状态"}},
			{Key: domain.ColOrderID, Synonyms: []string{"交易订单号"}},
			{Key: domain.ColMerchantID, Synonyms: []string{"商家订单号"}},
			{Key: domain.ColNote, Synonyms: []string{"备注"}},
		},
	}
}

func (alipay) Normalize(row domain.RawRow, loc *time.Location) (*domain.ParsedRecord, bool, error) {
	return walletRecord(row, loc, row.Get(domain.ColGoods), row.Get(domain.ColCounterparty))
}

// walletRecord handles exports with an explicit income/expense column.
// Anything other than income or expense ("/", "不计收支", empty) is neutral.
func walletRecord(row domain.RawRow, loc *time.Location, descriptions ...string) (*domain.ParsedRecord, bool, error) {
	dir, ok := directionWord(row.Get(domain.ColDirection))
	if !ok {
		return nil, true, nil
	}

	amount, err := parseAmount(domain.ColAmount, row.Get(domain.ColAmount))
	if err != nil {
		return nil, false, err
	}
	at, date, hasTime, err := parseDateTime(domain.ColDate, row.Get(domain.ColDate), loc)
	if err != nil {
		return nil, false, err
	}

	return &domain.ParsedRecord{
		SignedAmount:    signed(dir, amount),
		OccurredAt:      at,
		Date:            date,
		HasTime:         hasTime,
		Description:     firstUseful(descriptions...),
		ProviderOrderID: firstUseful(row.Get(domain.ColOrderID)),
		MerchantOrderID: firstUseful(row.Get(domain.ColMerchantID)),
		TypeHint:        firstUseful(row.Get(domain.ColType)),
	}, false, nil
}
