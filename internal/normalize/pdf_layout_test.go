package normalize

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type glyphPages [][]domain.PositionedGlyph

func (p glyphPages) NumPages() int { return len(p) }

func (p glyphPages) Glyphs(page int) ([]domain.PositionedGlyph, error) { return p[page-1], nil }

func pdfRecords(t *testing.T, provider domain.Provider, src glyphPages) *Result {
	t.Helper()
	n, err := For(provider)
	require.NoError(t, err)

	rows, err := extract.PDF(context.Background(), string(provider)+".pdf", provider, n.Layout(), src, 0)
	require.NoError(t, err)

	res, err := All(string(provider)+".pdf", n, rows, shanghai)
	require.NoError(t, err)
	return res
}

func TestCMB_PDFLayout(t *testing.T) {
	src := glyphPages{
		{
			{X: 200, Y: 780, Text: "招商银行交易流水"},
			{X: 50, Y: 700, Text: "记账日期"},
			{X: 130, Y: 700, Text: "货币"},
			{X: 200, Y: 700, Text: "交易金额"},
			{X: 280, Y: 700, Text: "联机余额"},
			{X: 360, Y: 700, Text: "交易摘要"},
			{X: 460, Y: 700, Text: "对手信息"},

			{X: 50, Y: 680, Text: "2024-01-05"},
			{X: 130, Y: 680, Text: "CNY"},
			{X: 198, Y: 680.5, Text: "-12.50"},
			{X: 281, Y: 680, Text: "987.50"},
			{X: 360, Y: 679.5, Text: "快捷支付"},
			{X: 460, Y: 680, Text: "美团"},

			{X: 50, Y: 660, Text: "2024-01-06"},
			{X: 130, Y: 660, Text: "CNY"},
			{X: 202, Y: 660, Text: "1,000.00"},
			{X: 280, Y: 660, Text: "1,987.50"},
			{X: 360, Y: 660, Text: "工资"},
			{X: 459, Y: 660, Text: "某某公司"},

			{X: 250, Y: 40, Text: "第 1 页"},
		},
	}

	res := pdfRecords(t, domain.ProviderCMB, src)
	require.Len(t, res.Records, 2)
	assert.Zero(t, res.Skipped)

	spend := res.Records[0]
	assert.Equal(t, "-12.5", spend.SignedAmount.String())
	assert.Equal(t, domain.DirectionExpense, spend.Direction())
	assert.Equal(t, "快捷支付 美团", spend.Description)
	require.NotNil(t, spend.RunningBalance)
	assert.Equal(t, "987.5", spend.RunningBalance.String())
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 5}, spend.Date)
	assert.Equal(t, domain.ProviderCMB, spend.Source)
	assert.Equal(t, 1, spend.Page)

	salary := res.Records[1]
	assert.Equal(t, "1000", salary.SignedAmount.String())
	assert.Equal(t, "工资 某某公司", salary.Description)
	require.NotNil(t, salary.RunningBalance)
	assert.Equal(t, "1987.5", salary.RunningBalance.String())
}

func TestBOC_PDFLayoutDebitCredit(t *testing.T) {
	src := glyphPages{
		{
			{X: 40, Y: 700, Text: "记账日期"},
			{X: 110, Y: 700, Text: "记账时间"},
			{X: 180, Y: 700, Text: "收入金额"},
			{X: 250, Y: 700, Text: "支出金额"},
			{X: 320, Y: 700, Text: "余额"},
			{X: 390, Y: 700, Text: "交易名称"},
			{X: 480, Y: 700, Text: "对方账户名"},

			{X: 40, Y: 680, Text: "2024-02-01"},
			{X: 110, Y: 680, Text: "09:15:00"},
			{X: 181, Y: 680, Text: "5,000.00"},
			{X: 320, Y: 680, Text: "6,000.00"},
			{X: 390, Y: 680, Text: "工资"},
			{X: 480, Y: 680, Text: "某公司"},

			{X: 40, Y: 660, Text: "2024-02-02"},
			{X: 110, Y: 660, Text: "12:30:05"},
			{X: 249, Y: 660, Text: "35.00"},
			{X: 321, Y: 660, Text: "5,965.00"},
			{X: 390, Y: 660, Text: "消费"},
			{X: 480, Y: 660, Text: "餐厅"},
		},
		{
			{X: 40, Y: 760, Text: "2024-02-03"},
			{X: 110, Y: 760, Text: "08:00:00"},
			{X: 250, Y: 760, Text: "10.00"},
			{X: 320, Y: 760, Text: "5,955.00"},
			{X: 390, Y: 760, Text: "消费"},
			{X: 480, Y: 760, Text: "地铁"},
		},
	}

	res := pdfRecords(t, domain.ProviderBOC, src)
	require.Len(t, res.Records, 3)

	income := res.Records[0]
	assert.Equal(t, "5000", income.SignedAmount.String())
	assert.Equal(t, domain.DirectionIncome, income.Direction())
	assert.True(t, income.HasTime)
	assert.Equal(t, 9, income.OccurredAt.Hour())
	assert.Equal(t, 15, income.OccurredAt.Minute())
	assert.Equal(t, "工资 某公司", income.Description)
	require.NotNil(t, income.RunningBalance)
	assert.Equal(t, "6000", income.RunningBalance.String())

	meal := res.Records[1]
	assert.Equal(t, "-35", meal.SignedAmount.String())
	assert.Equal(t, "消费 餐厅", meal.Description)
	assert.Equal(t, "5965", meal.RunningBalance.String())

	// Page two has no header and reuses the anchors of page one.
	metro := res.Records[2]
	assert.Equal(t, "-10", metro.SignedAmount.String())
	assert.Equal(t, 2, metro.Page)
	assert.Equal(t, 3, metro.Row)
	assert.Equal(t, civil.Date{Year: 2024, Month: 2, Day: 3}, metro.Date)
	assert.Equal(t, "5955", metro.RunningBalance.String())
}
