package normalize

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shanghai = time.FixedZone("CST", 8*3600)

func row(index int, kv ...string) domain.RawRow {
	r := domain.RawRow{Index: index}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Columns = append(r.Columns, kv[i])
		r.Cells = append(r.Cells, kv[i+1])
	}
	return r
}

func TestFor(t *testing.T) {
	for _, p := range domain.Providers {
		n, err := For(p)
		require.NoError(t, err)
		assert.Equal(t, p, n.Provider())
		assert.NotEmpty(t, n.Layout().Kinds)
	}

	_, err := For("icbc")
	assert.Error(t, err)
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		in       string
		wantDate civil.Date
		wantTime bool
		wantHour int
	}{
		{"2024-01-05 12:30:00", civil.Date{Year: 2024, Month: 1, Day: 5}, true, 12},
		{"2024/01/05 08:15", civil.Date{Year: 2024, Month: 1, Day: 5}, true, 8},
		{"2024/1/5", civil.Date{Year: 2024, Month: 1, Day: 5}, false, 0},
		{"20240105", civil.Date{Year: 2024, Month: 1, Day: 5}, false, 0},
		{"2024-01-05", civil.Date{Year: 2024, Month: 1, Day: 5}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			at, date, hasTime, err := parseDateTime("date", tt.in, shanghai)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDate, date)
			assert.Equal(t, tt.wantTime, hasTime)
			assert.Equal(t, tt.wantHour, at.Hour())
			assert.Equal(t, shanghai, at.Location())
		})
	}

	_, _, _, err := parseDateTime("date", "05.01.24x", shanghai)
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"¥12.34", "12.34"},
		{"1,234.50", "1234.5"},
		{"-8.00", "-8"},
		{"+100", "100"},
		{"(5.00)", "-5"},
		{"12.00元", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount("amount", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := parseAmount("amount", "abc")
	assert.Error(t, err)
}

func TestWeChat(t *testing.T) {
	n, _ := For(domain.ProviderWeChat)

	rec, skip, err := n.Normalize(row(18,
		domain.ColDate, "2024-01-05 12:30:00",
		domain.ColType, "商户消费",
		domain.ColCounterparty, "美团",
		domain.ColGoods, "/",
		domain.ColDirection, "支出",
		domain.ColAmount, "¥35.50",
		domain.ColOrderID, "4200001",
		domain.ColMerchantID, "/",
	), shanghai)
	require.NoError(t, err)
	require.False(t, skip)
	assert.Equal(t, "-35.5", rec.SignedAmount.String())
	assert.Equal(t, "美团", rec.Description)
	assert.Equal(t, "4200001", rec.ProviderOrderID)
	assert.Equal(t, "", rec.MerchantOrderID)
	assert.Equal(t, "商户消费", rec.TypeHint)
	assert.True(t, rec.HasTime)

	_, skip, err = n.Normalize(row(19, domain.ColDirection, "/", domain.ColAmount, "¥1.00"), shanghai)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestAlipay_NeutralAndIncome(t *testing.T) {
	n, _ := For(domain.ProviderAlipay)

	_, skip, err := n.Normalize(row(3, domain.ColDirection, "不计收支", domain.ColAmount, "10.00"), shanghai)
	require.NoError(t, err)
	assert.True(t, skip)

	rec, skip, err := n.Normalize(row(4,
		domain.ColDate, "2024/02/01 09:00:00",
		domain.ColGoods, "退款",
		domain.ColDirection, "收入",
		domain.ColAmount, "20.00",
	), shanghai)
	require.NoError(t, err)
	require.False(t, skip)
	assert.Equal(t, domain.DirectionIncome, rec.Direction())
	assert.Equal(t, "退款", rec.Description)
}

func TestCMB_SignedAmountAndBalance(t *testing.T) {
	n, _ := For(domain.ProviderCMB)

	rec, _, err := n.Normalize(row(1,
		domain.ColDate, "2024-01-05",
		domain.ColAmount, "-1,200.00",
		domain.ColBalance, "8,800.00",
		domain.ColSummary, "快捷支付",
		domain.ColCounterparty, "京东",
	), shanghai)
	require.NoError(t, err)
	assert.Equal(t, "-1200", rec.SignedAmount.String())
	require.NotNil(t, rec.RunningBalance)
	assert.Equal(t, "8800", rec.RunningBalance.String())
	assert.Equal(t, "快捷支付 京东", rec.Description)
	assert.False(t, rec.HasTime)
	assert.Equal(t, 0, rec.OccurredAt.Hour())
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 5}, rec.Date)
}

func TestBOC_DebitCreditFallback(t *testing.T) {
	n, _ := For(domain.ProviderBOC)

	tests := []struct {
		name string
		row  domain.RawRow
		want string
	}{
		{"credit", row(1, domain.ColDate, "2024-01-05", domain.ColTime, "10:00:00", domain.ColCredit, "500.00", domain.ColDebit, ""), "500"},
		{"debit", row(2, domain.ColDate, "2024-01-05", domain.ColCredit, "-", domain.ColDebit, "30.00"), "-30"},
		{"amount sign", row(3, domain.ColDate, "2024-01-05", domain.ColAmount, "-7.50"), "-7.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, skip, err := n.Normalize(tt.row, shanghai)
			require.NoError(t, err)
			require.False(t, skip)
			assert.Equal(t, tt.want, rec.SignedAmount.String())
		})
	}
}

func TestManual(t *testing.T) {
	n, _ := For(domain.ProviderManual)

	rec, _, err := n.Normalize(row(2, domain.ColDate, "2024-01-05", domain.ColDirection, "income", domain.ColAmount, "100", domain.ColNote, "salary"), shanghai)
	require.NoError(t, err)
	assert.Equal(t, "100", rec.SignedAmount.String())

	rec, _, err = n.Normalize(row(3, domain.ColDate, "2024-01-05", domain.ColDirection, "", domain.ColAmount, "-50"), shanghai)
	require.NoError(t, err)
	assert.Equal(t, "-50", rec.SignedAmount.String())

	_, skip, err := n.Normalize(row(4, domain.ColDirection, "转账", domain.ColAmount, "10"), shanghai)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestAll_CountsSkippedAndWrapsErrors(t *testing.T) {
	n, _ := For(domain.ProviderManual)
	rows := []domain.RawRow{
		row(2, domain.ColDate, "2024-01-05", domain.ColDirection, "支出", domain.ColAmount, "50"),
		row(3, domain.ColDate, "2024-01-05", domain.ColDirection, "转账", domain.ColAmount, "10"),
		row(4, domain.ColDate, "2024-01-06", domain.ColDirection, "收入", domain.ColAmount, "100"),
	}

	res, err := All("m.csv", n, rows, shanghai)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, domain.ProviderManual, res.Records[0].Source)
	assert.Equal(t, 4, res.Records[1].Row)

	rows = append(rows, row(5, domain.ColDate, "yesterday", domain.ColDirection, "支出", domain.ColAmount, "1"))
	_, err = All("m.csv", n, rows, shanghai)

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "m.csv", ve.File)
	assert.Equal(t, 5, ve.Row)
	assert.Equal(t, domain.ColDate, ve.Field)
}
