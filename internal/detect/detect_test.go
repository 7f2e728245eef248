package detect

import (
	"errors"
	"io"
	"testing"

	"github.com/dslipak/pdf"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestDecodeText_GBK(t *testing.T) {
	src := "支付宝交易记录明细查询\n交易号,交易创建时间,金额（元）\n"
	data, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(src))
	require.NoError(t, err)

	text, enc, err := DecodeText("alipay.csv", data, nil, "交易创建时间")
	require.NoError(t, err)
	assert.Equal(t, "gb18030", enc)
	assert.Equal(t, src, text)
}

func TestDecodeText_UTF8WithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("交易时间,交易类型\n")...)

	text, _, err := DecodeText("wechat.csv", data, []string{"utf-8"}, "交易时间")
	require.NoError(t, err)
	assert.Equal(t, "交易时间,交易类型\n", text)
}

func TestDecodeText_FallsThroughToUTF8(t *testing.T) {
	data := []byte("日期,金额\n2024-01-05,12.00\n")

	text, enc, err := DecodeText("m.csv", data, nil, "日期")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", enc)
	assert.Contains(t, text, "2024-01-05")
}

func TestDecodeText_NoCandidateMatches(t *testing.T) {
	_, _, err := DecodeText("bad.csv", []byte("hello,world\n"), []string{"gbk", "utf-8"}, "交易时间", "交易创建时间")

	var decErr *domain.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, "bad.csv", decErr.File)
	assert.Equal(t, []string{"gbk", "utf-8"}, decErr.Tried)
	assert.Equal(t, domain.CodeDecode, domain.Code(err))
}

type stubPages struct {
	texts map[int][]pdf.Text
}

func (s stubPages) NumPage() int { return len(s.texts) }

func (s stubPages) PageTexts(i int) ([]pdf.Text, error) { return s.texts[i], nil }

func TestOpenPDF_WrongPassword(t *testing.T) {
	var offered []string
	opener := func(_ io.ReaderAt, _ int64, pw func() string) (PageSource, error) {
		for {
			next := pw()
			if next == "" {
				break
			}
			offered = append(offered, next)
		}
		return nil, pdf.ErrInvalidPassword
	}

	_, err := OpenPDFWith(domain.RawDocument{Filename: "cmb.pdf", Kind: domain.KindPDF, Password: "wrong"}, opener)

	var authErr *domain.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "cmb.pdf", authErr.File)
	assert.Equal(t, domain.CodeAuth, domain.Code(err))
	assert.Equal(t, []string{"wrong"}, offered, "password is offered exactly once")
}

func TestOpenPDF_OtherErrorIsNotAuth(t *testing.T) {
	opener := func(io.ReaderAt, int64, func() string) (PageSource, error) {
		return nil, errors.New("malformed PDF: missing xref")
	}

	_, err := OpenPDFWith(domain.RawDocument{Filename: "x.pdf"}, opener)
	require.Error(t, err)

	var authErr *domain.AuthError
	assert.False(t, errors.As(err, &authErr))
}

func TestPDFSession_Glyphs(t *testing.T) {
	opener := func(io.ReaderAt, int64, func() string) (PageSource, error) {
		return stubPages{texts: map[int][]pdf.Text{
			1: {
				{X: 50, Y: 700, W: 20, S: "日期"},
				{X: 300, Y: 700, W: 20, S: "金额"},
				{X: 310, Y: 700, S: ""},
			},
		}}, nil
	}

	session, err := OpenPDFWith(domain.RawDocument{Filename: "boc.pdf"}, opener)
	require.NoError(t, err)
	assert.Equal(t, 1, session.NumPages())

	glyphs, err := session.Glyphs(1)
	require.NoError(t, err)
	require.Len(t, glyphs, 2)
	assert.Equal(t, domain.PositionedGlyph{X: 300, Y: 700, W: 20, Text: "金额"}, glyphs[1])
	assert.Equal(t, 310.0, glyphs[1].CenterX())
}
