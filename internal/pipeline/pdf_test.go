package pipeline_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dslipak/pdf"
	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/detect"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/infra/memory"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/pipeline"
	"github.com/dvloznov/statement-import/internal/resolve"
	"github.com/shopspring/decimal"
)

type textPages map[int][]pdf.Text

func (p textPages) NumPage() int { return len(p) }

func (p textPages) PageTexts(i int) ([]pdf.Text, error) { return p[i], nil }

func pdfRequest(provider domain.Provider, name, password string) pipeline.Request {
	return pipeline.Request{
		OwnerID:  owner,
		Provider: provider,
		Document: domain.RawDocument{Filename: name, Kind: domain.KindPDF, Data: []byte("%PDF-1.7"), Password: password},
	}
}

func newImporterWith(t *testing.T, store ledger.Store, s pipeline.Settings) *pipeline.Importer {
	t.Helper()
	if s.Location == nil {
		s.Location = time.FixedZone("CST", 8*3600)
	}
	return pipeline.NewImporter(store, resolve.New(store), commit.NewRegistry(time.Minute), s)
}

func TestImport_PDFWrongPasswordIsAuthError(t *testing.T) {
	store := memory.NewStore()
	acc := store.AddAccount(ledger.Account{OwnerID: owner, Name: "招商银行", Type: ledger.AccountBank, Balance: decimal.RequireFromString("1000")})

	var offered []string
	im := newImporterWith(t, store, pipeline.Settings{
		PDFOpener: func(_ io.ReaderAt, _ int64, pw func() string) (detect.PageSource, error) {
			offered = append(offered, pw())
			return nil, pdf.ErrInvalidPassword
		},
	})

	_, err := im.Import(context.Background(), pdfRequest(domain.ProviderCMB, "cmb.pdf", "123456"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := domain.Code(err); got != domain.CodeAuth {
		t.Errorf("Code() = %s, want %s (err: %v)", got, domain.CodeAuth, err)
	}
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("err = %v, want AuthError", err)
	}
	if len(offered) != 1 || offered[0] != "123456" {
		t.Errorf("offered passwords = %v, want [123456]", offered)
	}
	if got := balanceOf(t, store, acc); got != "1000.00" {
		t.Errorf("balance = %s, want unchanged", got)
	}
}

func TestImport_CMBPDF(t *testing.T) {
	store := memory.NewStore()
	acc := store.AddAccount(ledger.Account{OwnerID: owner, Name: "招商银行", Type: ledger.AccountBank, Balance: decimal.RequireFromString("1000")})

	pages := textPages{
		1: {
			{X: 50, Y: 700, S: "记账日期"},
			{X: 130, Y: 700, S: "货币"},
			{X: 200, Y: 700, S: "交易金额"},
			{X: 280, Y: 700, S: "联机余额"},
			{X: 360, Y: 700, S: "交易摘要"},
			{X: 460, Y: 700, S: "对手信息"},
			{X: 50, Y: 680, S: "2024-01-05"},
			{X: 130, Y: 680, S: "CNY"},
			{X: 200, Y: 680, S: "-12.50"},
			{X: 280, Y: 680, S: "987.50"},
			{X: 360, Y: 680, S: "快捷支付"},
			{X: 460, Y: 680, S: "美团"},
		},
		2: {
			{X: 50, Y: 760, S: "2024-01-06"},
			{X: 130, Y: 760, S: "CNY"},
			{X: 200, Y: 760, S: "100.00"},
			{X: 280, Y: 760, S: "1,087.50"},
			{X: 360, Y: 760, S: "转入"},
			{X: 460, Y: 760, S: "张三"},
		},
	}
	im := newImporterWith(t, store, pipeline.Settings{
		PDFOpener: func(io.ReaderAt, int64, func() string) (detect.PageSource, error) { return pages, nil },
	})

	report, err := im.Import(context.Background(), pdfRequest(domain.ProviderCMB, "cmb.pdf", ""))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Parsed != 2 || report.Committed != 2 {
		t.Errorf("report = %+v, want parsed 2 committed 2", report)
	}
	if report.AccountID != acc {
		t.Errorf("account = %s, want %s", report.AccountID, acc)
	}
	if got := balanceOf(t, store, acc); got != "1087.50" {
		t.Errorf("balance = %s, want 1087.50", got)
	}
}

// insertOutage fails the nth InsertTransactions call with a transport error.
type insertOutage struct {
	*memory.Store
	calls  int
	failOn int
}

func (s *insertOutage) InsertTransactions(ctx context.Context, ownerID string, rows []*ledger.Transaction) ([]string, error) {
	s.calls++
	if s.calls == s.failOn {
		return nil, errors.New("connection reset")
	}
	return s.Store.InsertTransactions(ctx, ownerID, rows)
}

func TestImport_PartialCommitReportAddsUp(t *testing.T) {
	store := &insertOutage{Store: memory.NewStore(), failOn: 2}
	acc := store.AddAccount(ledger.Account{OwnerID: owner, Name: "Cash", Type: ledger.AccountCash, Balance: decimal.RequireFromString("1000")})
	im := newImporterWith(t, store, pipeline.Settings{ChunkSize: 1})
	ctx := context.Background()

	report, err := im.Import(ctx, csvRequest(domain.ProviderManual, "manual.csv", manualCSV))
	if err == nil {
		t.Fatal("expected commit error")
	}
	var chunkErr *commit.ChunkError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("err = %v, want ChunkError", err)
	}
	if report == nil {
		t.Fatal("expected a report for the committed part")
	}

	if report.Parsed != 3 || report.Skipped != 1 || report.Committed != 1 || report.Failed != 1 || report.Deduplicated != 0 {
		t.Errorf("report = %+v, want parsed 3 skipped 1 committed 1 failed 1", report)
	}
	if sum := report.Skipped + report.Deduplicated + report.Committed + report.Failed; sum != report.Parsed {
		t.Errorf("skipped+deduplicated+committed+failed = %d, want %d", sum, report.Parsed)
	}

	want := decimal.RequireFromString("1000").Add(report.Delta).StringFixed(2)
	if report.Delta.IsZero() {
		t.Error("delta of the committed row is zero")
	}
	if got := balanceOf(t, store, acc); got != want {
		t.Errorf("balance = %s, want %s", got, want)
	}

	if err := report.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got := balanceOf(t, store, acc); got != "1000.00" {
		t.Errorf("balance after undo = %s, want 1000.00", got)
	}
	if n := len(store.Transactions(owner)); n != 0 {
		t.Errorf("transactions after undo = %d, want 0", n)
	}
}
