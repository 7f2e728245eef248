package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/dedup"
	"github.com/dvloznov/statement-import/internal/detect"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/extract"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/normalize"
	"github.com/dvloznov/statement-import/internal/resolve"
)

// Step 1: DetectStep decodes tabular text or opens the PDF.
// A nil Opener means detect.OpenEncrypted.
type DetectStep struct {
	Opener detect.Opener
}

func (s *DetectStep) Execute(ctx context.Context, state *PipelineState) error {
	n, err := normalize.For(state.Provider)
	if err != nil {
		return err
	}
	state.Normalizer = n

	doc := state.Document
	layout := n.Layout()
	if !layout.Supports(doc.Kind) {
		return &domain.UnsupportedError{File: doc.Filename, Provider: state.Provider, Kind: doc.Kind}
	}

	switch doc.Kind {
	case domain.KindCSV:
		text, enc, err := detect.DecodeText(doc.Filename, doc.Data, layout.Encodings, layout.Anchors...)
		if err != nil {
			return err
		}
		state.Text, state.Encoding = text, enc
	case domain.KindPDF:
		session, err := detect.OpenPDFWith(doc, s.Opener)
		if err != nil {
			return err
		}
		state.PDF = session
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("kind", string(doc.Kind)).Str("encoding", state.Encoding).Msg("document detected")
	return nil
}

// Step 2: ExtractStep produces raw rows.
type ExtractStep struct {
	RowTolerance float64
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	doc := state.Document
	layout := state.Normalizer.Layout()

	var (
		rows []domain.RawRow
		err  error
	)
	switch doc.Kind {
	case domain.KindCSV:
		rows, err = extract.CSV(doc.Filename, state.Provider, layout, state.Text)
	case domain.KindXLSX:
		rows, err = extract.XLSX(doc, state.Provider, layout)
	case domain.KindPDF:
		rows, err = extract.PDF(ctx, doc.Filename, state.Provider, layout, state.PDF, s.RowTolerance)
	default:
		err = &domain.UnsupportedError{File: doc.Filename, Provider: state.Provider, Kind: doc.Kind}
	}
	if err != nil {
		return err
	}

	state.Rows = rows
	// Raw bytes are not needed past extraction.
	state.Document.Data = nil
	state.Text = ""
	return nil
}

// Step 3: NormalizeStep converts raw rows into parsed records.
type NormalizeStep struct {
	Location *time.Location
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := normalize.All(state.Document.Filename, state.Normalizer, state.Rows, s.Location)
	if err != nil {
		return err
	}
	state.Records, state.Skipped = res.Records, res.Skipped
	return nil
}

// Step 4: ValidateStep rejects unusable records.
type ValidateStep struct{}

func (s *ValidateStep) Execute(ctx context.Context, state *PipelineState) error {
	return ValidateRecords(state.Document.Filename, state.Records)
}

// Step 5: ResolveStep picks the account and, unless dry-running, the categories.
type ResolveStep struct {
	Resolver *resolve.Resolver
}

func (s *ResolveStep) Execute(ctx context.Context, state *PipelineState) error {
	acc, err := s.Resolver.Account(ctx, state.OwnerID, state.Provider, state.Options.AccountID)
	if err != nil {
		return err
	}
	state.Account = acc

	if state.Options.DryRun {
		return nil
	}
	cats, err := s.Resolver.Categories(ctx, state.OwnerID, state.Records)
	if err != nil {
		return err
	}
	state.Categories = cats
	return nil
}

// Step 6: DedupStep drops records already in the ledger or repeated in the batch.
type DedupStep struct {
	Engine *dedup.Engine
}

func (s *DedupStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Engine.Filter(ctx, state.OwnerID, state.Records)
	if err != nil {
		return err
	}
	state.Dedup = res
	return nil
}

// Step 7: CommitStep writes the surviving records and applies the balance delta.
type CommitStep struct {
	Store       ledger.Store
	Coordinator *commit.Coordinator
}

func (s *CommitStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Dedup == nil || state.Account == nil {
		return fmt.Errorf("CommitStep: import has not been resolved and deduplicated")
	}

	var created []string
	if state.Categories != nil {
		created = state.Categories.Created
	}
	if len(state.Dedup.Kept) == 0 {
		// Nothing references categories created for duplicates only.
		if err := commit.CleanupCategories(ctx, s.Store, state.OwnerID, created); err != nil {
			return err
		}
		created = nil
	}

	res, err := s.Coordinator.Commit(ctx, commit.Batch{
		OwnerID:            state.OwnerID,
		AccountID:          state.Account.AccountID,
		Rows:               toTransactions(state),
		CreatedCategoryIDs: created,
	})
	if err != nil {
		return err
	}
	state.Commit = res
	return nil
}

func toTransactions(state *PipelineState) []*ledger.Transaction {
	categoryOf := make(map[*domain.ParsedRecord]string, len(state.Records))
	if state.Categories != nil {
		for i, rec := range state.Records {
			categoryOf[rec] = state.Categories.CategoryIDs[i]
		}
	}

	rows := make([]*ledger.Transaction, 0, len(state.Dedup.Kept))
	for _, c := range state.Dedup.Kept {
		rec := c.Record
		rows = append(rows, &ledger.Transaction{
			OwnerID:         state.OwnerID,
			AccountID:       state.Account.AccountID,
			CategoryID:      categoryOf[rec],
			Amount:          rec.SignedAmount,
			OccurredAt:      rec.OccurredAt,
			Date:            rec.Date,
			Description:     rec.Description,
			Source:          string(rec.Source),
			Fingerprint:     c.Fingerprint,
			ProviderOrderID: rec.ProviderOrderID,
			MerchantOrderID: rec.MerchantOrderID,
		})
	}
	return rows
}
