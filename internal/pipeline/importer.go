package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/dedup"
	"github.com/dvloznov/statement-import/internal/detect"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/infra/gemini"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/resolve"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request is one file to import for one owner.
type Request struct {
	OwnerID  string
	Provider domain.Provider
	Document domain.RawDocument
	Options  Options
}

// Report summarises an import. Parsed = Skipped + Deduplicated + Committed +
// Failed; Failed is non-zero only when a commit stopped part way.
type Report struct {
	ImportID  string          `json:"import_id"`
	File      string          `json:"file"`
	Provider  domain.Provider `json:"provider"`
	AccountID string          `json:"account_id,omitempty"`
	State     commit.State    `json:"state"`
	DryRun    bool            `json:"dry_run,omitempty"`

	Parsed       int `json:"parsed"`
	Skipped      int `json:"skipped"`
	Deduplicated int `json:"deduplicated"`
	Committed    int `json:"committed"`
	Failed       int `json:"failed,omitempty"`

	CommittedIDs       []string        `json:"committed_ids"`
	Delta              decimal.Decimal `json:"delta"`
	CreatedCategoryIDs []string        `json:"created_category_ids,omitempty"`

	// UndoWindow is how long a client should offer Undo.
	UndoWindow time.Duration `json:"-"`
	// Undo runs the compensating action once; nil for dry runs.
	Undo func(ctx context.Context) error `json:"-"`
}

// Settings tune an Importer.
type Settings struct {
	ChunkSize    int
	RowTolerance float64
	Location     *time.Location
	UndoWindow   time.Duration
	// PDFOpener overrides how PDF statements are opened.
	PDFOpener detect.Opener
}

// Importer wires the pipeline steps to a ledger store.
type Importer struct {
	store    ledger.Store
	registry *commit.Registry
	settings Settings

	parse  *Pipeline
	commit *Pipeline
}

// NewImporter builds an importer. registry may be nil when sessions need not
// outlive the call.
func NewImporter(store ledger.Store, resolver *resolve.Resolver, registry *commit.Registry, s Settings) *Importer {
	if s.Location == nil {
		s.Location, _ = time.LoadLocation(DefaultTimezone)
	}
	if s.UndoWindow <= 0 {
		s.UndoWindow = DefaultUndoWindow
	}

	return &Importer{
		store:    store,
		registry: registry,
		settings: s,
		parse: NewPipeline(
			&DetectStep{Opener: s.PDFOpener},
			&ExtractStep{RowTolerance: s.RowTolerance},
			&NormalizeStep{Location: s.Location},
			&ValidateStep{},
			&ResolveStep{Resolver: resolver},
			&DedupStep{Engine: dedup.NewEngine(store)},
		),
		commit: NewPipeline(
			&CommitStep{Store: store, Coordinator: commit.NewCoordinator(store, s.ChunkSize)},
		),
	}
}

// NewFromConfig builds an importer from service configuration, enabling the
// model category hint when a model is configured.
func NewFromConfig(ctx context.Context, cfg *config.Config, store ledger.Store, registry *commit.Registry) (*Importer, error) {
	opts := []resolve.Option{
		resolve.WithAccountFallback(cfg.AccountFallback),
		resolve.WithCategoryFallback(cfg.CategoryFallback),
	}
	if cfg.CategoryModel != "" {
		hint, err := gemini.NewHint(ctx, cfg.CategoryModel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resolve.WithHint(hint))
	}

	return NewImporter(store, resolve.New(store, opts...), registry, Settings{
		ChunkSize:    cfg.ChunkSize,
		RowTolerance: cfg.RowTolerance,
		Location:     cfg.Timezone,
		UndoWindow:   cfg.UndoWindow,
	}), nil
}

// Import runs one file through the pipeline and commits it unless the
// request is a dry run. When a commit stops part way the returned report
// describes the committed part and carries its undo alongside the error.
func (im *Importer) Import(ctx context.Context, req Request) (*Report, error) {
	importID := uuid.NewString()
	ctx = logger.ForImport(ctx, req.OwnerID, importID, req.Document.Filename)
	log := logger.FromContext(ctx)

	session := commit.NewSession(importID, req.OwnerID, req.Document.Filename)
	if im.registry != nil {
		im.registry.Put(session)
	}

	state := &PipelineState{
		OwnerID:  req.OwnerID,
		Provider: req.Provider,
		Document: req.Document,
		Options:  req.Options,
	}

	_ = session.Transition(commit.StateParsing)
	if err := im.parse.Execute(ctx, state); err != nil {
		_ = session.Transition(commit.StateSelecting)
		log.Warn().Err(err).Str("code", domain.Code(err)).Msg("import failed before commit")
		return nil, err
	}
	_ = session.Transition(commit.StateParsed)

	report := &Report{
		ImportID:     importID,
		File:         req.Document.Filename,
		Provider:     req.Provider,
		AccountID:    state.Account.AccountID,
		DryRun:       req.Options.DryRun,
		Parsed:       len(state.Rows),
		Skipped:      state.Skipped,
		Deduplicated: state.Dedup.Duplicates(),
		Committed:    0,
		CommittedIDs: []string{},
		Delta:        decimal.Zero,
		UndoWindow:   im.settings.UndoWindow,
	}

	if req.Options.DryRun {
		_ = session.Transition(commit.StateSelecting)
		report.State = session.State()
		// Would-be commits are the rows that survived deduplication.
		report.Committed = len(state.Dedup.Kept)
		log.Info().Int("would_commit", report.Committed).Msg("dry run complete")
		return report, nil
	}

	_ = session.Transition(commit.StateCommitting)
	if err := im.commit.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("import commit failed")

		var chunkErr *commit.ChunkError
		if errors.As(err, &chunkErr) && chunkErr.Undo != nil && len(chunkErr.Undo.IDs()) > 0 {
			// Part of the file is in the ledger; hand back its undo.
			_ = session.Committed(chunkErr.Undo)
			report.State = session.State()
			report.CommittedIDs = chunkErr.Undo.IDs()
			report.Committed = len(report.CommittedIDs)
			report.Delta = chunkErr.Undo.Delta()
			report.Deduplicated += chunkErr.AlreadyPresent
			report.Failed = chunkErr.Failed
			report.Undo = session.Undo
			return report, err
		}
		_ = session.Transition(commit.StateParsed)
		return nil, err
	}
	if err := session.Committed(state.Commit.Undo); err != nil {
		return nil, err
	}

	res := state.Commit
	report.State = session.State()
	report.Committed = len(res.IDs)
	report.Deduplicated += res.AlreadyPresent
	report.CommittedIDs = res.IDs
	report.Delta = res.Delta
	if state.Categories != nil && report.Committed > 0 {
		report.CreatedCategoryIDs = state.Categories.Created
	}
	report.Undo = session.Undo

	log.Info().
		Int("parsed", report.Parsed).
		Int("skipped", report.Skipped).
		Int("deduplicated", report.Deduplicated).
		Int("committed", report.Committed).
		Str("delta", report.Delta.String()).
		Msg("import committed")

	return report, nil
}
