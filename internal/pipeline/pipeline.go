// Package pipeline runs a statement import end to end: detect, extract,
// normalize, validate, resolve, deduplicate and commit.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/dedup"
	"github.com/dvloznov/statement-import/internal/detect"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/normalize"
	"github.com/dvloznov/statement-import/internal/resolve"
)

// PipelineStep represents a single step of an import.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	OwnerID  string
	Provider domain.Provider
	Document domain.RawDocument
	Options  Options

	Normalizer normalize.Normalizer
	Encoding   string
	Text       string
	PDF        *detect.PDFSession

	Rows    []domain.RawRow
	Records []*domain.ParsedRecord
	Skipped int

	Account    *ledger.Account
	Categories *resolve.Assignment
	Dedup      *dedup.Result
	Commit     *commit.Result
}

// Options adjust a single import.
type Options struct {
	// DryRun stops after deduplication without writing.
	DryRun bool
	// AccountID bypasses account resolution.
	AccountID string
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d cancelled: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
