// Package commit writes deduplicated records to the ledger in chunks, applies
// the balance delta once, and keeps the compensating action that undoes it.
package commit

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/shopspring/decimal"
)

// DefaultChunkSize is the number of rows per insert call.
const DefaultChunkSize = 500

// Batch is everything needed to commit one file.
type Batch struct {
	OwnerID   string
	AccountID string
	Rows      []*ledger.Transaction
	// CreatedCategoryIDs are categories auto-created for this batch; undo
	// removes the ones left unreferenced.
	CreatedCategoryIDs []string
}

// Result describes a commit.
type Result struct {
	IDs   []string
	Delta decimal.Decimal
	// AlreadyPresent counts rows the store rejected as duplicates.
	AlreadyPresent int
	Undo           *Undo
}

// ChunkError reports a commit that stopped part way: a chunk failed for a
// reason other than uniqueness, or the balance update failed. Committed
// chunks are not rolled back; Undo reverts them on request.
// Undo.IDs, AlreadyPresent and Failed together account for every row.
type ChunkError struct {
	Chunk           int
	CommittedChunks int
	Undo            *Undo
	// AlreadyPresent counts rows the store rejected as duplicates before
	// the failure.
	AlreadyPresent int
	// Failed counts rows that are not in the ledger: the failing chunk and
	// every chunk after it.
	Failed int
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("commit failed at chunk %d with %d chunks committed: %v", e.Chunk, e.CommittedChunks, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Coordinator commits batches.
type Coordinator struct {
	store     ledger.Store
	balances  BalanceApplier
	chunkSize int
}

// NewCoordinator creates a coordinator. chunkSize <= 0 means DefaultChunkSize.
func NewCoordinator(store ledger.Store, chunkSize int) *Coordinator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Coordinator{store: store, balances: NewBalanceApplier(store), chunkSize: chunkSize}
}

// Commit inserts the batch chunk by chunk, then applies the net signed
// amount of the inserted rows to the account exactly once.
func (c *Coordinator) Commit(ctx context.Context, b Batch) (*Result, error) {
	log := logger.FromContext(ctx).With().Str("account_id", b.AccountID).Int("rows", len(b.Rows)).Logger()

	res := &Result{Delta: decimal.Zero}
	var chunkErr *ChunkError

	chunks := 0
	for start := 0; start < len(b.Rows); start += c.chunkSize {
		end := min(start+c.chunkSize, len(b.Rows))
		chunk := b.Rows[start:end]

		// A failed chunk may still leave rows behind; they count as committed.
		ids, inserted, dupes, err := c.insertChunk(ctx, b.OwnerID, chunk)
		res.IDs = append(res.IDs, ids...)
		res.AlreadyPresent += dupes
		for _, row := range inserted {
			res.Delta = res.Delta.Add(row.Amount)
		}
		if err != nil {
			chunkErr = &ChunkError{Chunk: chunks, CommittedChunks: chunks, Err: &domain.StoreError{Op: "insert transactions", Err: err}}
			log.Error().Err(err).Int("chunk", chunks).Int("left_in_ledger", len(ids)).Msg("chunk insert failed")
			break
		}
		chunks++
	}

	account := func(e *ChunkError) *ChunkError {
		e.AlreadyPresent = res.AlreadyPresent
		e.Failed = len(b.Rows) - len(res.IDs) - res.AlreadyPresent
		return e
	}

	if !res.Delta.IsZero() {
		if err := c.balances.ApplyDelta(ctx, b.OwnerID, b.AccountID, res.Delta); err != nil {
			// Rows are in; the caller can still delete them.
			undo := newUndo(c.store, c.balances, b.OwnerID, b.AccountID, res.IDs, decimal.Zero, b.CreatedCategoryIDs)
			return nil, account(&ChunkError{Chunk: chunks, CommittedChunks: chunks, Undo: undo, Err: &domain.StoreError{Op: "apply balance delta", Err: err}})
		}
	}

	res.Undo = newUndo(c.store, c.balances, b.OwnerID, b.AccountID, res.IDs, res.Delta, b.CreatedCategoryIDs)
	if chunkErr != nil {
		chunkErr.Undo = res.Undo
		return nil, account(chunkErr)
	}

	log.Info().Int("committed", len(res.IDs)).Int("already_present", res.AlreadyPresent).Str("delta", res.Delta.String()).Msg("batch committed")
	return res, nil
}

// insertChunk inserts a chunk in one call. A uniqueness violation retries the
// chunk row by row, counting violating rows as already present. When a row
// then fails for another reason the rows inserted before it are removed; if
// that removal fails too they are returned alongside the error.
func (c *Coordinator) insertChunk(ctx context.Context, ownerID string, chunk []*ledger.Transaction) ([]string, []*ledger.Transaction, int, error) {
	ids, err := c.store.InsertTransactions(ctx, ownerID, chunk)
	if err == nil {
		return ids, chunk, 0, nil
	}
	if !errors.Is(err, ledger.ErrUniqueViolation) {
		return nil, nil, 0, err
	}

	log := logger.FromContext(ctx)
	log.Warn().Int("rows", len(chunk)).Msg("chunk hit uniqueness constraint, inserting row by row")

	var (
		inserted []*ledger.Transaction
		dupes    int
	)
	ids = nil
	for _, row := range chunk {
		one, err := c.store.InsertTransactions(ctx, ownerID, []*ledger.Transaction{row})
		switch {
		case errors.Is(err, ledger.ErrUniqueViolation):
			dupes++
		case err != nil:
			if len(ids) > 0 {
				if derr := c.store.DeleteTransactionsByIDs(ctx, ownerID, ids); derr != nil {
					return ids, inserted, dupes, errors.Join(err, fmt.Errorf("removing partial chunk: %w", derr))
				}
			}
			return nil, nil, dupes, err
		default:
			ids = append(ids, one...)
			inserted = append(inserted, row)
		}
	}
	return ids, inserted, dupes, nil
}
