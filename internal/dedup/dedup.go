// Package dedup drops parsed records that are already in the ledger or that
// repeat an earlier record of the same batch.
package dedup

import (
	"context"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/fingerprint"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
)

// lookupBatch bounds the number of keys sent to the store per query.
const lookupBatch = 500

// Reason explains why a record was dropped.
type Reason string

const (
	ReasonFingerprint Reason = "fingerprint"
	ReasonFields      Reason = "fields"
	ReasonInBatch     Reason = "in_batch"
)

// Candidate is a record that survived deduplication with its stored fingerprint.
type Candidate struct {
	Record      *domain.ParsedRecord
	Fingerprint string
}

// Result partitions a batch.
type Result struct {
	Kept    []Candidate
	Dropped map[Reason]int
}

// Duplicates is the total number of dropped records.
func (r *Result) Duplicates() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// Engine checks a batch against a ledger store.
type Engine struct {
	store ledger.Store
}

// NewEngine builds an engine over store.
func NewEngine(store ledger.Store) *Engine {
	return &Engine{store: store}
}

// Filter keeps the records that match no stored row by any fingerprint
// generation nor by (date, |amount| cents, description), and that do not
// share a current fingerprint with an earlier record of the batch.
func (e *Engine) Filter(ctx context.Context, ownerID string, records []*domain.ParsedRecord) (*Result, error) {
	log := logger.FromContext(ctx)

	known, err := e.knownFingerprints(ctx, ownerID, records)
	if err != nil {
		return nil, err
	}
	knownKeys, err := e.knownFields(ctx, ownerID, records)
	if err != nil {
		return nil, err
	}

	res := &Result{Dropped: map[Reason]int{}}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		current := fingerprint.Of(rec)

		switch {
		case matchesAny(known, fingerprint.All(rec)):
			res.Dropped[ReasonFingerprint]++
		case knownKeys[KeyOf(rec)]:
			res.Dropped[ReasonFields]++
		case seen[current]:
			res.Dropped[ReasonInBatch]++
		default:
			seen[current] = true
			res.Kept = append(res.Kept, Candidate{Record: rec, Fingerprint: current})
		}
	}

	log.Debug().
		Int("records", len(records)).
		Int("kept", len(res.Kept)).
		Int("fingerprint", res.Dropped[ReasonFingerprint]).
		Int("fields", res.Dropped[ReasonFields]).
		Int("in_batch", res.Dropped[ReasonInBatch]).
		Msg("deduplicated batch")

	return res, nil
}

// KeyOf is the content key of a parsed record.
func KeyOf(rec *domain.ParsedRecord) ledger.FieldKey {
	return ledger.FieldKey{Date: rec.Date, AbsCents: rec.AbsCents(), Description: strings.TrimSpace(rec.Description)}
}

func (e *Engine) knownFingerprints(ctx context.Context, ownerID string, records []*domain.ParsedRecord) (map[string]bool, error) {
	var fps []string
	unique := map[string]bool{}
	for _, rec := range records {
		for _, fp := range fingerprint.All(rec) {
			if !unique[fp] {
				unique[fp] = true
				fps = append(fps, fp)
			}
		}
	}

	known := map[string]bool{}
	for start := 0; start < len(fps); start += lookupBatch {
		end := min(start+lookupBatch, len(fps))
		rows, err := e.store.FindTransactionsByFingerprints(ctx, ownerID, fps[start:end])
		if err != nil {
			return nil, &domain.StoreError{Op: "find transactions by fingerprints", Err: err}
		}
		for _, r := range rows {
			known[r.Fingerprint] = true
		}
	}
	return known, nil
}

func (e *Engine) knownFields(ctx context.Context, ownerID string, records []*domain.ParsedRecord) (map[ledger.FieldKey]bool, error) {
	var keys []ledger.FieldKey
	unique := map[ledger.FieldKey]bool{}
	for _, rec := range records {
		k := KeyOf(rec)
		if !unique[k] {
			unique[k] = true
			keys = append(keys, k)
		}
	}

	known := map[ledger.FieldKey]bool{}
	for start := 0; start < len(keys); start += lookupBatch {
		end := min(start+lookupBatch, len(keys))
		rows, err := e.store.FindTransactionsByFields(ctx, ownerID, keys[start:end])
		if err != nil {
			return nil, &domain.StoreError{Op: "find transactions by fields", Err: err}
		}
		for _, r := range rows {
			known[r.Key()] = true
		}
	}
	return known, nil
}

func matchesAny(known map[string]bool, fps []string) bool {
	for _, fp := range fps {
		if known[fp] {
			return true
		}
	}
	return false
}
