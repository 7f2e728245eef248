// Package fingerprint derives deterministic identity keys for parsed records.
//
// Generations are ordered newest first. New records are stored under the
// current generation; older generations stay in the list so rows written by
// earlier releases are still recognised as duplicates.
package fingerprint

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
)

// Generation is one fingerprint strategy. Compute is pure and returns ""
// when the strategy does not apply to the record.
type Generation struct {
	Name    string
	Compute func(rec *domain.ParsedRecord) string
}

// Current is the generation new ledger rows are stored under:
// timestamp digits, signed amount and, when known, the running balance.
var Current = Generation{Name: "v2", Compute: current}

// Legacy is the content-based generation used by earlier releases:
// date, absolute cents, description and any provider order references.
var Legacy = Generation{Name: "v1", Compute: legacy}

// Generations lists every strategy, newest first.
var Generations = []Generation{Current, Legacy}

func current(rec *domain.ParsedRecord) string {
	stamp := rec.OccurredAt.Format("20060102150405")
	if !rec.HasTime {
		stamp = rec.OccurredAt.Format("20060102")
	}

	fp := stamp + "_" + rec.SignedAmount.StringFixed(2)
	if rec.RunningBalance != nil {
		fp += "_" + rec.RunningBalance.StringFixed(2)
	}
	return fp
}

func legacy(rec *domain.ParsedRecord) string {
	fp := fmt.Sprintf("%s_%d_%s", rec.Date.String(), rec.AbsCents(), strings.TrimSpace(rec.Description))
	if rec.ProviderOrderID != "" || rec.MerchantOrderID != "" {
		fp += "_" + rec.ProviderOrderID + "_" + rec.MerchantOrderID
	}
	return fp
}

// Of returns the current-generation fingerprint.
func Of(rec *domain.ParsedRecord) string {
	return Current.Compute(rec)
}

// All returns the fingerprints of every applicable generation, newest first,
// without duplicates.
func All(rec *domain.ParsedRecord) []string {
	out := make([]string, 0, len(Generations))
	seen := make(map[string]bool, len(Generations))
	for _, g := range Generations {
		fp := g.Compute(rec)
		if fp == "" || seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, fp)
	}
	return out
}
