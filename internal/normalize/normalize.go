// Package normalize converts provider-specific raw rows into canonical
// parsed records. Each supported provider is one variant of a closed set.
package normalize

import (
	"fmt"
	"time"

	"github.com/dvloznov/statement-import/internal/domain"
)

// Normalizer is implemented only by the provider variants in this package.
type Normalizer interface {
	Provider() domain.Provider
	Layout() domain.Layout
	// Normalize returns skip=true for neutral rows (neither income nor expense).
	Normalize(row domain.RawRow, loc *time.Location) (rec *domain.ParsedRecord, skip bool, err error)

	variant()
}

var variants = map[domain.Provider]Normalizer{
	domain.ProviderWeChat: wechat{},
	domain.ProviderAlipay: alipay{},
	domain.ProviderCMB:    cmb{},
	domain.ProviderBOC:    boc{},
	domain.ProviderManual: manual{},
}

// For returns the variant for a provider.
func For(p domain.Provider) (Normalizer, error) {
	n, ok := variants[p]
	if !ok {
		return nil, fmt.Errorf("For: unsupported provider %q", p)
	}
	return n, nil
}

// Result is the outcome of normalizing every row of one file.
type Result struct {
	Records []*domain.ParsedRecord
	Skipped int
}

// All normalizes rows in order. The first unusable row aborts with a
// *domain.ValidationError naming the file and row.
func All(file string, n Normalizer, rows []domain.RawRow, loc *time.Location) (*Result, error) {
	if loc == nil {
		loc = time.Local
	}

	res := &Result{Records: make([]*domain.ParsedRecord, 0, len(rows))}
	for _, row := range rows {
		rec, skip, err := n.Normalize(row, loc)
		if err != nil {
			return nil, asValidation(file, row, err)
		}
		if skip {
			res.Skipped++
			continue
		}
		rec.Source = n.Provider()
		rec.Row, rec.Page = row.Index, row.Page
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// fieldError is a row-level failure before file context is attached.
type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string { return e.field + ": " + e.reason }

func invalid(field, format string, args ...any) error {
	return &fieldError{field: field, reason: fmt.Sprintf(format, args...)}
}

func asValidation(file string, row domain.RawRow, err error) error {
	ve := &domain.ValidationError{File: file, Row: row.Index, Page: row.Page, Reason: err.Error()}
	if fe, ok := err.(*fieldError); ok {
		ve.Field, ve.Reason = fe.field, fe.reason
	}
	return ve
}
