package domain

import "strings"

// RawDocument is an uploaded statement before extraction.
// It is discarded once the extractor has produced rows.
type RawDocument struct {
	Filename string
	Kind     Kind
	Data     []byte

	// Password unlocks encrypted PDF statements. Empty means none.
	Password string
}

// PositionedGlyph is a text fragment from a PDF text layer with its baseline position.
type PositionedGlyph struct {
	X    float64
	Y    float64
	// W is the advance width when the text layer reports it, otherwise zero.
	W    float64
	Text string
}

// CenterX is the horizontal midpoint of the glyph.
func (g PositionedGlyph) CenterX() float64 {
	return g.X + g.W/2
}

// Canonical column keys shared by the extractor and the normalizers.
const (
	ColDate         = "date"
	ColTime         = "time"
	ColType         = "type"
	ColCounterparty = "counterparty"
	ColGoods        = "goods"
	ColDirection    = "direction"
	ColAmount       = "amount"
	ColDebit        = "debit"
	ColCredit       = "credit"
	ColBalance      = "balance"
	ColCurrency     = "currency"
	ColSummary      = "summary"
	ColStatus       = "status"
	ColOrderID      = "order_id"
	ColMerchantID   = "merchant_order_id"
	ColNote         = "note"
)

// RawRow is one extracted table row. Cells are addressed by canonical column key.
type RawRow struct {
	// Index is the 1-based source line (CSV/XLSX) or the running row number (PDF).
	Index int
	// Page is the 1-based PDF page, zero for tabular files.
	Page int

	Columns []string
	Cells   []string
}

// Get returns the trimmed cell for a canonical column, or "" when absent.
func (r RawRow) Get(col string) string {
	for i, c := range r.Columns {
		if c == col && i < len(r.Cells) {
			return strings.TrimSpace(r.Cells[i])
		}
	}
	return ""
}

// Has reports whether the row carries the column at all.
func (r RawRow) Has(col string) bool {
	for _, c := range r.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Column declares one canonical column and the header names that denote it.
type Column struct {
	Key      string
	Synonyms []string
	// Required columns must be present in the located header.
	Required bool
}

// Layout describes how a provider's export is laid out.
type Layout struct {
	Kinds []Kind

	// Encodings are tried in order for CSV input.
	Encodings []string
	// Anchors are header words; correctly decoded text contains at least one.
	Anchors []string

	// HeaderPrefixes are the accepted exact ordered header cell lists that
	// start the table (CSV/XLSX). Older and newer export versions may differ.
	HeaderPrefixes [][]string

	// Columns maps header names to canonical keys. For PDF the synonyms are the anchor strings.
	Columns []Column
}

// Supports reports whether the layout accepts the given kind.
func (l Layout) Supports(k Kind) bool {
	for _, kind := range l.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// KeyFor maps a header cell to its canonical column key.
func (l Layout) KeyFor(header string) (string, bool) {
	for _, c := range l.Columns {
		for _, s := range c.Synonyms {
			if s == header {
				return c.Key, true
			}
		}
	}
	return "", false
}
