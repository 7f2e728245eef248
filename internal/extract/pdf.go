package extract

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultRowTolerance is the vertical distance within which glyphs share a row.
const DefaultRowTolerance = 2.8

// fragmentGap is the largest horizontal gap between fragments of one word.
const fragmentGap = 1.5

var dateLike = regexp.MustCompile(`^(\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{8})`)

// GlyphSource yields positioned glyphs per 1-based page.
type GlyphSource interface {
	NumPages() int
	Glyphs(page int) ([]domain.PositionedGlyph, error)
}

// Anchor is a located header cell and the column it denotes.
type Anchor struct {
	Key string
	X   float64
}

// Row is a cluster of glyphs sharing a baseline.
type Row struct {
	Y      float64
	Glyphs []domain.PositionedGlyph
}

// MergeFragments joins fragments that sit on the same baseline with no
// visible gap between them. Text layers often emit one glyph per character.
func MergeFragments(glyphs []domain.PositionedGlyph) []domain.PositionedGlyph {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]domain.PositionedGlyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > 0.5 {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	merged := []domain.PositionedGlyph{sorted[0]}
	for _, g := range sorted[1:] {
		last := &merged[len(merged)-1]
		sameLine := math.Abs(last.Y-g.Y) <= 0.5
		gap := g.X - (last.X + last.W)
		if sameLine && last.W > 0 && gap <= fragmentGap && strings.TrimSpace(g.Text) != "" {
			last.Text += g.Text
			last.W = g.X + g.W - last.X
			continue
		}
		merged = append(merged, g)
	}
	return merged
}

// ClusterRows groups glyphs whose y lies within tolerance of the row's first
// glyph. Rows are returned top to bottom (descending y); glyphs within a row
// are ordered left to right.
func ClusterRows(glyphs []domain.PositionedGlyph, tolerance float64) []Row {
	sorted := make([]domain.PositionedGlyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows []Row
	for _, g := range sorted {
		if n := len(rows); n > 0 && rows[n-1].Y-g.Y <= tolerance {
			rows[n-1].Glyphs = append(rows[n-1].Glyphs, g)
			continue
		}
		rows = append(rows, Row{Y: g.Y, Glyphs: []domain.PositionedGlyph{g}})
	}

	for i := range rows {
		sort.SliceStable(rows[i].Glyphs, func(a, b int) bool {
			return rows[i].Glyphs[a].X < rows[i].Glyphs[b].X
		})
	}
	return rows
}

// AssignColumns places every glyph in the column whose anchor is nearest on
// the x axis. Several glyphs in one cell are space-joined in x order. The
// result is aligned with anchors.
func AssignColumns(row Row, anchors []Anchor) []string {
	cells := make([][]string, len(anchors))
	for _, g := range row.Glyphs {
		best, bestDist := -1, math.Inf(1)
		for i, a := range anchors {
			if d := math.Abs(g.CenterX() - a.X); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			cells[best] = append(cells[best], strings.TrimSpace(g.Text))
		}
	}

	out := make([]string, len(anchors))
	for i, parts := range cells {
		out[i] = strings.TrimSpace(strings.Join(parts, " "))
	}
	return out
}

// LocateAnchors finds the header band on a page by its date anchor and
// returns the x position of every column anchor found in that band.
func LocateAnchors(words []domain.PositionedGlyph, layout domain.Layout, tolerance float64) ([]Anchor, float64, bool) {
	dateSyn := synonyms(layout, domain.ColDate)

	headerY, found := 0.0, false
	for _, w := range words {
		if containsText(dateSyn, w.Text) && (!found || w.Y > headerY) {
			headerY, found = w.Y, true
		}
	}
	if !found {
		return nil, 0, false
	}

	var anchors []Anchor
	for _, col := range layout.Columns {
		for _, w := range words {
			if math.Abs(w.Y-headerY) <= tolerance && containsText(col.Synonyms, w.Text) {
				anchors = append(anchors, Anchor{Key: col.Key, X: w.CenterX()})
				break
			}
		}
	}
	sort.SliceStable(anchors, func(i, j int) bool { return anchors[i].X < anchors[j].X })
	return anchors, headerY, true
}

// PageRows reconstructs the data rows of one page using the given anchors.
// Rows whose date column is not date-like are dropped.
func PageRows(words []domain.PositionedGlyph, anchors []Anchor, tolerance float64) [][]string {
	dateAt := 0
	for i, a := range anchors {
		if a.Key == domain.ColDate {
			dateAt = i
			break
		}
	}

	var out [][]string
	for _, row := range ClusterRows(words, tolerance) {
		cells := AssignColumns(row, anchors)
		if len(cells) <= dateAt || !dateLike.MatchString(cells[dateAt]) {
			continue
		}
		out = append(out, cells)
	}
	return out
}

type pageResult struct {
	anchors []Anchor
	words   []domain.PositionedGlyph
	headerY float64
	ok      bool
	rows    [][]string
}

// PDF reconstructs the statement table from a glyph source. Pages are laid
// out concurrently; pages without a header band reuse the nearest earlier
// header (or the first later one). No header anywhere is HeaderNotFoundError.
func PDF(ctx context.Context, file string, provider domain.Provider, layout domain.Layout, src GlyphSource, tolerance float64) ([]domain.RawRow, error) {
	log := logger.FromContext(ctx)
	if tolerance <= 0 {
		tolerance = DefaultRowTolerance
	}

	n := src.NumPages()
	pages := make([]pageResult, n)
	for i := 0; i < n; i++ {
		glyphs, err := src.Glyphs(i + 1)
		if err != nil {
			return nil, fmt.Errorf("PDF: %w", err)
		}
		pages[i].words = MergeFragments(glyphs)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			anchors, headerY, ok := LocateAnchors(pages[i].words, layout, tolerance)
			pages[i].anchors, pages[i].headerY, pages[i].ok = anchors, headerY, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("PDF: locating header: %w", err)
	}

	resolved := resolveAnchors(pages)
	if resolved == nil {
		return nil, &domain.HeaderNotFoundError{File: file, Provider: provider, Expected: headerLabel(layout)}
	}
	if missing := missingRequired(layout, anchorKeys(firstFound(pages))); missing != "" {
		return nil, &domain.HeaderNotFoundError{File: file, Provider: provider, Expected: missing}
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			words := pages[i].words
			if pages[i].ok {
				words = belowHeader(words, pages[i].headerY, tolerance)
			}
			pages[i].rows = PageRows(words, resolved[i], tolerance)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("PDF: reconstructing rows: %w", err)
	}

	var rows []domain.RawRow
	index := 0
	for i, p := range pages {
		columns := anchorKeys(resolved[i])
		for _, cells := range p.rows {
			index++
			rows = append(rows, domain.RawRow{Index: index, Page: i + 1, Columns: columns, Cells: cells})
		}
	}

	log.Debug().Str("file", file).Int("pages", n).Int("rows", len(rows)).Msg("reconstructed PDF table")
	return rows, nil
}

// resolveAnchors returns per-page anchors, or nil when no page has a header.
func resolveAnchors(pages []pageResult) [][]Anchor {
	first := firstFound(pages)
	if first == nil {
		return nil
	}

	out := make([][]Anchor, len(pages))
	current := first
	for i, p := range pages {
		if p.ok {
			current = p.anchors
		}
		out[i] = current
	}
	return out
}

func firstFound(pages []pageResult) []Anchor {
	for _, p := range pages {
		if p.ok {
			return p.anchors
		}
	}
	return nil
}

func belowHeader(words []domain.PositionedGlyph, headerY, tolerance float64) []domain.PositionedGlyph {
	out := make([]domain.PositionedGlyph, 0, len(words))
	for _, w := range words {
		if w.Y < headerY-tolerance {
			out = append(out, w)
		}
	}
	return out
}

func anchorKeys(anchors []Anchor) []string {
	keys := make([]string, len(anchors))
	for i, a := range anchors {
		keys[i] = a.Key
	}
	return keys
}

func synonyms(layout domain.Layout, key string) []string {
	for _, c := range layout.Columns {
		if c.Key == key {
			return c.Synonyms
		}
	}
	return nil
}

func containsText(candidates []string, text string) bool {
	text = CleanCell(text)
	for _, c := range candidates {
		if CleanCell(c) == text {
			return true
		}
	}
	return false
}
