package extract

import (
	"bytes"
	"fmt"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/xuri/excelize/v2"
)

// CSV extracts rows from decoded CSV text.
func CSV(file string, provider domain.Provider, layout domain.Layout, text string) ([]domain.RawRow, error) {
	lines := splitLines(text)
	records := make([][]string, len(lines))
	for i, line := range lines {
		records[i] = SplitRecord(line)
	}
	return Table(file, provider, layout, records)
}

// XLSX extracts rows from the first sheet of a workbook.
func XLSX(doc domain.RawDocument, provider domain.Provider, layout domain.Layout) ([]domain.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc.Data), excelize.Options{Password: doc.Password})
	if err != nil {
		return nil, fmt.Errorf("XLSX: failed to open %s: %w", doc.Filename, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &domain.HeaderNotFoundError{File: doc.Filename, Provider: provider, Expected: headerLabel(layout)}
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("XLSX: failed to read sheet %q: %w", sheet, err)
	}
	return Table(doc.Filename, provider, layout, records)
}

// Table locates the header row by its exact prefix and returns the data rows
// below it. records[i] is source line i+1. Blank rows and dashed rules before
// the first data row are skipped; a dashed rule after data ends the table,
// since providers append summary footers below it.
func Table(file string, provider domain.Provider, layout domain.Layout, records [][]string) ([]domain.RawRow, error) {
	headerAt := -1
	var columns []string

	for i, rec := range records {
		cells := CleanRecord(rec)
		if matchesHeader(cells, layout.HeaderPrefixes) {
			headerAt = i
			columns = columnKeys(layout, cells)
			break
		}
	}
	if headerAt < 0 {
		return nil, &domain.HeaderNotFoundError{File: file, Provider: provider, Expected: headerLabel(layout)}
	}
	if missing := missingRequired(layout, columns); missing != "" {
		return nil, &domain.HeaderNotFoundError{File: file, Provider: provider, Expected: missing}
	}

	var rows []domain.RawRow
	for i := headerAt + 1; i < len(records); i++ {
		cells := CleanRecord(records[i])
		if isSeparator(cells) {
			if len(rows) > 0 {
				break
			}
			continue
		}
		if isBlank(cells) {
			continue
		}
		rows = append(rows, domain.RawRow{Index: i + 1, Columns: columns, Cells: cells})
	}
	return rows, nil
}

func matchesHeader(cells []string, prefixes [][]string) bool {
	for _, p := range prefixes {
		if hasPrefix(cells, p) {
			return true
		}
	}
	return false
}

func hasPrefix(cells, prefix []string) bool {
	if len(prefix) == 0 || len(cells) < len(prefix) {
		return false
	}
	for i, want := range prefix {
		if cells[i] != CleanCell(want) {
			return false
		}
	}
	return true
}

func columnKeys(layout domain.Layout, header []string) []string {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = keyFor(layout, h)
	}
	return keys
}

// keyFor compares headers after the same cleaning applied to cells.
func keyFor(layout domain.Layout, header string) string {
	for _, c := range layout.Columns {
		for _, s := range c.Synonyms {
			if CleanCell(s) == header {
				return c.Key
			}
		}
	}
	return ""
}

func missingRequired(layout domain.Layout, keys []string) string {
	for _, c := range layout.Columns {
		if !c.Required {
			continue
		}
		found := false
		for _, k := range keys {
			if k == c.Key {
				found = true
				break
			}
		}
		if !found && len(c.Synonyms) > 0 {
			return c.Synonyms[0]
		}
	}
	return ""
}

func headerLabel(layout domain.Layout) string {
	if len(layout.HeaderPrefixes) > 0 && len(layout.HeaderPrefixes[0]) > 0 {
		return layout.HeaderPrefixes[0][0]
	}
	for _, c := range layout.Columns {
		if c.Key == domain.ColDate && len(c.Synonyms) > 0 {
			return c.Synonyms[0]
		}
	}
	return ""
}
