// Package extract turns decoded statement content into uniform raw rows.
package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SplitRecord splits one CSV line on commas. Double quotes group cells and
// "" inside a quoted cell is a literal quote. It never fails: unbalanced
// quotes run to the end of the line.
func SplitRecord(line string) []string {
	var (
		cells  []string
		cell   strings.Builder
		quoted bool
		runes  = []rune(line)
	)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quoted && r == '"':
			if i+1 < len(runes) && runes[i+1] == '"' {
				cell.WriteRune('"')
				i++
			} else {
				quoted = false
			}
		case quoted:
			cell.WriteRune(r)
		case r == '"':
			quoted = true
		case r == ',':
			cells = append(cells, cell.String())
			cell.Reset()
		default:
			cell.WriteRune(r)
		}
	}
	return append(cells, cell.String())
}

// CleanCell normalizes width variants, strips control characters and trims.
func CleanCell(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '\ufeff' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// CleanRecord applies CleanCell to every cell.
func CleanRecord(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = CleanCell(c)
	}
	return out
}

// isBlank reports whether every cell is empty.
func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// isSeparator matches dashed rule lines such as "-----".
func isSeparator(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	return strings.HasPrefix(cells[0], "---")
}

// splitLines splits on \n, \r\n and lone \r.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
