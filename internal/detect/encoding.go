// Package detect decides how raw statement bytes are read: which text
// encoding a CSV export uses and how an (optionally encrypted) PDF is opened.
package detect

import (
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/statement-import/internal/domain"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncodings is the candidate order for providers exporting legacy Chinese encodings.
var DefaultEncodings = []string{"gb18030", "gbk", "gb2312", "utf-8"}

// DecodeText tries each candidate encoding in order and returns the first
// decoding that contains one of the anchors, together with the encoding name.
// With no anchors the first clean decoding wins.
func DecodeText(file string, data []byte, candidates []string, anchors ...string) (string, string, error) {
	if len(candidates) == 0 {
		candidates = DefaultEncodings
	}

	for _, name := range candidates {
		text, ok := decodeWith(name, data)
		if !ok {
			continue
		}
		if len(anchors) == 0 || containsAny(text, anchors) {
			return text, name, nil
		}
	}

	return "", "", &domain.DecodeError{File: file, Tried: candidates}
}

func decodeWith(name string, data []byte) (string, bool) {
	enc, err := lookup(name)
	if err != nil {
		return "", false
	}

	// A byte order mark overrides the candidate.
	dec := unicode.BOMOverride(enc.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", false
	}
	if enc == unicode.UTF8 && !utf8.Valid(out) {
		return "", false
	}
	return strings.TrimPrefix(string(out), "\ufeff"), true
}

func lookup(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	default:
		// gb2312 resolves to GBK, its superset.
		return htmlindex.Get(name)
	}
}

func containsAny(text string, anchors []string) bool {
	for _, a := range anchors {
		if strings.Contains(text, a) {
			return true
		}
	}
	return false
}
