package detect

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dslipak/pdf"
	"github.com/dvloznov/statement-import/internal/domain"
)

// PageSource is the subset of a PDF reader the session needs.
type PageSource interface {
	NumPage() int
	PageTexts(i int) ([]pdf.Text, error)
}

// Opener opens PDF bytes. pw yields the password to try and "" when there
// is nothing more to try.
type Opener func(r io.ReaderAt, size int64, pw func() string) (PageSource, error)

// OpenEncrypted is the Opener backed by github.com/dslipak/pdf.
func OpenEncrypted(r io.ReaderAt, size int64, pw func() string) (PageSource, error) {
	reader, err := pdf.NewReaderEncrypted(r, size, pw)
	if err != nil {
		return nil, err
	}
	return pdfReader{reader}, nil
}

type pdfReader struct {
	r *pdf.Reader
}

func (p pdfReader) NumPage() int { return p.r.NumPage() }

func (p pdfReader) PageTexts(i int) (texts []pdf.Text, err error) {
	// The content stream interpreter panics on malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: malformed content: %v", i, rec)
		}
	}()

	page := p.r.Page(i)
	if page.V.IsNull() {
		return nil, nil
	}
	return page.Content().Text, nil
}

// PDFSession is an opened PDF statement ready for glyph extraction.
type PDFSession struct {
	File  string
	pages PageSource
}

// OpenPDF opens a PDF document with OpenEncrypted.
func OpenPDF(doc domain.RawDocument) (*PDFSession, error) {
	return OpenPDFWith(doc, OpenEncrypted)
}

// OpenPDFWith opens a PDF document, trying the document password once.
// A wrong or missing password yields *domain.AuthError.
func OpenPDFWith(doc domain.RawDocument, open Opener) (*PDFSession, error) {
	if open == nil {
		open = OpenEncrypted
	}

	tried := false
	password := func() string {
		if tried {
			return ""
		}
		tried = true
		return doc.Password
	}

	src, err := open(bytes.NewReader(doc.Data), int64(len(doc.Data)), password)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, &domain.AuthError{File: doc.Filename, Err: err}
		}
		return nil, fmt.Errorf("OpenPDF: %s: %w", doc.Filename, err)
	}

	return &PDFSession{File: doc.Filename, pages: src}, nil
}

// NumPages returns the page count.
func (s *PDFSession) NumPages() int {
	return s.pages.NumPage()
}

// Glyphs returns the positioned text fragments of a 1-based page.
func (s *PDFSession) Glyphs(page int) ([]domain.PositionedGlyph, error) {
	texts, err := s.pages.PageTexts(page)
	if err != nil {
		return nil, fmt.Errorf("Glyphs: %s: %w", s.File, err)
	}

	glyphs := make([]domain.PositionedGlyph, 0, len(texts))
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		glyphs = append(glyphs, domain.PositionedGlyph{X: t.X, Y: t.Y, W: t.W, Text: t.S})
	}
	return glyphs, nil
}
