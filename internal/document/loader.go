// Package document turns uploaded PDF bytes into overlapping text chunks
// ready for embedding. Loading and splitting are pure transforms with no
// stored state.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the extracted text of one PDF page.
type Page struct {
	Text   string
	Number int
}

// LoadPDF extracts per-page plain text from raw PDF bytes. Pages that yield
// no text are skipped.
func LoadPDF(data []byte) ([]Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting text from page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Text: text, Number: i})
	}
	return pages, nil
}
