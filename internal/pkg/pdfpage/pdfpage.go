// Package pdfpage extracts plain text from a PDF page by page.
package pdfpage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// Page carries the extracted text of one PDF page. Number is 1-based.
type Page struct {
	Text   string
	Number int
}

// Extract reads the entire PDF from r and returns its pages in order.
// Pages with no extractable text are returned with empty Text so the page
// count stays faithful to the document.
func Extract(r io.Reader) ([]Page, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes failed: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty pdf input")
	}

	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d failed: %w", i, err)
		}
		pages = append(pages, Page{Text: text, Number: i})
	}
	return pages, nil
}
