// Package extractor pulls plain text out of PDF bytes.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/yungbote/docqa-backend/internal/domain"
)

var (
	ErrNotPDF       = errors.New("not a pdf")
	ErrPageNotFound = errors.New("page does not exist")
)

type Page struct {
	Number    int    `json:"page_number"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
}

type Document struct {
	TotalPages int    `json:"total_pages"`
	Pages      []Page `json:"pages"`
	Text       string `json:"total_text"`
	TotalChars int    `json:"total_chars"`
}

// Extractor is what the ingestion and area services depend on.
type Extractor interface {
	Extract(data []byte) (*Document, error)
	AreaText(data []byte, page int, coords domain.Coordinates) (string, error)
}

type PDF struct{}

func New() PDF { return PDF{} }

// Extract reads every page. Pages that fail to decode contribute empty text
// so page numbering stays aligned with the file.
func (PDF) Extract(data []byte) (*Document, error) {
	r, err := open(data)
	if err != nil {
		return nil, err
	}
	n := r.NumPage()
	pages := make([]Page, 0, n)
	texts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		text := pageText(r, i)
		pages = append(pages, Page{Number: i, Text: text, CharCount: len(text)})
		texts = append(texts, text)
	}
	total := strings.Join(texts, "\n\n")
	return &Document{
		TotalPages: n,
		Pages:      pages,
		Text:       total,
		TotalChars: len(total),
	}, nil
}

// AreaText approximates the text inside coords on page (1-based). See
// AreaFromPageText for the heuristic.
func (PDF) AreaText(data []byte, page int, coords domain.Coordinates) (string, error) {
	r, err := open(data)
	if err != nil {
		return "", err
	}
	if page < 1 || page > r.NumPage() {
		return "", fmt.Errorf("page %d of %d: %w", page, r.NumPage(), ErrPageNotFound)
	}
	return AreaFromPageText(pageText(r, page), coords), nil
}

func open(data []byte) (*pdf.Reader, error) {
	if !isPDFHeader(data) {
		return nil, ErrNotPDF
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}
	return r, nil
}

func pageText(r *pdf.Reader, i int) (text string) {
	// The reader panics on some malformed content streams.
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	p := r.Page(i)
	if p.V.IsNull() {
		return ""
	}
	s, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return cleanText(s)
}
