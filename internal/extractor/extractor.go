package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/sitemapper/internal/model"
)

var (
	// ErrNotPDF is returned when a URL or content type announces a PDF but
	// the body is not one.
	ErrNotPDF = errors.New("body is not a PDF document")

	// ErrDecode is returned when the body cannot be decoded or parsed.
	ErrDecode = errors.New("cannot decode document")
)

// Error is returned when a fetched page cannot be interpreted. The crawler
// still records the page, with empty fields.
type Error struct {
	// URL is the page URL.
	URL string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Extractor dispatches a fetched page to the HTML or PDF extractor.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the fields and links of content. Content that is neither
// HTML nor PDF yields an empty Extraction. On failure the returned error is
// an *Error.
func (e *Extractor) Extract(content *model.PageContent) (*model.Extraction, error) {
	pageURL := content.FinalURL
	if pageURL == "" {
		pageURL = content.URL
	}

	switch {
	case IsPDF(content):
		ext, err := extractPDF(content)
		if err != nil {
			return nil, &Error{URL: content.URL, Err: err}
		}
		return ext, nil
	case content.IsHTML():
		ext, err := extractHTML(content.Body, content.ContentType, pageURL)
		if err != nil {
			return nil, &Error{URL: content.URL, Err: err}
		}
		return ext, nil
	default:
		return &model.Extraction{}, nil
	}
}

// IsPDF reports whether content should be treated as a PDF document: its
// URL path ends in ".pdf" or its media type is application/pdf.
func IsPDF(content *model.PageContent) bool {
	if content.MediaType() == "application/pdf" {
		return true
	}
	for _, raw := range []string{content.URL, content.FinalURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			return true
		}
	}
	return false
}

// cleanText trims s, collapses inner whitespace runs and applies NFC
// normalization so visually equal strings compare equal.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
