package model

import (
	"encoding/hex"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// PageContent is the raw result of fetching one URL.
type PageContent struct {
	// URL is the URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after following redirects.
	// Equal to URL when no redirect happened.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type"`

	// Headers contains all HTTP response headers.
	Headers http.Header `json:"headers,omitempty"`

	// Body is the response body, truncated to the fetcher's size limit.
	Body []byte `json:"-"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`

	// Duration is how long the request took.
	Duration time.Duration `json:"duration"`
}

// MediaType returns the lowercase media type of the response without
// parameters, e.g. "text/html".
func (p *PageContent) MediaType() string {
	if p.ContentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		// Fall back to the part before ';' for sloppy headers.
		mediaType, _, _ = strings.Cut(p.ContentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsHTML reports whether the response looks like an HTML document.
// A missing Content-Type is treated as HTML.
func (p *PageContent) IsHTML() bool {
	switch p.MediaType() {
	case "", "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// ComputeHash returns the hex-encoded BLAKE2b-256 hash of the body, or an
// empty string for an empty body. The hash is stored with each record to
// detect changed pages between crawls.
func (p *PageContent) ComputeHash() string {
	if len(p.Body) == 0 {
		return ""
	}
	sum := blake2b.Sum256(p.Body)
	return hex.EncodeToString(sum[:])
}

// Extraction holds the fields and links extracted from one page.
type Extraction struct {
	// Title is the page title, or the file name for untitled PDFs.
	Title string `json:"title"`

	// Description is the meta description, or the PDF subject.
	Description string `json:"description"`

	// Heading is the text of the first <h1>, or PDFHeading for PDFs.
	Heading string `json:"heading"`

	// Links are absolute URLs of outbound links, resolved against the
	// page URL. They are not canonicalized or scope-filtered.
	Links []string `json:"links,omitempty"`
}

// PDFHeading is the Heading value of every PDF record.
const PDFHeading = "PDF Document"

// Source describes how a page entered the crawl.
type Source string

const (
	// SourceSitemap marks pages listed in a sitemap.
	SourceSitemap Source = "sitemap"
	// SourceHomepage marks the domain root used when no sitemap was found.
	SourceHomepage Source = "homepage"
	// SourceLink marks pages discovered by following links.
	SourceLink Source = "link"
)

// PageRecord is the output row for one canonical page. It is created once,
// on the first successful fetch of its URL, and never updated.
type PageRecord struct {
	// URL is the canonical URL of the page.
	URL string `json:"url"`

	// Title is the meta title. Empty when absent.
	Title string `json:"title"`

	// Description is the meta description. Empty when absent.
	Description string `json:"description"`

	// Heading is the first H1. Empty when absent.
	Heading string `json:"heading"`

	// StatusCode is the HTTP status of the response the record came from.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type of that response.
	ContentType string `json:"content_type,omitempty"`

	// ContentHash is the BLAKE2b-256 hash of the response body.
	ContentHash string `json:"content_hash,omitempty"`

	// Source tells whether the page came from a sitemap, the homepage seed
	// or a followed link.
	Source Source `json:"source"`

	// FetchedAt is when the page was fetched.
	FetchedAt time.Time `json:"fetched_at"`

	// ExtractError holds the extraction failure message, if any. Records
	// with an extraction error have empty Title, Description and Heading.
	ExtractError string `json:"extract_error,omitempty"`
}

// Row returns the record as the fixed output columns:
// URL, Meta Title, Meta Description, First H1.
func (r *PageRecord) Row() []string {
	return []string{r.URL, r.Title, r.Description, r.Heading}
}

// RecordColumns are the header names matching PageRecord.Row.
var RecordColumns = []string{"URL", "Meta Title", "Meta Description", "First H1"}
