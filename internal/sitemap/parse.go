package sitemap

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrMalformed is returned for documents that are not sitemap XML.
var ErrMalformed = errors.New("malformed sitemap")

// Kind distinguishes sitemap indexes from URL sets.
type Kind int

const (
	// KindURLSet is a <urlset> listing page URLs.
	KindURLSet Kind = iota
	// KindIndex is a <sitemapindex> listing further sitemaps.
	KindIndex
)

// String returns the XML root element name of the kind.
func (k Kind) String() string {
	if k == KindIndex {
		return "sitemapindex"
	}
	return "urlset"
}

// Document is a parsed sitemap.
type Document struct {
	// Kind tells whether Locs are sitemaps or pages.
	Kind Kind
	// Locs are the trimmed, non-empty <loc> values in document order.
	Locs []string
}

// gzipMagic starts every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// Parse parses a sitemap or sitemap index. Gzip-compressed input is
// decompressed first, reading at most maxSize decompressed bytes.
// The namespace is ignored: only local element names are compared.
func Parse(data []byte, maxSize int64) (*Document, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		defer zr.Close()
		data, err = io.ReadAll(io.LimitReader(zr, maxSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	root := xmlquery.FindOne(doc, "/*")
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}

	result := &Document{Kind: KindURLSet}
	if strings.EqualFold(root.Data, "sitemapindex") {
		result.Kind = KindIndex
	}

	for _, n := range xmlquery.Find(doc, "//*[local-name()='loc']") {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			result.Locs = append(result.Locs, loc)
		}
	}
	return result, nil
}
