package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/sitemapper/internal/model"
)

// extractHTML parses body and returns its title, description, first H1
// and resolved links.
func extractHTML(body []byte, contentType, pageURL string) (*model.Extraction, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page URL: %w", ErrDecode, err)
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	root, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	doc := goquery.NewDocumentFromNode(root)

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(b)
		}
	}

	return &model.Extraction{
		Title:       cleanText(doc.Find("title").First().Text()),
		Description: metaDescription(doc),
		Heading:     cleanText(doc.Find("h1").First().Text()),
		Links:       links(doc, base),
	}, nil
}

// metaDescription returns the content of the first
// <meta name="description">, matching the name case-insensitively.
func metaDescription(doc *goquery.Document) string {
	var desc string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		content, _ := s.Attr("content")
		desc = cleanText(content)
		return false
	})
	return desc
}

// links returns the href of every anchor resolved against base, in document
// order and without duplicates.
func links(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := resolveURL(base, href)
		if resolved == "" {
			return
		}
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	})
	return out
}

// resolveURL resolves href against base. Empty, fragment-only and
// non-navigational hrefs (javascript:, mailto:, tel:, data:) yield "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
