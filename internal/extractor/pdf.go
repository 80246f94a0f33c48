package extractor

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/nao1215/sitemapper/internal/model"
)

// disablePDFConfigDir keeps pdfcpu from creating its configuration
// directory under the user's home on first use.
var disablePDFConfigDir sync.Once

// pdfInfoPatterns match literal "(...)" and hex "<...>" strings of a plain
// text information dictionary. Literal strings may contain escaped
// parentheses. They are only used when pdfcpu cannot read the file.
var (
	pdfTitlePattern   = regexp.MustCompile(`/Title\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)
	pdfSubjectPattern = regexp.MustCompile(`/Subject\s*(?:\(((?:\\.|[^\\)])*)\)|<([0-9A-Fa-f\s]*)>)`)
)

// utf16BOM starts UTF-16BE text strings in PDF.
var utf16BOM = []byte{0xFE, 0xFF}

// extractPDF reads the title and subject of a PDF. The title falls back to
// the file name of the URL; the heading is always model.PDFHeading.
func extractPDF(content *model.PageContent) (*model.Extraction, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(content.Body, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	title, subject, err := readPDFInfo(content.Body)
	if err != nil {
		// A body cut at the size limit has no usable cross-reference
		// table, but an uncompressed Info dictionary may still be there.
		title = pdfInfoString(content.Body, pdfTitlePattern)
		subject = pdfInfoString(content.Body, pdfSubjectPattern)
	}

	title = cleanText(title)
	if title == "" {
		title = fileName(content.URL)
	}

	return &model.Extraction{
		Title:       title,
		Description: cleanText(subject),
		Heading:     model.PDFHeading,
	}, nil
}

// readPDFInfo returns the Title and Subject of the document information
// dictionary, following cross-reference and object streams.
func readPDFInfo(data []byte) (title, subject string, err error) {
	disablePDFConfigDir.Do(api.DisableConfigDir)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf: %v", ErrDecode, r)
		}
	}()

	info, err := api.PDFInfo(bytes.NewReader(data), "", nil, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: pdf: %w", ErrDecode, err)
	}
	return info.Title, info.Subject, nil
}

// pdfInfoString returns the decoded value of the first match of pattern.
func pdfInfoString(data []byte, pattern *regexp.Regexp) string {
	m := pattern.FindSubmatch(data)
	if m == nil {
		return ""
	}
	if m[1] != nil {
		return decodePDFText(unescapeLiteral(m[1]))
	}
	raw, err := hex.DecodeString(strings.Join(strings.Fields(string(m[2])), ""))
	if err != nil {
		return ""
	}
	return decodePDFText(raw)
}

// unescapeLiteral resolves the backslash escapes of a PDF literal string.
func unescapeLiteral(s []byte) []byte {
	var out bytes.Buffer
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			out.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		case 'b':
			out.WriteByte('\b')
		case 'f':
			out.WriteByte('\f')
		case '\r', '\n':
			// line continuation
		default:
			if s[i] >= '0' && s[i] <= '7' {
				v := 0
				j := i
				for ; j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7'; j++ {
					v = v*8 + int(s[j]-'0')
				}
				out.WriteByte(byte(v))
				i = j - 1
				continue
			}
			out.WriteByte(s[i])
		}
	}
	return out.Bytes()
}

// decodePDFText decodes a PDF text string: UTF-16BE when it starts with a
// byte order mark, otherwise a Latin-1 superset close to PDFDocEncoding.
func decodePDFText(raw []byte) string {
	if bytes.HasPrefix(raw, utf16BOM) {
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return string(decoded)
		}
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// fileName returns the last path segment of rawURL, unescaped.
func fileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}
