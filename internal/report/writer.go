package report

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/nao1215/sitemapper/internal/model"
)

// ErrUnknownFormat is returned by ParseFormat and NewWriter for an
// unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output format name.
type Format string

const (
	// FormatCSV writes one row per page.
	FormatCSV Format = "csv"
	// FormatJSON writes the whole crawl report as JSON.
	FormatJSON Format = "json"
	// FormatMarkdown writes the crawl report as a Markdown document.
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatCSV, FormatJSON, FormatMarkdown}

// ParseFormat converts s to a Format. Matching is case-insensitive and
// accepts "md" as an alias for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	default:
		return ".csv"
	}
}

// OutputPath appends the format's extension to path when path has none
// that matches. "-" is returned unchanged and means stdout.
func OutputPath(path string, f Format) string {
	if path == "" || path == "-" {
		return path
	}
	if strings.EqualFold(filepath.Ext(path), f.Extension()) {
		return path
	}
	return path + f.Extension()
}

// Writer writes a crawl report to its destination.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// NewWriter returns the Writer for format f that writes to output.
func NewWriter(f Format, output io.Writer) (Writer, error) {
	switch f {
	case FormatCSV:
		return NewCSVWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
