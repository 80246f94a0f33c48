package report

import (
	"encoding/csv"
	"io"

	"github.com/nao1215/sitemapper/internal/model"
)

// CSVWriter writes one row per page record with the header
// URL, Meta Title, Meta Description, First H1.
type CSVWriter struct {
	baseWriter

	// bom prefixes the output with a UTF-8 byte order mark so that
	// spreadsheet programs detect the encoding.
	bom bool

	// comma is the field delimiter.
	comma rune
}

// CSVWriterOption configures a CSVWriter.
type CSVWriterOption func(*CSVWriter)

// WithBOM writes a UTF-8 byte order mark before the header.
func WithBOM(bom bool) CSVWriterOption {
	return func(w *CSVWriter) {
		w.bom = bom
	}
}

// WithDelimiter sets the field delimiter. The default is ','.
func WithDelimiter(comma rune) CSVWriterOption {
	return func(w *CSVWriter) {
		w.comma = comma
	}
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer, opts ...CSVWriterOption) *CSVWriter {
	w := &CSVWriter{
		baseWriter: newBaseWriter(output),
		comma:      ',',
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the header followed by one row per record, in the order
// of report.Records. The header is written even when there are no records.
func (w *CSVWriter) Write(report *model.CrawlReport) (int, error) {
	cw := &countingWriter{w: w.output}
	if w.bom {
		if _, err := cw.Write([]byte("\ufeff")); err != nil {
			return cw.n, err
		}
	}

	enc := csv.NewWriter(cw)
	enc.Comma = w.comma

	if err := enc.Write(model.RecordColumns); err != nil {
		return cw.n, err
	}
	for _, record := range report.Records {
		if err := enc.Write(record.Row()); err != nil {
			return cw.n, err
		}
	}
	enc.Flush()
	return cw.n, enc.Error()
}
