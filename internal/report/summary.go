package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitemapper/internal/model"
)

// SummaryWriter prints the end-of-crawl statistics for terminal display.
type SummaryWriter struct {
	baseWriter

	// outputPath is the file the records were written to, if any.
	outputPath string

	// verbose adds the detailed counters and error list.
	verbose bool
}

// SummaryWriterOption configures a SummaryWriter.
type SummaryWriterOption func(*SummaryWriter)

// WithOutputPath names the file the records were saved to.
func WithOutputPath(path string) SummaryWriterOption {
	return func(w *SummaryWriter) {
		w.outputPath = path
	}
}

// WithVerbose enables the detailed counters.
func WithVerbose(verbose bool) SummaryWriterOption {
	return func(w *SummaryWriter) {
		w.verbose = verbose
	}
}

// NewSummaryWriter creates a SummaryWriter that outputs to the given writer.
func NewSummaryWriter(output io.Writer, opts ...SummaryWriterOption) *SummaryWriter {
	w := &SummaryWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary.
func (w *SummaryWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	if len(report.Records) == 0 {
		sb.WriteString("No data collected!\n")
	} else {
		if w.outputPath != "" && w.outputPath != "-" {
			fmt.Fprintf(&sb, "Sitemap has been saved to %s\n", w.outputPath)
		}
		fmt.Fprintf(&sb, "Total pages processed: %d\n", report.Stats.Records)
		fmt.Fprintf(&sb, "Pages from sitemap: %d\n", report.Stats.SeedRecords)
		fmt.Fprintf(&sb, "Additional pages found: %d\n", report.Stats.LinkRecords)
	}

	if report.Canceled {
		sb.WriteString("Crawl canceled, results are partial.\n")
	}

	if w.verbose {
		w.writeDetails(&sb, report)
	}

	return w.output.Write([]byte(sb.String()))
}

// writeDetails writes every counter and the collected errors.
func (w *SummaryWriter) writeDetails(sb *strings.Builder, report *model.CrawlReport) {
	stats := report.Stats

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Domain:          %s\n", report.Domain)
	fmt.Fprintf(sb, "Root:            %s\n", report.Root)
	fmt.Fprintf(sb, "Sitemaps read:   %d\n", len(report.Sitemaps))
	fmt.Fprintf(sb, "Sitemap URLs:    %d\n", stats.SitemapURLs)
	fmt.Fprintf(sb, "Visited:         %d\n", stats.Visited)
	fmt.Fprintf(sb, "Fetched:         %d\n", stats.Fetched)
	fmt.Fprintf(sb, "Fetch errors:    %d\n", stats.FetchErrors)
	fmt.Fprintf(sb, "Extract errors:  %d\n", stats.ExtractErrors)
	fmt.Fprintf(sb, "Discovered:      %d\n", stats.Discovered)
	fmt.Fprintf(sb, "Duration:        %s\n", report.Duration().Round(time.Millisecond))

	if len(report.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, msg := range report.Errors {
			fmt.Fprintf(sb, "  - %s\n", msg)
		}
	}
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
}
