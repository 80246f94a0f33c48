package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitemapper/internal/model"
)

// MarkdownWriter outputs crawl reports as a Markdown document with a
// summary table, a page source chart and one table row per page.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSources(md, report)
	w.writePages(md, report)
	w.writeSitemaps(md, report)
	w.writeErrors(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the crawl summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Sitemap Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Domain", "`" + report.Domain + "`"},
			{"Root", "`" + report.Root + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Pages", strconv.Itoa(report.Stats.Records)},
			{"Fetch Errors", strconv.Itoa(report.Stats.FetchErrors)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	if report.Canceled {
		md.Warningf("The crawl was canceled before all pages were visited. %d pages were recorded.", len(report.Records))
		md.PlainText("")
	}
}

// writeSources writes a pie chart of where records came from.
func (w *MarkdownWriter) writeSources(md *markdown.Markdown, report *model.CrawlReport) {
	if report.Stats.Records == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Sources"),
		piechart.WithShowData(true),
	)
	if report.Stats.SeedRecords > 0 {
		chart.LabelAndIntValue("Seeded", uint64(report.Stats.SeedRecords))
	}
	if report.Stats.LinkRecords > 0 {
		chart.LabelAndIntValue("Discovered", uint64(report.Stats.LinkRecords))
	}

	md.H2("Sources")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePages writes one table row per record.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Records) == 0 {
		md.PlainText("No data collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Records))
	for _, record := range report.Records {
		row := record.Row()
		for i := range row {
			row[i] = escapeCell(row[i])
		}
		rows = append(rows, row)
	}
	md.Table(markdown.TableSet{
		Header: model.RecordColumns,
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSitemaps lists the sitemap documents that were read.
func (w *MarkdownWriter) writeSitemaps(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Sitemaps) == 0 {
		return
	}
	md.H2("Sitemaps")
	md.PlainText("")
	md.BulletList(report.Sitemaps...)
	md.PlainText("")
}

// writeErrors lists non-fatal errors.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Errors) == 0 {
		return
	}
	md.H2("Errors")
	md.PlainText("")
	md.BulletList(report.Errors...)
	md.PlainText("")
}

// statusText describes how the crawl ended.
func statusText(report *model.CrawlReport) string {
	if report.Canceled {
		return "Canceled (partial results)"
	}
	return "Complete"
}

// escapeCell keeps cell text from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
