// Package report writes crawl results.
//
// The CSV writer produces the primary deliverable: one row per page with
// the columns URL, Meta Title, Meta Description and First H1. JSON and
// Markdown writers render the full CrawlReport, and the SummaryWriter prints
// the end-of-crawl statistics for the terminal.
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
