// Package pipeline runs a crawl and its follow-up steps in sequence.
//
// A Pipeline holds ordered Steps that share one CrawlReport: the CrawlStep
// fills it, the PersistStep stores it in the crawl history database, and the
// ReportStep and SummaryStep write it out. Steps marked as final still run
// after the context is canceled, so an interrupted crawl keeps its partial
// results.
//
// BatchProcessor runs one pipeline per domain with a concurrency limit
// using errgroup.
package pipeline
