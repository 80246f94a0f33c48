// Package model defines the data structures shared by the crawler, the
// report writers and the database.
//
// This package contains the following main types:
//   - PageContent: a fetched HTTP response body with its metadata
//   - Extraction: the fields and links extracted from a PageContent
//   - PageRecord: one output row per canonical page
//   - RecordSet: the first-writer-wins collection of PageRecords
//   - CrawlReport: the result of one crawl, written by the report sinks
//
// The models are serializable to JSON for report output and database storage.
package model
