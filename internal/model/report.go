package model

import "time"

// CrawlState is the lifecycle state of a crawl.
type CrawlState string

const (
	// StateSeeding is the initial state: sitemap discovery and frontier seeding.
	StateSeeding CrawlState = "seeding"
	// StateDraining means workers are consuming the frontier.
	StateDraining CrawlState = "draining"
	// StateDone is terminal; the record set is frozen.
	StateDone CrawlState = "done"
)

// CrawlReport is the result of crawling one domain.
type CrawlReport struct {
	// Domain is the domain as given by the user.
	Domain string `json:"domain"`

	// Root is the canonical seed URL.
	Root string `json:"root"`

	// Host is the canonical host defining the crawl scope.
	Host string `json:"host"`

	// State is the crawl lifecycle state when the report was produced.
	State CrawlState `json:"state"`

	// Sitemaps lists the sitemap documents that were read.
	Sitemaps []string `json:"sitemaps,omitempty"`

	// Records holds one record per canonical page, sorted by URL.
	Records []*PageRecord `json:"records"`

	// Stats summarizes the crawl.
	Stats CrawlStats `json:"stats"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl reached the Done state.
	FinishedAt time.Time `json:"finished_at"`

	// Canceled is true when the crawl stopped before the frontier drained.
	Canceled bool `json:"canceled,omitempty"`

	// Errors collects non-fatal errors worth surfacing in reports.
	Errors []string `json:"errors,omitempty"`
}

// NewCrawlReport creates a report for domain in the Seeding state.
func NewCrawlReport(domain string) *CrawlReport {
	return &CrawlReport{
		Domain:    domain,
		State:     StateSeeding,
		StartedAt: time.Now(),
		Records:   make([]*PageRecord, 0),
	}
}

// Duration returns how long the crawl took.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// AddError records a non-fatal error message.
func (r *CrawlReport) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// CrawlStats are the counters of one crawl.
type CrawlStats struct {
	// SitemapURLs is the number of in-scope page URLs found in sitemaps.
	SitemapURLs int `json:"sitemap_urls"`

	// Seeded is the number of URLs the frontier was seeded with.
	Seeded int `json:"seeded"`

	// Visited is the number of URLs handed to workers.
	Visited int `json:"visited"`

	// Fetched is the number of successful fetches.
	Fetched int `json:"fetched"`

	// FetchErrors is the number of failed fetches.
	FetchErrors int `json:"fetch_errors"`

	// ExtractErrors is the number of pages whose fields could not be extracted.
	ExtractErrors int `json:"extract_errors"`

	// Discovered is the number of new URLs added by link extraction.
	Discovered int `json:"discovered"`

	// Records is the number of page records produced.
	Records int `json:"records"`

	// SeedRecords is the number of records for seeded URLs.
	SeedRecords int `json:"seed_records"`

	// LinkRecords is the number of records for URLs found by following links.
	LinkRecords int `json:"link_records"`
}

// Tally fills Records, SeedRecords and LinkRecords from records.
func (s *CrawlStats) Tally(records []*PageRecord) {
	s.Records = len(records)
	s.SeedRecords = 0
	s.LinkRecords = 0
	for _, r := range records {
		if r.Source == SourceLink {
			s.LinkRecords++
		} else {
			s.SeedRecords++
		}
	}
}
