// Package crawler drives a crawl of one domain from seed to finished report.
//
// # Lifecycle
//
// A crawl moves through three states:
//
//   - Seeding: the seed domain is turned into a canon.Scope (the only fatal
//     failure), sitemaps are discovered, and the frontier is seeded with the
//     sitemap URLs, or with the domain root when no sitemap lists any page.
//   - Draining: a bounded pool of workers takes URLs from the frontier,
//     fetches them, records one PageRecord per canonical URL and offers the
//     in-scope links of each page back to the frontier.
//   - Done: the frontier is empty and no worker is busy. The report is
//     frozen and returned to the caller, which hands it to the result sink.
//
// # Politeness
//
//   - Each worker waits a fixed delay between its requests
//   - The fetcher may enforce a global request rate
//   - The number of concurrent requests is bounded by the worker count
//
// # Usage
//
//	c := crawler.New(fetcher.New(client), extractor.New(), crawler.WithWorkers(4))
//	report, err := c.Run(ctx, "example.com")
package crawler
