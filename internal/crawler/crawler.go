package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitemapper/internal/canon"
	"github.com/nao1215/sitemapper/internal/frontier"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/sitemap"
)

const (
	// DefaultWorkers is the default size of the worker pool.
	DefaultWorkers = 4

	// DefaultDelay is the default pause of a worker between two requests.
	DefaultDelay = 1 * time.Second
)

// Fetcher retrieves a page. *fetcher.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.PageContent, error)
}

// Extractor turns a fetched page into fields and links.
// *extractor.Extractor satisfies it.
type Extractor interface {
	Extract(content *model.PageContent) (*model.Extraction, error)
}

// Crawler is the crawl orchestrator. A Crawler can run several crawls one
// after another; each Run has its own frontier and record set.
type Crawler struct {
	fetcher     Fetcher
	extractor   Extractor
	workers     int
	delay       time.Duration
	maxPages    int
	useSitemaps bool
	scopeOpts   []canon.ScopeOption
	sitemapOpts []sitemap.Option
	progress    Progress
	logger      *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithWorkers sets the number of concurrent workers. One worker makes the
// crawl strictly sequential.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithDelay sets the pause each worker takes between two requests.
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithMaxPages stops dispatching once n records exist. Zero means no limit.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		if n >= 0 {
			c.maxPages = n
		}
	}
}

// WithSitemaps enables or disables sitemap discovery. When disabled the
// crawl is seeded with the domain root only.
func WithSitemaps(enabled bool) Option {
	return func(c *Crawler) {
		c.useSitemaps = enabled
	}
}

// WithScopeOptions passes options to canon.NewScope.
func WithScopeOptions(opts ...canon.ScopeOption) Option {
	return func(c *Crawler) {
		c.scopeOpts = append(c.scopeOpts, opts...)
	}
}

// WithSitemapOptions passes options to sitemap.NewResolver.
func WithSitemapOptions(opts ...sitemap.Option) Option {
	return func(c *Crawler) {
		c.sitemapOpts = append(c.sitemapOpts, opts...)
	}
}

// WithProgress sets the progress indicator.
func WithProgress(p Progress) Option {
	return func(c *Crawler) {
		if p != nil {
			c.progress = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Crawler.
func New(f Fetcher, e Extractor, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:     f,
		extractor:   e,
		workers:     DefaultWorkers,
		delay:       DefaultDelay,
		useSitemaps: true,
		progress:    noProgress{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run holds the state of one crawl.
type run struct {
	scope      *canon.Scope
	frontier   *frontier.Frontier
	records    *model.RecordSet
	seedSource model.Source

	fetched       atomic.Int64
	fetchErrors   atomic.Int64
	extractErrors atomic.Int64
	discovered    atomic.Int64
}

// Run crawls domain and returns the finished report. The only error is
// one wrapping canon.ErrInvalidDomain, returned before any request is made.
// When ctx is canceled the partial report is returned with Canceled set.
func (c *Crawler) Run(ctx context.Context, domain string) (*model.CrawlReport, error) {
	report := model.NewCrawlReport(domain)

	scope, err := canon.NewScope(domain, c.scopeOpts...)
	if err != nil {
		return nil, err
	}
	report.Root = scope.Root().String()
	report.Host = scope.Host()

	r := &run{
		scope:    scope,
		frontier: frontier.New(),
		records:  model.NewRecordSet(),
	}

	c.seed(ctx, r, report)

	report.State = model.StateDraining
	c.logger.Info("crawl draining", "domain", domain, "seeded", report.Stats.Seeded, "workers", c.workers)
	c.drain(ctx, r)

	// Done: nothing below touches the frontier except to read its stats.
	report.State = model.StateDone
	report.FinishedAt = time.Now()
	report.Canceled = ctx.Err() != nil
	report.Records = r.records.Sorted()

	stats := r.frontier.Stats()
	report.Stats.Visited = stats.Visited
	report.Stats.Fetched = int(r.fetched.Load())
	report.Stats.FetchErrors = int(r.fetchErrors.Load())
	report.Stats.ExtractErrors = int(r.extractErrors.Load())
	report.Stats.Discovered = int(r.discovered.Load())
	report.Stats.Tally(report.Records)
	c.progress.Finish()

	c.logger.Info("crawl done",
		"domain", domain,
		"records", report.Stats.Records,
		"fetch_errors", report.Stats.FetchErrors,
		"duration", report.Duration(),
		"canceled", report.Canceled,
	)
	return report, nil
}

// seed runs sitemap discovery and seeds the frontier.
func (c *Crawler) seed(ctx context.Context, r *run, report *model.CrawlReport) {
	var seeds []canon.URL

	if c.useSitemaps {
		resolver := sitemap.NewResolver(c.fetcher, r.scope, append([]sitemap.Option{sitemap.WithLogger(c.logger)}, c.sitemapOpts...)...)
		result, err := resolver.Discover(ctx)
		if err != nil {
			c.logger.Warn("sitemap discovery interrupted", "error", err)
		}
		if result != nil {
			report.Sitemaps = result.Sitemaps
			report.Stats.SitemapURLs = len(result.URLs)
			for _, s := range result.Skipped {
				report.AddError("sitemap " + s.URL + ": " + s.Reason)
			}
			seeds = result.URLs
		}
	}

	r.seedSource = model.SourceSitemap
	if len(seeds) == 0 {
		c.logger.Info("no sitemap URLs, seeding with the domain root", "root", r.scope.Root())
		seeds = []canon.URL{r.scope.Root()}
		r.seedSource = model.SourceHomepage
	}
	report.Stats.Seeded = r.frontier.Seed(seeds...)
}

// drain dispatches frontier URLs to at most c.workers goroutines until the
// frontier reports completion.
func (c *Crawler) drain(ctx context.Context, r *run) {
	stop := context.AfterFunc(ctx, r.frontier.Close)
	defer stop()

	var g errgroup.Group
	g.SetLimit(c.workers)

	for {
		u, ok := r.frontier.Next(ctx)
		if !ok {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil || c.limitReached(r) {
				r.frontier.Done(u)
				return nil
			}

			c.visit(ctx, r, u)
			r.frontier.Done(u)
			c.progress.Update(r.frontier.Stats())

			if c.limitReached(r) {
				c.logger.Info("page limit reached", "max_pages", c.maxPages)
				r.frontier.Close()
			}
			if c.delay > 0 && !r.frontier.IsDone() {
				select {
				case <-ctx.Done():
				case <-time.After(c.delay):
				}
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
}

// limitReached reports whether the page limit is set and reached.
// With several workers a few in-flight pages may still complete after it.
func (c *Crawler) limitReached(r *run) bool {
	return c.maxPages > 0 && r.records.Len() >= c.maxPages
}

// visit fetches one URL, records it and offers its in-scope links.
func (c *Crawler) visit(ctx context.Context, r *run, u canon.URL) {
	content, err := c.fetcher.Fetch(ctx, u.String())
	if err != nil {
		r.fetchErrors.Add(1)
		if ctx.Err() == nil {
			c.logger.Warn("fetch failed", "url", u, "error", err)
		}
		return
	}
	r.fetched.Add(1)

	source := model.SourceLink
	if r.frontier.IsSeeded(u) {
		source = r.seedSource
	}
	record := &model.PageRecord{
		URL:         u.String(),
		StatusCode:  content.StatusCode,
		ContentType: content.ContentType,
		ContentHash: content.ComputeHash(),
		Source:      source,
		FetchedAt:   content.FetchedAt,
	}

	ext, err := c.extractor.Extract(content)
	if err != nil {
		r.extractErrors.Add(1)
		record.ExtractError = err.Error()
		c.logger.Warn("extraction failed", "url", u, "error", err)
		ext = &model.Extraction{}
	}
	record.Title = ext.Title
	record.Description = ext.Description
	record.Heading = ext.Heading

	if !r.records.Add(record) {
		c.logger.Debug("record already exists", "url", u)
	}

	candidates := make([]canon.URL, 0, len(ext.Links))
	for _, link := range ext.Links {
		if lu, ok := r.scope.Contains(link); ok {
			candidates = append(candidates, lu)
		}
	}
	if added := r.frontier.Offer(candidates...); added > 0 {
		r.discovered.Add(int64(added))
		c.logger.Debug("discovered links", "url", u, "new", added)
	}
}

// IsFatal reports whether err ends a crawl before it starts.
func IsFatal(err error) bool {
	return errors.Is(err, canon.ErrInvalidDomain)
}
