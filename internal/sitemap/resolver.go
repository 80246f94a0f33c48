package sitemap

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/temoto/robotstxt"

	"github.com/nao1215/sitemapper/internal/canon"
	"github.com/nao1215/sitemapper/internal/model"
)

// DefaultProbePaths are the conventional sitemap locations, probed in order.
var DefaultProbePaths = []string{
	"/sitemap_index.xml",
	"/sitemap.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
	"/sitemaps.xml",
}

const (
	// DefaultMaxSitemaps bounds the number of sitemap documents read.
	DefaultMaxSitemaps = 1000

	// defaultMaxDecompressed bounds the size of a decompressed sitemap.
	defaultMaxDecompressed = 50 * 1024 * 1024
)

// Fetcher retrieves a URL. *fetcher.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.PageContent, error)
}

// Skipped records a sitemap document that was not used.
type Skipped struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Result is the outcome of sitemap discovery.
type Result struct {
	// Sitemaps lists the documents that were read successfully, in order.
	Sitemaps []string
	// URLs are the in-scope canonical page URLs, deduplicated, in
	// first-seen order.
	URLs []canon.URL
	// OutOfScope counts page URLs dropped because they are out of scope
	// or cannot be canonicalized.
	OutOfScope int
	// Skipped lists documents that could not be fetched or parsed.
	Skipped []Skipped
}

// Resolver discovers sitemap URLs for one scope.
type Resolver struct {
	fetcher     Fetcher
	scope       *canon.Scope
	probePaths  []string
	useRobots   bool
	maxSitemaps int
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProbePaths replaces DefaultProbePaths.
func WithProbePaths(paths []string) Option {
	return func(r *Resolver) {
		r.probePaths = paths
	}
}

// WithRobots enables or disables reading Sitemap directives from robots.txt.
func WithRobots(enabled bool) Option {
	return func(r *Resolver) {
		r.useRobots = enabled
	}
}

// WithMaxSitemaps bounds the number of sitemap documents processed.
func WithMaxSitemaps(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxSitemaps = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver that probes under scope.Origin().
func NewResolver(f Fetcher, scope *canon.Scope, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     f,
		scope:       scope,
		probePaths:  DefaultProbePaths,
		useRobots:   true,
		maxSitemaps: DefaultMaxSitemaps,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// workItem is a sitemap waiting to be parsed. content is set for probes,
// which have already been fetched.
type workItem struct {
	url     string
	content *model.PageContent
}

// Discover probes for sitemaps and expands them into page URLs. It only
// returns an error when ctx is canceled; every other failure is recorded in
// Result.Skipped.
//
// Each page <loc> is canonicalized and kept only when it passes the scope:
// locs on another host, with an excluded extension or blocked by the path
// patterns are counted in Result.OutOfScope instead of being returned, since
// the crawler would never fetch them.
func (r *Resolver) Discover(ctx context.Context) (*Result, error) {
	result := &Result{}
	queue := r.probe(ctx)
	if r.useRobots {
		for _, sm := range r.robotsSitemaps(ctx) {
			queue = append(queue, workItem{url: sm})
		}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	visited := make(map[string]struct{})
	seen := make(map[canon.URL]struct{})

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		item := queue[0]
		queue = queue[1:]

		key := sitemapKey(item.url)
		if _, ok := visited[key]; ok {
			continue
		}
		if len(visited) >= r.maxSitemaps {
			r.skip(result, item.url, fmt.Sprintf("sitemap limit of %d reached", r.maxSitemaps))
			continue
		}
		visited[key] = struct{}{}

		content := item.content
		if content == nil {
			var err error
			content, err = r.fetcher.Fetch(ctx, item.url)
			if err != nil {
				r.skip(result, item.url, err.Error())
				continue
			}
		}

		doc, err := Parse(content.Body, defaultMaxDecompressed)
		if err != nil {
			r.skip(result, item.url, err.Error())
			continue
		}
		result.Sitemaps = append(result.Sitemaps, item.url)
		r.logger.Debug("read sitemap", "url", item.url, "kind", doc.Kind.String(), "locs", len(doc.Locs))

		if doc.Kind == KindIndex {
			for _, loc := range doc.Locs {
				queue = append(queue, workItem{url: r.resolve(loc)})
			}
			continue
		}

		for _, loc := range doc.Locs {
			u, ok := r.scope.Contains(loc)
			if !ok {
				result.OutOfScope++
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			result.URLs = append(result.URLs, u)
		}
	}

	return result, nil
}

// probe fetches every probe path and keeps the responses that are
// successful and carry an XML content type.
func (r *Resolver) probe(ctx context.Context) []workItem {
	origin := r.scope.Origin()
	items := make([]workItem, 0, len(r.probePaths))

	for _, p := range r.probePaths {
		if ctx.Err() != nil {
			break
		}
		probeURL := origin.ResolveReference(&url.URL{Path: p}).String()

		content, err := r.fetcher.Fetch(ctx, probeURL)
		if err != nil {
			r.logger.Debug("sitemap probe failed", "url", probeURL, "error", err)
			continue
		}
		if !strings.Contains(strings.ToLower(content.ContentType), "xml") {
			r.logger.Debug("sitemap probe is not XML", "url", probeURL, "content_type", content.ContentType)
			continue
		}
		items = append(items, workItem{url: probeURL, content: content})
	}
	return items
}

// robotsSitemaps returns the Sitemap directives of robots.txt.
func (r *Resolver) robotsSitemaps(ctx context.Context) []string {
	robotsURL := r.scope.Origin().ResolveReference(&url.URL{Path: "/robots.txt"}).String()

	content, err := r.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		r.logger.Debug("robots.txt not available", "url", robotsURL, "error", err)
		return nil
	}
	robots, err := robotstxt.FromBytes(content.Body)
	if err != nil {
		r.logger.Warn("cannot parse robots.txt", "url", robotsURL, "error", err)
		return nil
	}

	out := make([]string, 0, len(robots.Sitemaps))
	for _, sm := range robots.Sitemaps {
		out = append(out, r.resolve(sm))
	}
	return out
}

// resolve turns a possibly relative sitemap location into an absolute URL.
func (r *Resolver) resolve(loc string) string {
	u, err := url.Parse(strings.TrimSpace(loc))
	if err != nil {
		return loc
	}
	return r.scope.Origin().ResolveReference(u).String()
}

func (r *Resolver) skip(result *Result, sitemapURL, reason string) {
	r.logger.Warn("skipping sitemap", "url", sitemapURL, "reason", reason)
	result.Skipped = append(result.Skipped, Skipped{URL: sitemapURL, Reason: reason})
}

// sitemapKey identifies a sitemap document for the visited guard. Scheme
// and host case and a trailing fragment do not make a different document.
func sitemapKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}
