package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/sitemapper/internal/canon"
	"github.com/nao1215/sitemapper/internal/extractor"
	"github.com/nao1215/sitemapper/internal/fetcher"
	"github.com/nao1215/sitemapper/internal/frontier"
	"github.com/nao1215/sitemapper/internal/model"
)

// testSite serves fixed pages and counts requests per path.
type testSite struct {
	server *httptest.Server
	mu     sync.Mutex
	hits   map[string]int
}

type page struct {
	contentType string
	body        string
}

// html builds a page with a title, an h1 and links.
func html(title string, links ...string) page {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title><meta name=\"description\" content=\"About %s\"></head><body><h1>%s</h1>", title, title, title)
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString("</body></html>")
	return page{contentType: "text/html; charset=utf-8", body: b.String()}
}

func xmlURLSet(paths ...string) page {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, p := range paths {
		fmt.Fprintf(&b, "<url><loc>BASE%s</loc></url>", p)
	}
	b.WriteString("</urlset>")
	return page{contentType: "application/xml", body: b.String()}
}

func newTestSite(t *testing.T, pages map[string]page) *testSite {
	t.Helper()

	site := &testSite{hits: make(map[string]int)}
	site.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.hits[r.URL.Path]++
		site.mu.Unlock()

		p, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", p.contentType)
		fmt.Fprint(w, strings.ReplaceAll(p.body, "BASE", "http://"+r.Host))
	}))
	t.Cleanup(site.server.Close)
	return site
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) crawler(opts ...Option) *Crawler {
	opts = append([]Option{WithDelay(0)}, opts...)
	return New(fetcher.New(s.server.Client()), extractor.New(), opts...)
}

func recordURLs(report *model.CrawlReport) []string {
	out := make([]string, 0, len(report.Records))
	for _, r := range report.Records {
		out = append(out, r.URL)
	}
	return out
}

func TestRunSitemapPrecedence(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]page{
		"/sitemap.xml": xmlURLSet("/", "/a", "/b"),
		"/":            html("Home", "/a", "/b", "/c"),
		"/a":           html("A"),
		"/b":           html("B"),
		"/c":           html("C"),
	})

	report, err := site.crawler(WithWorkers(3)).Run(context.Background(), site.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Records) != 4 {
		t.Fatalf("expected 4 records, got %d: %v", len(report.Records), recordURLs(report))
	}
	if report.State != model.StateDone {
		t.Errorf("expected state done, got %q", report.State)
	}
	if report.Stats.SitemapURLs != 3 {
		t.Errorf("expected 3 sitemap URLs, got %d", report.Stats.SitemapURLs)
	}
	if report.Stats.SeedRecords != 3 || report.Stats.LinkRecords != 1 {
		t.Errorf("expected 3 seed and 1 link records, got %+v", report.Stats)
	}

	for _, r := range report.Records {
		want := model.SourceSitemap
		if strings.HasSuffix(r.URL, "/c") {
			want = model.SourceLink
		}
		if r.Source != want {
			t.Errorf("record %s: expected source %q, got %q", r.URL, want, r.Source)
		}
	}

	for _, p := range []string{"/", "/a", "/b", "/c"} {
		if got := site.hitCount(p); got != 1 {
			t.Errorf("expected %s to be fetched once, got %d", p, got)
		}
	}
}

func TestRunHomepageSeed(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]page{
		"/": html("Home",
			"/about/",
			"/about?ref=nav",
			"/about#team",
			"/image.jpg",
			"/files/archive.zip",
			"http://other.com/page",
			"mailto:info@example.com",
			"/missing",
		),
		"/about":     html("About", "/", "/deep"),
		"/deep":      html("Deep"),
		"/image.jpg": {contentType: "image/jpeg", body: "jpeg"},
	})

	report, err := site.crawler(WithWorkers(1)).Run(context.Background(), site.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root := site.server.URL + "/"
	want := []string{root, site.server.URL + "/about", site.server.URL + "/deep"}
	got := recordURLs(report)
	if len(got) != len(want) {
		t.Fatalf("expected records %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if report.Records[0].Source != model.SourceHomepage {
		t.Errorf("expected root source homepage, got %q", report.Records[0].Source)
	}
	if report.Records[0].Title != "Home" || report.Records[0].Heading != "Home" || report.Records[0].Description != "About Home" {
		t.Errorf("unexpected root fields %+v", report.Records[0])
	}
	if site.hitCount("/about") != 1 {
		t.Errorf("expected /about to be fetched once, got %d", site.hitCount("/about"))
	}
	if site.hitCount("/image.jpg") != 0 {
		t.Error("expected image to be out of scope")
	}
	if report.Stats.FetchErrors != 1 {
		t.Errorf("expected 1 fetch error for /missing, got %d", report.Stats.FetchErrors)
	}
	if report.Stats.Visited != 4 {
		t.Errorf("expected 4 visited URLs, got %d", report.Stats.Visited)
	}
}

func TestRunNoDuplicateFetchUnderConcurrency(t *testing.T) {
	t.Parallel()

	const n = 60
	pages := make(map[string]page, n)
	for i := 0; i < n; i++ {
		pages[fmt.Sprintf("/p%d", i)] = html(fmt.Sprintf("P%d", i),
			fmt.Sprintf("/p%d", (i+1)%n),
			fmt.Sprintf("/p%d/", (i+2)%n),
			fmt.Sprintf("/p%d?x=%d", (i*7)%n, i),
			"/",
		)
	}
	pages["/"] = html("Home", "/p0", "/p30")

	site := newTestSite(t, pages)
	report, err := site.crawler(WithWorkers(8), WithSitemaps(false)).Run(context.Background(), site.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Records) != n+1 {
		t.Errorf("expected %d records, got %d", n+1, len(report.Records))
	}
	for path := range pages {
		if got := site.hitCount(path); got != 1 {
			t.Errorf("expected %s to be fetched once, got %d", path, got)
		}
	}
}

func TestRunExtractError(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]page{
		"/":         html("Home", "/fake.pdf", "/real.pdf"),
		"/fake.pdf": {contentType: "text/html", body: "<html>not a pdf</html>"},
		"/real.pdf": {contentType: "application/pdf", body: "%PDF-1.4\n<< /Title (Real) /Subject (Doc) >>"},
	})

	report, err := site.crawler().Run(context.Background(), site.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Records) != 3 {
		t.Fatalf("expected 3 records, got %v", recordURLs(report))
	}
	if report.Stats.ExtractErrors != 1 {
		t.Errorf("expected 1 extract error, got %d", report.Stats.ExtractErrors)
	}

	for _, r := range report.Records {
		switch {
		case strings.HasSuffix(r.URL, "/fake.pdf"):
			if r.Title != "" || r.Description != "" || r.Heading != "" || r.ExtractError == "" {
				t.Errorf("expected empty fields with error, got %+v", r)
			}
		case strings.HasSuffix(r.URL, "/real.pdf"):
			if r.Title != "Real" || r.Description != "Doc" || r.Heading != model.PDFHeading {
				t.Errorf("unexpected PDF record %+v", r)
			}
		}
	}
}

func TestRunMaxPages(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]page{
		"/":  html("Home", "/a", "/b", "/c"),
		"/a": html("A"),
		"/b": html("B"),
		"/c": html("C"),
	})

	report, err := site.crawler(WithWorkers(1), WithMaxPages(2)).Run(context.Background(), site.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Records) != 2 {
		t.Errorf("expected 2 records, got %v", recordURLs(report))
	}
}

func TestRunScopeOptions(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]page{
		"/":        html("Home", "/admin/x", "/blog"),
		"/admin/x": html("Admin"),
		"/blog":    html("Blog"),
	})

	report, err := site.crawler(WithScopeOptions(canon.WithIgnorePatterns([]string{"/admin/*"}))).
		Run(context.Background(), site.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Records) != 2 {
		t.Errorf("expected 2 records, got %v", recordURLs(report))
	}
	if site.hitCount("/admin/x") != 0 {
		t.Error("expected ignored path not to be fetched")
	}
}

func TestRunInvalidDomain(t *testing.T) {
	t.Parallel()

	c := New(fetcher.New(nil), extractor.New())
	report, err := c.Run(context.Background(), "http://")
	if !errors.Is(err, canon.ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}
	if !IsFatal(err) {
		t.Error("expected error to be fatal")
	}
	if report != nil {
		t.Error("expected no report")
	}
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]page{
		"/": html("Home", "/a"),
		"/a": html("A"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := site.crawler().Run(ctx, site.server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Canceled {
		t.Error("expected report to be marked canceled")
	}
	if report.State != model.StateDone {
		t.Errorf("expected state done, got %q", report.State)
	}
}

// recordingFetcher returns the same page for every URL.
type recordingFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *recordingFetcher) Fetch(_ context.Context, url string) (*model.PageContent, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if strings.Contains(url, "sitemap") || strings.HasSuffix(url, "robots.txt") {
		return nil, &fetcher.Error{URL: url, StatusCode: http.StatusNotFound, Err: fetcher.ErrStatus}
	}
	return &model.PageContent{URL: url, FinalURL: url, StatusCode: 200, ContentType: "text/html", Body: []byte("<title>x</title>")}, nil
}

func TestRunUsesCanonicalSeed(t *testing.T) {
	t.Parallel()

	f := &recordingFetcher{}
	report, err := New(f, extractor.New(), WithDelay(0)).Run(context.Background(), "Example.COM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Records) != 1 || report.Records[0].URL != "https://www.example.com/" {
		t.Errorf("unexpected records %v", recordURLs(report))
	}
	if report.Root != "https://www.example.com/" || report.Host != "www.example.com" {
		t.Errorf("unexpected root %q host %q", report.Root, report.Host)
	}

	probed := false
	for _, u := range f.urls {
		if u == "https://Example.COM/sitemap.xml" {
			probed = true
		}
	}
	if !probed {
		t.Errorf("expected sitemap probe against the given origin, got %v", f.urls)
	}
}

func TestTextProgress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewTextProgress(&buf)
	p.Update(frontier.Stats{Visited: 3, Pending: 1, InFlight: 1})
	p.Finish()

	want := "\rCrawling: 2/4 pages (50%)\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}
