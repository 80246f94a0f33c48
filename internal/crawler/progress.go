package crawler

import (
	"fmt"
	"io"
	"sync"

	"github.com/nao1215/sitemapper/internal/frontier"
)

// Progress receives frontier snapshots while a crawl drains. It is advisory
// only and must not block.
type Progress interface {
	Update(stats frontier.Stats)
	Finish()
}

// noProgress discards updates.
type noProgress struct{}

func (noProgress) Update(frontier.Stats) {}
func (noProgress) Finish()               {}

// TextProgress writes a single self-overwriting status line such as
// "Crawling: 12/40 pages (30%)". Known pages are visited plus pending, so
// the total grows while links are discovered.
type TextProgress struct {
	mu      sync.Mutex
	w       io.Writer
	written bool
}

// NewTextProgress creates a TextProgress writing to w (typically os.Stderr).
func NewTextProgress(w io.Writer) *TextProgress {
	return &TextProgress{w: w}
}

// Update redraws the status line.
func (p *TextProgress) Update(stats frontier.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := stats.Visited - stats.InFlight
	total := stats.Visited + stats.Pending
	percent := 100
	if total > 0 {
		percent = done * 100 / total
	}
	fmt.Fprintf(p.w, "\rCrawling: %d/%d pages (%d%%)", done, total, percent) //nolint:errcheck // progress output is best effort
	p.written = true
}

// Finish ends the status line.
func (p *TextProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.written {
		fmt.Fprintln(p.w) //nolint:errcheck // progress output is best effort
		p.written = false
	}
}
