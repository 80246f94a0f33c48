package frontier

import (
	"context"
	"sync"

	"github.com/nao1215/sitemapper/internal/canon"
)

// Frontier tracks Pending and Visited URLs of a crawl.
//
// Invariants:
//   - Visited and Pending are disjoint.
//   - A URL leaves Pending and enters Visited in one step (TakeNext, Next,
//     MarkVisited), so no URL is handed out twice.
//   - Offer checks both sets and inserts under the same lock.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	// queue preserves insertion order of pending URLs; pending is the set
	// view of the same URLs.
	queue   []canon.URL
	pending map[canon.URL]struct{}
	visited map[canon.URL]struct{}
	seeded  map[canon.URL]struct{}

	// inFlight counts URLs handed out by TakeNext or Next whose Done has not
	// been called yet.
	inFlight int
	closed   bool
}

// Stats is a point-in-time snapshot of the frontier sizes.
type Stats struct {
	// Seeded is the number of distinct URLs added by Seed.
	Seeded int
	// Visited is the number of URLs that have been handed out or marked.
	Visited int
	// Pending is the number of URLs waiting to be visited.
	Pending int
	// InFlight is the number of handed-out URLs not yet reported Done.
	InFlight int
}

// New creates an empty Frontier.
func New() *Frontier {
	f := &Frontier{
		pending: make(map[canon.URL]struct{}),
		visited: make(map[canon.URL]struct{}),
		seeded:  make(map[canon.URL]struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Seed adds the initial URLs to Pending. URLs already known to the frontier
// are skipped. It returns the number of URLs added.
func (f *Frontier) Seed(urls ...canon.URL) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	added := 0
	for _, u := range urls {
		if f.addLocked(u) {
			f.seeded[u] = struct{}{}
			added++
		}
	}
	if added > 0 {
		f.cond.Broadcast()
	}
	return added
}

// Offer adds each URL that is in neither Pending nor Visited. The
// membership check and the insert happen under the same lock. It returns
// the number of URLs added. Offers made after Close are ignored.
func (f *Frontier) Offer(urls ...canon.URL) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0
	}

	added := 0
	for _, u := range urls {
		if f.addLocked(u) {
			added++
		}
	}
	if added > 0 {
		f.cond.Broadcast()
	}
	return added
}

// TakeNext removes one URL from Pending, records it as Visited and returns
// it. The second return value is false when Pending is empty. The caller
// must call Done once it has finished with the URL.
func (f *Frontier) TakeNext() (canon.URL, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", false
	}
	return f.takeLocked()
}

// Next is the blocking form of TakeNext used by workers. It waits until a
// URL is pending, and returns false when the crawl is over: Pending is
// empty with nothing in flight, the frontier was closed, or ctx is done.
func (f *Frontier) Next(ctx context.Context) (canon.URL, bool) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cond.Broadcast()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed || ctx.Err() != nil {
			return "", false
		}
		if len(f.queue) > 0 {
			return f.takeLocked()
		}
		if f.inFlight == 0 {
			// Nothing pending and nobody left to offer more.
			f.cond.Broadcast()
			return "", false
		}
		f.cond.Wait()
	}
}

// Done ends the in-flight period of a URL returned by TakeNext or Next.
// Links found on that page must be offered before calling Done, otherwise
// idle workers may see an empty frontier and stop early.
func (f *Frontier) Done(_ canon.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight > 0 {
		f.inFlight--
	}
	f.cond.Broadcast()
}

// MarkVisited moves u into Visited, removing it from Pending if present.
// It is idempotent.
func (f *Frontier) MarkVisited(u canon.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pending[u]; ok {
		delete(f.pending, u)
		f.removeFromQueueLocked(u)
	}
	f.visited[u] = struct{}{}
}

// IsDone reports whether Pending is empty and nothing is in flight.
func (f *Frontier) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 && f.inFlight == 0
}

// IsVisited reports whether u is in Visited.
func (f *Frontier) IsVisited(u canon.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[u]
	return ok
}

// IsSeeded reports whether u was added by Seed.
func (f *Frontier) IsSeeded(u canon.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seeded[u]
	return ok
}

// Close stops the frontier. Next and TakeNext return false afterwards and
// Offer becomes a no-op. Close is safe to call more than once.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Stats returns the current sizes of the frontier sets.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Seeded:   len(f.seeded),
		Visited:  len(f.visited),
		Pending:  len(f.queue),
		InFlight: f.inFlight,
	}
}

// addLocked inserts u into Pending unless it is already known.
func (f *Frontier) addLocked(u canon.URL) bool {
	if u == "" {
		return false
	}
	if _, ok := f.visited[u]; ok {
		return false
	}
	if _, ok := f.pending[u]; ok {
		return false
	}
	f.pending[u] = struct{}{}
	f.queue = append(f.queue, u)
	return true
}

// takeLocked pops the oldest pending URL and marks it visited.
func (f *Frontier) takeLocked() (canon.URL, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	u := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	delete(f.pending, u)
	f.visited[u] = struct{}{}
	f.inFlight++
	return u, true
}

func (f *Frontier) removeFromQueueLocked(u canon.URL) {
	for i, q := range f.queue {
		if q == u {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			return
		}
	}
}
