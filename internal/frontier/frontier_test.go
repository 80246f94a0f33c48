package frontier

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/canon"
)

func TestFrontierSeedAndTake(t *testing.T) {
	t.Parallel()

	f := New()
	if added := f.Seed("http://www.example.com/", "http://www.example.com/a", "http://www.example.com/a"); added != 2 {
		t.Fatalf("expected 2 seeded URLs, got %d", added)
	}

	first, ok := f.TakeNext()
	if !ok {
		t.Fatal("expected a pending URL")
	}
	if first != "http://www.example.com/" {
		t.Errorf("expected oldest URL first, got %q", first)
	}
	if !f.IsVisited(first) {
		t.Error("expected taken URL to be visited")
	}
	if !f.IsSeeded(first) {
		t.Error("expected taken URL to be recorded as seeded")
	}

	stats := f.Stats()
	if stats.Pending != 1 || stats.Visited != 1 || stats.InFlight != 1 || stats.Seeded != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestFrontierOffer(t *testing.T) {
	t.Parallel()

	t.Run("visited URLs are not re-added", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Seed("http://www.example.com/")
		u, _ := f.TakeNext()
		f.Done(u)

		if added := f.Offer(u); added != 0 {
			t.Errorf("expected 0 added, got %d", added)
		}
		if !f.IsDone() {
			t.Error("expected frontier to be done")
		}
	})

	t.Run("pending URLs are not duplicated", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Offer("http://www.example.com/a")
		if added := f.Offer("http://www.example.com/a", "http://www.example.com/b"); added != 1 {
			t.Errorf("expected 1 added, got %d", added)
		}
		if got := f.Stats().Pending; got != 2 {
			t.Errorf("expected 2 pending, got %d", got)
		}
	})

	t.Run("empty URL is ignored", func(t *testing.T) {
		t.Parallel()

		f := New()
		if added := f.Offer(""); added != 0 {
			t.Errorf("expected 0 added, got %d", added)
		}
	})

	t.Run("offers after close are ignored", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Close()
		if added := f.Offer("http://www.example.com/a"); added != 0 {
			t.Errorf("expected 0 added, got %d", added)
		}
		if _, ok := f.TakeNext(); ok {
			t.Error("expected TakeNext to fail after close")
		}
	})
}

func TestFrontierMarkVisited(t *testing.T) {
	t.Parallel()

	f := New()
	f.Seed("http://www.example.com/a", "http://www.example.com/b")
	f.MarkVisited("http://www.example.com/a")
	f.MarkVisited("http://www.example.com/a")
	f.MarkVisited("http://www.example.com/c")

	stats := f.Stats()
	if stats.Pending != 1 {
		t.Errorf("expected 1 pending, got %d", stats.Pending)
	}
	if stats.Visited != 2 {
		t.Errorf("expected 2 visited, got %d", stats.Visited)
	}

	u, ok := f.TakeNext()
	if !ok || u != "http://www.example.com/b" {
		t.Errorf("expected /b to be next, got %q (%v)", u, ok)
	}
}

func TestFrontierIsDone(t *testing.T) {
	t.Parallel()

	f := New()
	if !f.IsDone() {
		t.Error("expected empty frontier to be done")
	}

	f.Seed("http://www.example.com/")
	if f.IsDone() {
		t.Error("expected frontier with pending URL not to be done")
	}

	u, _ := f.TakeNext()
	if f.IsDone() {
		t.Error("expected frontier with in-flight URL not to be done")
	}
	f.Done(u)
	if !f.IsDone() {
		t.Error("expected frontier to be done after Done")
	}
}

func TestFrontierNext(t *testing.T) {
	t.Parallel()

	t.Run("returns false when drained", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Seed("http://www.example.com/")

		u, ok := f.Next(context.Background())
		if !ok {
			t.Fatal("expected a URL")
		}
		f.Done(u)

		if _, ok := f.Next(context.Background()); ok {
			t.Error("expected Next to report completion")
		}
	})

	t.Run("waits for in-flight work to offer more", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Seed("http://www.example.com/")
		root, _ := f.Next(context.Background())

		got := make(chan canon.URL, 1)
		go func() {
			u, _ := f.Next(context.Background())
			got <- u
		}()

		time.Sleep(20 * time.Millisecond)
		f.Offer("http://www.example.com/child")
		f.Done(root)

		select {
		case u := <-got:
			if u != "http://www.example.com/child" {
				t.Errorf("expected child URL, got %q", u)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Next did not return")
		}
	})

	t.Run("returns false on context cancel", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Seed("http://www.example.com/")
		_, _ = f.Next(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan bool, 1)
		go func() {
			_, ok := f.Next(ctx)
			done <- ok
		}()

		cancel()
		select {
		case ok := <-done:
			if ok {
				t.Error("expected Next to fail after cancel")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Next did not return after cancel")
		}
	})

	t.Run("returns false after close", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Seed("http://www.example.com/")
		_, _ = f.Next(context.Background())

		done := make(chan bool, 1)
		go func() {
			_, ok := f.Next(context.Background())
			done <- ok
		}()

		f.Close()
		select {
		case ok := <-done:
			if ok {
				t.Error("expected Next to fail after close")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Next did not return after close")
		}
	})
}

// TestFrontierNoDuplicateVisit runs many workers that offer overlapping
// links and checks every URL is handed out exactly once.
func TestFrontierNoDuplicateVisit(t *testing.T) {
	t.Parallel()

	const pages = 200
	link := func(i int) canon.URL {
		return canon.URL(fmt.Sprintf("http://www.example.com/p%d", i%pages))
	}

	f := New()
	f.Seed(link(0))

	var (
		mu    sync.Mutex
		seen  = make(map[canon.URL]int)
		wg    sync.WaitGroup
		ctx   = context.Background()
		works = 16
	)
	for w := 0; w < works; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				u, ok := f.Next(ctx)
				if !ok {
					return
				}
				mu.Lock()
				seen[u]++
				mu.Unlock()

				var n int
				_, _ = fmt.Sscanf(string(u), "http://www.example.com/p%d", &n)
				f.Offer(link(n+1), link(n+7), link(n*3))
				f.Done(u)
			}
		}()
	}
	wg.Wait()

	if len(seen) != pages {
		t.Errorf("expected %d distinct URLs, got %d", pages, len(seen))
	}
	for u, count := range seen {
		if count != 1 {
			t.Errorf("expected %q to be visited once, got %d", u, count)
		}
	}
	if !f.IsDone() {
		t.Error("expected frontier to be done")
	}
}
