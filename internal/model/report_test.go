package model

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRecordSetFirstWriterWins(t *testing.T) {
	t.Parallel()

	s := NewRecordSet()
	first := &PageRecord{URL: "http://www.example.com/a", Title: "first"}
	second := &PageRecord{URL: "http://www.example.com/a", Title: "second"}

	if !s.Add(first) {
		t.Fatal("expected first record to be stored")
	}
	if s.Add(second) {
		t.Error("expected second record to be rejected")
	}
	if got := s.Get("http://www.example.com/a").Title; got != "first" {
		t.Errorf("expected title 'first', got %q", got)
	}
	if s.Add(nil) || s.Add(&PageRecord{}) {
		t.Error("expected nil and empty URL records to be rejected")
	}
}

func TestRecordSetConcurrentAdd(t *testing.T) {
	t.Parallel()

	s := NewRecordSet()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		stored int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Add(&PageRecord{URL: "http://www.example.com/", Title: fmt.Sprint(i)}) {
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if stored != 1 {
		t.Errorf("expected exactly one stored record, got %d", stored)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 record, got %d", s.Len())
	}
}

func TestRecordSetSorted(t *testing.T) {
	t.Parallel()

	s := NewRecordSet()
	for _, u := range []string{"http://www.example.com/c", "http://www.example.com/a", "http://www.example.com/b"} {
		s.Add(&PageRecord{URL: u})
	}

	sorted := s.Sorted()
	for i, want := range []string{"http://www.example.com/a", "http://www.example.com/b", "http://www.example.com/c"} {
		if sorted[i].URL != want {
			t.Errorf("position %d: expected %q, got %q", i, want, sorted[i].URL)
		}
	}
}

func TestCrawlReport(t *testing.T) {
	t.Parallel()

	t.Run("new report starts seeding", func(t *testing.T) {
		t.Parallel()

		r := NewCrawlReport("example.com")
		if r.State != StateSeeding {
			t.Errorf("expected state %q, got %q", StateSeeding, r.State)
		}
		if r.Duration() != 0 {
			t.Errorf("expected zero duration before finish, got %v", r.Duration())
		}
	})

	t.Run("duration uses finish time", func(t *testing.T) {
		t.Parallel()

		r := NewCrawlReport("example.com")
		r.FinishedAt = r.StartedAt.Add(3 * time.Second)
		if r.Duration() != 3*time.Second {
			t.Errorf("expected 3s, got %v", r.Duration())
		}
	})

	t.Run("tally counts sources", func(t *testing.T) {
		t.Parallel()

		var stats CrawlStats
		stats.Tally([]*PageRecord{
			{URL: "a", Source: SourceSitemap},
			{URL: "b", Source: SourceHomepage},
			{URL: "c", Source: SourceLink},
		})
		if stats.Records != 3 || stats.SeedRecords != 2 || stats.LinkRecords != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})
}
