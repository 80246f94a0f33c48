package model

import (
	"sort"
	"sync"
)

// RecordSet collects PageRecords keyed by canonical URL.
// The first record added for a URL wins; later ones are discarded.
// It is safe for concurrent use.
type RecordSet struct {
	mu      sync.Mutex
	records map[string]*PageRecord
}

// NewRecordSet creates an empty RecordSet.
func NewRecordSet() *RecordSet {
	return &RecordSet{records: make(map[string]*PageRecord)}
}

// Add stores r unless a record for r.URL already exists.
// It reports whether r was stored.
func (s *RecordSet) Add(r *PageRecord) bool {
	if r == nil || r.URL == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.URL]; ok {
		return false
	}
	s.records[r.URL] = r
	return true
}

// Get returns the record for url, or nil.
func (s *RecordSet) Get(url string) *PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[url]
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Sorted returns all records ordered by URL.
func (s *RecordSet) Sorted() []*PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*PageRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].URL < out[j].URL
	})
	return out
}
