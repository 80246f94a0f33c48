package database

import (
	"sort"

	"github.com/nao1215/sitemapper/internal/model"
)

// Diff is the difference between the records of two crawls.
type Diff struct {
	// OldID and NewID are the compared crawl IDs, when loaded from the database.
	OldID int64
	NewID int64

	// Added lists URLs only present in the newer crawl.
	Added []string

	// Removed lists URLs only present in the older crawl.
	Removed []string

	// Changed lists pages present in both crawls whose fields differ.
	Changed []PageChange
}

// PageChange describes how one page changed between crawls.
type PageChange struct {
	URL string

	// Fields names the changed output fields: "title", "description",
	// "heading" or "content".
	Fields []string

	Old *model.PageRecord
	New *model.PageRecord
}

// IsEmpty reports whether the crawls produced identical records.
func (d *Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare computes the Diff from older to newer. All lists are sorted by URL.
func Compare(older, newer []*model.PageRecord) *Diff {
	oldByURL := make(map[string]*model.PageRecord, len(older))
	for _, r := range older {
		oldByURL[r.URL] = r
	}
	newByURL := make(map[string]*model.PageRecord, len(newer))
	for _, r := range newer {
		newByURL[r.URL] = r
	}

	diff := &Diff{}
	for url, n := range newByURL {
		o, ok := oldByURL[url]
		if !ok {
			diff.Added = append(diff.Added, url)
			continue
		}
		if fields := changedFields(o, n); len(fields) > 0 {
			diff.Changed = append(diff.Changed, PageChange{URL: url, Fields: fields, Old: o, New: n})
		}
	}
	for url := range oldByURL {
		if _, ok := newByURL[url]; !ok {
			diff.Removed = append(diff.Removed, url)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Slice(diff.Changed, func(i, j int) bool {
		return diff.Changed[i].URL < diff.Changed[j].URL
	})
	return diff
}

func changedFields(o, n *model.PageRecord) []string {
	var fields []string
	if o.Title != n.Title {
		fields = append(fields, "title")
	}
	if o.Description != n.Description {
		fields = append(fields, "description")
	}
	if o.Heading != n.Heading {
		fields = append(fields, "heading")
	}
	// Hashes are only comparable when both crawls recorded one.
	if o.ContentHash != "" && n.ContentHash != "" && o.ContentHash != n.ContentHash {
		fields = append(fields, "content")
	}
	return fields
}
