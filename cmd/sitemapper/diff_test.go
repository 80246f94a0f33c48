package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nao1215/sitemapper/internal/database"
)

// TestNewDiffCmd tests the diff command creation.
func TestNewDiffCmd(t *testing.T) {
	t.Parallel()

	cmd := NewDiffCmd()

	for _, name := range []string{"from", "to", "json", "markdown", "db-dir"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

func TestDiffCommand(t *testing.T) {
	t.Parallel()

	t.Run("latest two crawls", func(t *testing.T) {
		t.Parallel()

		dbDir, _ := seedHistory(t)
		out, err := runRoot(t, "diff", "example.com", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			"Added Pages (1)",
			"[+] https://www.example.com/new",
			"Removed Pages (1)",
			"[-] https://www.example.com/old",
			"Changed Pages (1)",
			`title: "Home" -> "Welcome"`,
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("explicit ids in json", func(t *testing.T) {
		t.Parallel()

		dbDir, ids := seedHistory(t)
		out, err := runRoot(t, "diff", "--from", itoa(ids[1]), "--to", itoa(ids[0]), "--json", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result diffResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if result.OldID != ids[1] || result.NewID != ids[0] {
			t.Errorf("expected %d -> %d, got %d -> %d", ids[1], ids[0], result.OldID, result.NewID)
		}
		if len(result.Added) != 1 || result.Added[0] != "https://www.example.com/old" {
			t.Errorf("expected old page added when comparing backwards, got %v", result.Added)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()

		dbDir, _ := seedHistory(t)
		out, err := runRoot(t, "diff", "example.com", "--markdown", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"# Crawl Comparison", "## Added Pages (1)", "Welcome"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("requires domain or both ids", func(t *testing.T) {
		t.Parallel()

		if _, err := runRoot(t, "diff", "--from", "1", "--db-dir", t.TempDir()); err == nil {
			t.Error("expected error without domain")
		}
	})

	t.Run("json and markdown are exclusive", func(t *testing.T) {
		t.Parallel()

		dbDir, _ := seedHistory(t)
		if _, err := runRoot(t, "diff", "example.com", "--json", "--markdown", "--db-dir", dbDir); err == nil {
			t.Error("expected error for conflicting formats")
		}
	})
}

func TestPickCrawls(t *testing.T) {
	t.Parallel()

	crawls := []database.CrawlMetadata{{ID: 9}, {ID: 7}, {ID: 4}}

	tests := []struct {
		name     string
		from, to int64
		wantFrom int64
		wantTo   int64
		wantErr  bool
	}{
		{name: "defaults", wantFrom: 7, wantTo: 9},
		{name: "to only", to: 7, wantFrom: 4, wantTo: 7},
		{name: "from only", from: 4, wantFrom: 4, wantTo: 9},
		{name: "oldest has no predecessor", to: 4, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			from, to, err := pickCrawls(crawls, tt.from, tt.to)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if from != tt.wantFrom || to != tt.wantTo {
				t.Errorf("expected %d -> %d, got %d -> %d", tt.wantFrom, tt.wantTo, from, to)
			}
		})
	}

	if _, _, err := pickCrawls(nil, 0, 0); err == nil {
		t.Error("expected error without history")
	}
}
