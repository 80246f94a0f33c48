package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/model"
)

// seedHistory stores two crawls of example.com and returns the database
// directory and the crawl IDs, oldest first.
func seedHistory(t *testing.T) (string, []int64) {
	t.Helper()

	dbDir := t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	crawls := []struct {
		domain  string
		records []*model.PageRecord
	}{
		{"example.com", []*model.PageRecord{
			historyPage("https://www.example.com/", "Home", "h1"),
			historyPage("https://www.example.com/old", "Old page", "h2"),
		}},
		{"https://www.example.com", []*model.PageRecord{
			historyPage("https://www.example.com/", "Welcome", "h1"),
			historyPage("https://www.example.com/new", "New page", "h3"),
		}},
	}

	ids := make([]int64, 0, len(crawls))
	for i, c := range crawls {
		report := model.NewCrawlReport(c.domain)
		report.Root = "https://www.example.com/"
		report.StartedAt = started.Add(time.Duration(i) * time.Hour)
		report.FinishedAt = report.StartedAt.Add(time.Minute)
		report.State = model.StateDone
		report.Records = c.records
		report.Stats.Tally(c.records)

		id, err := db.SaveCrawlReport(context.Background(), report)
		if err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
		ids = append(ids, id)
	}
	return dbDir, ids
}

func historyPage(url, title, hash string) *model.PageRecord {
	return &model.PageRecord{
		URL:         url,
		Title:       title,
		Heading:     title,
		StatusCode:  200,
		ContentType: "text/html",
		ContentHash: hash,
		Source:      model.SourceSitemap,
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// runRoot executes the root command with args and returns stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		names := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			names[sub.Name()] = true
		}
		for _, want := range []string{"show", "delete"} {
			if !names[want] {
				t.Errorf("expected subcommand %q", want)
			}
		}
	})

	t.Run("has limit flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("limit")
		if flag == nil {
			t.Fatal("expected limit flag")
		}
		if flag.DefValue != "20" {
			t.Errorf("expected default '20', got %q", flag.DefValue)
		}
	})
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	t.Run("lists domains", func(t *testing.T) {
		t.Parallel()

		dbDir, _ := seedHistory(t)
		out, err := runRoot(t, "history", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Crawled domains (2)") {
			t.Errorf("expected two stored domain spellings, got %q", out)
		}
	})

	t.Run("lists crawls across domain spellings", func(t *testing.T) {
		t.Parallel()

		dbDir, ids := seedHistory(t)
		out, err := runRoot(t, "history", "www.example.com", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "(2 crawls)") {
			t.Errorf("expected 2 crawls, got %q", out)
		}
		newest := strings.Index(out, "  "+itoa(ids[1])+" ")
		oldest := strings.Index(out, "  "+itoa(ids[0])+" ")
		if newest < 0 || oldest < 0 || newest > oldest {
			t.Errorf("expected newest crawl first, got %q", out)
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		dbDir, _ := seedHistory(t)
		out, err := runRoot(t, "history", "example.com", "-n", "1", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "(1 crawls)") {
			t.Errorf("expected 1 crawl, got %q", out)
		}
	})

	t.Run("unknown domain", func(t *testing.T) {
		t.Parallel()

		dbDir, _ := seedHistory(t)
		out, err := runRoot(t, "history", "other.org", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No crawl history found for other.org") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()

		if _, err := runRoot(t, "history", "--db-dir", t.TempDir()); err == nil {
			t.Error("expected error for missing database")
		}
	})
}

func TestHistoryShowCommand(t *testing.T) {
	t.Parallel()

	t.Run("writes csv to stdout", func(t *testing.T) {
		t.Parallel()

		dbDir, ids := seedHistory(t)
		out, err := runRoot(t, "history", "show", itoa(ids[0]), "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %q", out)
		}
		if lines[0] != "URL,Meta Title,Meta Description,First H1" {
			t.Errorf("unexpected header: %q", lines[0])
		}
		if !strings.Contains(out, "Old page") {
			t.Errorf("expected old page, got %q", out)
		}
	})

	t.Run("writes json file", func(t *testing.T) {
		t.Parallel()

		dbDir, ids := seedHistory(t)
		output := filepath.Join(t.TempDir(), "crawl")
		if _, err := runRoot(t, "history", "show", itoa(ids[1]), "-f", "json", "-o", output, "--db-dir", dbDir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(output + ".json")
		if err != nil {
			t.Fatalf("expected json output: %v", err)
		}
		var report model.CrawlReport
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(report.Records) != 2 {
			t.Errorf("expected 2 records, got %d", len(report.Records))
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		dbDir, _ := seedHistory(t)
		if _, err := runRoot(t, "history", "show", "999", "--db-dir", dbDir); err == nil {
			t.Error("expected error for unknown crawl")
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		t.Parallel()

		if _, err := runRoot(t, "history", "show", "abc", "--db-dir", t.TempDir()); err == nil {
			t.Error("expected error for invalid crawl ID")
		}
	})
}

func TestHistoryDeleteCommand(t *testing.T) {
	t.Parallel()

	dbDir, ids := seedHistory(t)

	out, err := runRoot(t, "history", "delete", itoa(ids[0]), "--db-dir", dbDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Deleted crawl") {
		t.Errorf("unexpected output: %q", out)
	}

	if _, err := runRoot(t, "history", "delete", itoa(ids[0]), "--db-dir", dbDir); err == nil {
		t.Error("expected error when deleting twice")
	}

	out, err = runRoot(t, "history", "example.com", "--db-dir", dbDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "(1 crawls)") {
		t.Errorf("expected 1 remaining crawl, got %q", out)
	}
}
