package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemapper/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "sitemapper.db"

// ErrNotFound is returned when a crawl ID does not exist.
var ErrNotFound = errors.New("crawl not found")

// CrawlDB stores crawl reports and their page records.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		root TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		canceled INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_domain ON crawls(domain);
	CREATE INDEX IF NOT EXISTS idx_crawls_started ON crawls(started_at);

	-- Page records of each crawl
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		title TEXT,
		description TEXT,
		heading TEXT,
		status_code INTEGER,
		content_type TEXT,
		content_hash TEXT,
		source TEXT,
		fetched_at TEXT,
		extract_error TEXT,
		UNIQUE(crawl_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_crawl ON pages(crawl_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlReport stores report and its records in one transaction and
// returns the new crawl ID.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	// Records live in the pages table; the JSON copy keeps the rest.
	meta := *report
	meta.Records = nil
	reportJSON, err := json.Marshal(&meta)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawls (domain, root, started_at, finished_at, canceled, page_count, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.Domain,
		report.Root,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.Canceled,
		len(report.Records),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}

	crawlID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get crawl id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (crawl_id, url, title, description, heading, status_code, content_type, content_hash, source, fetched_at, extract_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(crawl_id, url) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range report.Records {
		if _, err := stmt.ExecContext(ctx,
			crawlID,
			record.URL,
			record.Title,
			record.Description,
			record.Heading,
			record.StatusCode,
			record.ContentType,
			record.ContentHash,
			string(record.Source),
			formatTimestamp(record.FetchedAt),
			record.ExtractError,
		); err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", record.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl: %w", err)
	}
	return crawlID, nil
}

// ListDomains returns every domain with at least one stored crawl.
func (cdb *CrawlDB) ListDomains(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT domain FROM crawls ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}

// CrawlMetadata contains summary information about a stored crawl.
// This is used for displaying crawl history without loading the records.
type CrawlMetadata struct {
	// ID is the unique identifier of the crawl in the database.
	ID int64

	// Domain is the crawled domain as given by the user.
	Domain string

	// Root is the canonical root URL.
	Root string

	// StartedAt is when the crawl started.
	StartedAt time.Time

	// FinishedAt is when the crawl finished.
	FinishedAt time.Time

	// Canceled is true for partial crawls.
	Canceled bool

	// Pages is the number of stored page records.
	Pages int
}

// GetCrawlHistory returns metadata for the crawls of domain, newest first.
// A limit of zero or less returns all crawls.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, domain string, limit int) ([]CrawlMetadata, error) {
	query := `
	SELECT id, domain, root, started_at, finished_at, canceled, page_count
	FROM crawls
	WHERE domain = ?
	ORDER BY started_at DESC, id DESC
	`
	args := []any{domain}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlMetadata
	for rows.Next() {
		var meta CrawlMetadata
		var startedAt, finishedAt string

		if err := rows.Scan(&meta.ID, &meta.Domain, &meta.Root, &startedAt, &finishedAt, &meta.Canceled, &meta.Pages); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.FinishedAt = parseTimestamp(finishedAt)

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetCrawlRecords returns the page records of a crawl sorted by URL.
func (cdb *CrawlDB) GetCrawlRecords(ctx context.Context, crawlID int64) ([]*model.PageRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, title, description, heading, status_code, content_type, content_hash, source, fetched_at, extract_error
	FROM pages
	WHERE crawl_id = ?
	ORDER BY url
	`, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl records: %w", err)
	}
	defer rows.Close()

	records := make([]*model.PageRecord, 0)
	for rows.Next() {
		var (
			record                        model.PageRecord
			title, description, heading   sql.NullString
			contentType, contentHash      sql.NullString
			source, fetchedAt, extractErr sql.NullString
			statusCode                    sql.NullInt64
		)
		if err := rows.Scan(
			&record.URL,
			&title,
			&description,
			&heading,
			&statusCode,
			&contentType,
			&contentHash,
			&source,
			&fetchedAt,
			&extractErr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		record.Title = title.String
		record.Description = description.String
		record.Heading = heading.String
		record.StatusCode = int(statusCode.Int64)
		record.ContentType = contentType.String
		record.ContentHash = contentHash.String
		record.Source = model.Source(source.String)
		record.FetchedAt = parseTimestamp(fetchedAt.String)
		record.ExtractError = extractErr.String

		records = append(records, &record)
	}

	return records, rows.Err()
}

// GetCrawlReportByID loads a stored crawl including its records.
// It returns ErrNotFound when no crawl has that ID.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawls WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	records, err := cdb.GetCrawlRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	report.Records = records

	return &report, nil
}

// DeleteCrawl removes a crawl and its pages.
func (cdb *CrawlDB) DeleteCrawl(ctx context.Context, id int64) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE crawl_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM crawls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete crawl: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return tx.Commit()
}

// DiffCrawls compares the records of two stored crawls.
func (cdb *CrawlDB) DiffCrawls(ctx context.Context, oldID, newID int64) (*Diff, error) {
	for _, id := range []int64{oldID, newID} {
		var exists int
		if err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawls WHERE id = ?`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check crawl: %w", err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
	}

	oldRecords, err := cdb.GetCrawlRecords(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newRecords, err := cdb.GetCrawlRecords(ctx, newID)
	if err != nil {
		return nil, err
	}

	diff := Compare(oldRecords, newRecords)
	diff.OldID = oldID
	diff.NewID = newID
	return diff, nil
}

// formatTimestamp stores times as UTC RFC 3339 so that they sort as text.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
