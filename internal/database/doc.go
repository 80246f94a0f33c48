// Package database provides SQLite-based crawl history for sitemapper.
//
// Every finished crawl is stored as one row in the crawls table together
// with its page records in the pages table. The history and diff commands
// read from here to list past crawls of a domain and to show which pages
// were added, removed or changed between two runs.
//
// The database is a single file opened through modernc.org/sqlite, so no
// CGO toolchain is needed.
package database
