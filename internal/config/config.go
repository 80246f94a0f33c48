package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitemapper/internal/canon"
	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/fetcher"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/nao1215/sitemapper/internal/sitemap"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemapper"

	// DefaultOutput is the output file name used when none is given.
	DefaultOutput = "sitemap.csv"

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 10 * time.Second

	// DefaultWorkers is the number of concurrent fetches per domain.
	DefaultWorkers = crawler.DefaultWorkers

	// DefaultConcurrency is the number of domains crawled at once.
	DefaultConcurrency = 2

	// DefaultCrawlDelay is the pause each worker takes after a fetch.
	DefaultCrawlDelay = crawler.DefaultDelay

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = fetcher.DefaultUserAgent

	// DefaultMaxBodySize limits how much of each response is read.
	DefaultMaxBodySize = fetcher.DefaultMaxBodySize

	// DefaultHostPrefix is prepended to hosts during canonicalization.
	DefaultHostPrefix = canon.DefaultHostPrefix

	// DefaultMaxSitemaps bounds the number of sitemap documents read.
	DefaultMaxSitemaps = sitemap.DefaultMaxSitemaps
)

// Config holds all configuration options for sitemapper.
// It is populated from CLI flags and the optional config file and passed
// through the application rather than kept in global state.
type Config struct {
	// Domains are the domains to crawl, as given by the user.
	Domains []string

	// Output is the output file path. "-" writes to stdout.
	// The format's extension is appended when missing.
	Output string

	// OutputDir, when set, receives one file per domain named after the
	// domain's host. Required when crawling more than one domain to files.
	OutputDir string

	// Format is the output format: csv, json or markdown.
	Format string

	// Timeout is the timeout for each HTTP request.
	Timeout time.Duration

	// Workers is the number of concurrent fetches per domain.
	Workers int

	// Concurrency is the number of domains crawled at once.
	Concurrency int

	// CrawlDelay is the pause each worker takes after a fetch.
	CrawlDelay time.Duration

	// RateLimit caps requests per second across all workers of a domain.
	// Zero disables the limit.
	RateLimit float64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Zero uses the default.
	MaxBodySize int64

	// MaxPages stops the crawl after this many pages. Zero means no limit.
	MaxPages int

	// Proxy is an optional proxy URL (http, https, socks5 or socks5h) or a
	// bare "host:port", which is used as SOCKS5.
	Proxy string

	// HostPrefix is prepended to hosts during canonicalization.
	HostPrefix string

	// UseSitemaps enables sitemap discovery.
	UseSitemaps bool

	// UseRobots enables reading Sitemap directives from robots.txt.
	UseRobots bool

	// MaxSitemaps bounds the number of sitemap documents read.
	MaxSitemaps int

	// ExcludeExtensions are file extensions never crawled, in addition to
	// the built-in list of images, archives and media.
	ExcludeExtensions []string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .sitemapper is searched in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory of the crawl history database.
	// Defaults to the XDG data directory (~/.local/share/sitemapper on Linux).
	DBDir string

	// SaveToDB stores every finished crawl in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Output:      DefaultOutput,
		Format:      string(report.FormatCSV),
		Timeout:     DefaultTimeout,
		Workers:     DefaultWorkers,
		Concurrency: DefaultConcurrency,
		CrawlDelay:  DefaultCrawlDelay,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		HostPrefix:  DefaultHostPrefix,
		UseSitemaps: true,
		UseRobots:   true,
		MaxSitemaps: DefaultMaxSitemaps,
		DBDir:       XDGDataDir(),
		SaveToDB:    true,
	}
}

// XDGDataDir returns the XDG data directory for sitemapper.
// On Linux: ~/.local/share/sitemapper
// On macOS: ~/Library/Application Support/sitemapper
// On Windows: %LOCALAPPDATA%\sitemapper
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitemapper.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found as one of the package's sentinel errors.
func (c *Config) Validate() error {
	if len(c.Domains) == 0 {
		return ErrNoDomain
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return ErrInvalidFormat
	}
	if len(c.Domains) > 1 && c.OutputDir == "" {
		return ErrMultipleDomainsStdout
	}
	return nil
}

// OutputFormat returns the parsed output format. Call Validate first.
func (c *Config) OutputFormat() report.Format {
	f, err := report.ParseFormat(c.Format)
	if err != nil {
		return report.FormatCSV
	}
	return f
}

// OutputPathFor returns where the records of domain are written.
// With OutputDir set, the file is named after the domain's host and port,
// e.g. "example.com.csv" or "localhost_8080.csv".
func (c *Config) OutputPathFor(domain string) string {
	f := c.OutputFormat()
	if c.OutputDir != "" {
		name := strings.ReplaceAll(SiteID(domain), ":", "_")
		return filepath.Join(c.OutputDir, report.OutputPath(name, f))
	}
	return report.OutputPath(c.Output, f)
}

// SiteConfigFor returns the file configuration for domain, or the zero
// SiteConfig when no file was loaded.
func (c *Config) SiteConfigFor(domain string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(domain)
}
