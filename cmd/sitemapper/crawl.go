package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitemapper/internal/canon"
	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/extractor"
	"github.com/nao1215/sitemapper/internal/fetcher"
	"github.com/nao1215/sitemapper/internal/log"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/pipeline"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/nao1215/sitemapper/internal/sitemap"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [domain...]",
		Short: "Crawl a website and write its pages to a CSV file",
		Long: `Crawl visits every page of a website and writes one row per page with
the columns URL, Meta Title, Meta Description and First H1.

Pages listed in the site's sitemaps are crawled first; when the site has no
sitemap the crawl starts at the homepage. Links to other pages on the same
host are followed. Images, archives and media files are never fetched.

When run in a terminal without a domain, crawl asks for the domain and the
output file name.

Examples:
  # Crawl a site and write sitemap.csv
  sitemapper crawl example.com

  # Choose the output file (.csv is appended when missing)
  sitemapper crawl example.com -o example

  # Write JSON to stdout
  sitemapper crawl example.com -o - --format json

  # Crawl several sites, one file per site
  sitemapper crawl example.com example.org --output-dir out/

  # Be gentle: one worker, two seconds between requests
  sitemapper crawl example.com --workers 1 --delay 2s

Configuration file (.sitemapper) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      ignorePatterns:
        - "/logout*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutput,
		"Output file path (\"-\" for stdout); the format's extension is appended when missing")
	cmd.Flags().String("output-dir", "",
		"Write one file per domain into this directory")
	cmd.Flags().StringP("format", "f", string(report.FormatCSV),
		"Output format: csv, json or markdown")

	// Crawl behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of pages fetched concurrently")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Pause each worker takes between two requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second across all workers (0 = unlimited)")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Stop after this many pages (0 = unlimited)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http://, socks5:// or host:port for SOCKS5)")
	cmd.Flags().String("host-prefix", config.DefaultHostPrefix,
		"Prefix added to hosts when comparing URLs (empty to disable)")
	cmd.Flags().StringSlice("exclude-ext", nil,
		"Additional file extensions never crawled (e.g. .pdf,.docx)")
	cmd.Flags().Bool("no-sitemap", false,
		"Ignore sitemaps and start at the homepage")
	cmd.Flags().Bool("no-robots", false,
		"Do not read Sitemap directives from robots.txt")
	cmd.Flags().Int("max-sitemaps", config.DefaultMaxSitemaps,
		"Maximum number of sitemap documents read")

	// Batch flags
	cmd.Flags().IntP("concurrency", "b", config.DefaultConcurrency,
		"Number of domains crawled at once")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemapper in current or home directory, then $XDG_CONFIG_HOME/sitemapper/config.yaml)")

	// History flags
	cmd.Flags().Bool("no-db", false,
		"Do not store the crawl in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && isInteractive(cmd) {
		var err error
		args, err = promptForTarget(cmd, cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd, cfg, logger)
}

// isInteractive reports whether the command reads from a terminal.
func isInteractive(cmd *cobra.Command) bool {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd())
}

// promptForTarget asks for the domain and, unless given as a flag, the
// output file. It returns the domain as the argument list.
func promptForTarget(cmd *cobra.Command, r io.Reader) ([]string, error) {
	in := bufio.NewReader(r)
	out := cmd.ErrOrStderr()

	fmt.Fprint(out, "Enter the domain to crawl: ")
	domain, err := readLine(in)
	if err != nil {
		return nil, err
	}
	if domain == "" {
		return nil, config.ErrNoDomain
	}

	if !cmd.Flags().Changed("output") && !cmd.Flags().Changed("output-dir") {
		fmt.Fprintf(out, "Enter the output file name [%s]: ", config.DefaultOutput)
		output, err := readLine(in)
		if err != nil {
			return nil, err
		}
		if output != "" {
			if err := cmd.Flags().Set("output", output); err != nil {
				return nil, err
			}
		}
	}

	return []string{domain}, nil
}

// readLine reads one trimmed line. A final line without newline is accepted.
func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.Format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.HostPrefix, err = flags.GetString("host-prefix"); err != nil {
		return nil, err
	}
	if cfg.ExcludeExtensions, err = flags.GetStringSlice("exclude-ext"); err != nil {
		return nil, err
	}
	if cfg.MaxSitemaps, err = flags.GetInt("max-sitemaps"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}

	noSitemap, err := flags.GetBool("no-sitemap")
	if err != nil {
		return nil, err
	}
	cfg.UseSitemaps = !noSitemap

	noRobots, err := flags.GetBool("no-robots")
	if err != nil {
		return nil, err
	}
	cfg.UseRobots = !noRobots

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Domains = uniqueDomains(args)

	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A missing file is an error
// only when its path was given explicitly.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	siteConfigs, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return siteConfigs, nil
}

// uniqueDomains drops blank and repeated domains, keeping the first
// spelling of each site.
func uniqueDomains(args []string) []string {
	seen := make(map[string]bool, len(args))
	domains := make([]string, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		key := config.SiteID(arg)
		if seen[key] {
			continue
		}
		seen[key] = true
		domains = append(domains, arg)
	}
	return domains
}

// crawlSettings are the tunables of one domain after the configuration
// file has been merged with the command line.
type crawlSettings struct {
	userAgent      string
	workers        int
	delay          time.Duration
	maxPages       int
	exclude        []string
	ignorePatterns []string
	followPatterns []string
	cookie         string
	headers        map[string]string
}

// settingsFor merges the site configuration of domain under the flags.
// Flags given on the command line always win.
func settingsFor(cmd *cobra.Command, cfg *config.Config, domain string) crawlSettings {
	site := cfg.SiteConfigFor(domain)
	flags := cmd.Flags()

	s := crawlSettings{
		userAgent:      cfg.UserAgent,
		workers:        cfg.Workers,
		delay:          cfg.CrawlDelay,
		maxPages:       cfg.MaxPages,
		exclude:        cfg.ExcludeExtensions,
		ignorePatterns: site.IgnorePatterns,
		followPatterns: site.FollowPatterns,
		cookie:         site.Cookie,
		headers:        site.Headers,
	}
	if site.UserAgent != "" && !flags.Changed("user-agent") {
		s.userAgent = site.UserAgent
	}
	if site.Workers > 0 && !flags.Changed("workers") {
		s.workers = site.Workers
	}
	if site.Delay > 0 && !flags.Changed("delay") {
		s.delay = site.Delay
	}
	if site.MaxPages > 0 && !flags.Changed("max-pages") {
		s.maxPages = site.MaxPages
	}
	if len(site.ExcludeExtensions) > 0 && !flags.Changed("exclude-ext") {
		s.exclude = site.ExcludeExtensions
	}
	return s
}

// newCrawler builds the crawler of one domain.
func newCrawler(cfg *config.Config, s crawlSettings, progress crawler.Progress, logger *slog.Logger) (*crawler.Crawler, error) {
	client, err := fetcher.NewHTTPClient(fetcher.ClientOptions{
		Timeout: cfg.Timeout,
		Proxy:   cfg.Proxy,
		Cookie:  s.cookie,
		Headers: s.headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	f := fetcher.New(client,
		fetcher.WithUserAgent(s.userAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithRateLimit(cfg.RateLimit),
		fetcher.WithLogger(logger),
	)

	opts := []crawler.Option{
		crawler.WithWorkers(s.workers),
		crawler.WithDelay(s.delay),
		crawler.WithMaxPages(s.maxPages),
		crawler.WithSitemaps(cfg.UseSitemaps),
		crawler.WithScopeOptions(
			canon.WithCanonicalizer(canon.New(canon.WithHostPrefix(cfg.HostPrefix))),
			canon.WithExcludedExtensions(s.exclude),
			canon.WithIgnorePatterns(s.ignorePatterns),
			canon.WithFollowPatterns(s.followPatterns),
		),
		crawler.WithSitemapOptions(
			sitemap.WithRobots(cfg.UseRobots),
			sitemap.WithMaxSitemaps(cfg.MaxSitemaps),
			sitemap.WithLogger(logger),
		),
		crawler.WithProgress(progress),
		crawler.WithLogger(logger),
	}

	return crawler.New(f, extractor.New(), opts...), nil
}

// crawlRun holds what every domain pipeline of one invocation shares.
type crawlRun struct {
	cmd    *cobra.Command
	cfg    *config.Config
	db     *database.CrawlDB
	logger *slog.Logger

	// stdout receives summaries. It is safe for concurrent use.
	stdout io.Writer
}

// newPipeline builds the pipeline of one domain: crawl, then the final
// steps that store, write and summarize whatever the crawl collected.
func (r *crawlRun) newPipeline(domain string, c *crawler.Crawler) *pipeline.Pipeline {
	p := pipeline.New(pipeline.WithLogger(r.logger))
	p.AddStep(pipeline.NewCrawlStep(c, pipeline.WithCrawlLogger(r.logger)))

	if r.db != nil {
		p.AddStep(pipeline.NewPersistStep(r.db, pipeline.WithPersistLogger(r.logger)))
	}

	outputPath := r.cfg.OutputPathFor(domain)
	open := pipeline.FileOpener(outputPath)
	summaryOut := r.stdout
	if outputPath == "-" {
		open = pipeline.WriterOpener(r.cmd.OutOrStdout())
		summaryOut = r.cmd.ErrOrStderr()
	}
	p.AddStep(pipeline.NewReportStep(r.cfg.OutputFormat(), open, pipeline.WithReportLogger(r.logger)))
	p.AddStep(pipeline.NewSummaryStep(summaryOut,
		report.WithOutputPath(outputPath),
		report.WithVerbose(r.cfg.Verbose),
	))

	return p
}

// runCrawl crawls every configured domain.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"domains", cfg.Domains,
		"workers", cfg.Workers,
		"concurrency", cfg.Concurrency,
		"saveToDB", cfg.SaveToDB,
	)

	run := &crawlRun{
		cmd:    cmd,
		cfg:    cfg,
		logger: logger,
		stdout: &lockedWriter{w: cmd.OutOrStdout()},
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		run.db = db
		logger.Info("database opened", "path", db.Path())
	}

	// Progress is drawn only when a single crawl owns the terminal.
	var progress crawler.Progress
	if len(cfg.Domains) == 1 {
		progress = crawler.NewTextProgress(cmd.ErrOrStderr())
	}

	crawlers := make(map[string]*crawler.Crawler, len(cfg.Domains))
	for _, domain := range cfg.Domains {
		c, err := newCrawler(cfg, settingsFor(cmd, cfg, domain), progress, logger)
		if err != nil {
			return err
		}
		crawlers[domain] = c
	}

	if len(cfg.Domains) == 1 {
		return runSingleCrawl(ctx, run, cfg.Domains[0], crawlers[cfg.Domains[0]])
	}
	return runBatchCrawl(ctx, run, crawlers)
}

// runSingleCrawl crawls one domain.
func runSingleCrawl(ctx context.Context, run *crawlRun, domain string, c *crawler.Crawler) error {
	fmt.Fprintf(run.cmd.ErrOrStderr(), "Crawling %s...\n", domain)

	crawlReport := model.NewCrawlReport(domain)
	err := run.newPipeline(domain, c).Execute(ctx, crawlReport)
	return crawlError(domain, err)
}

// runBatchCrawl crawls several domains, cfg.Concurrency at a time.
func runBatchCrawl(ctx context.Context, run *crawlRun, crawlers map[string]*crawler.Crawler) error {
	domains := run.cfg.Domains
	fmt.Fprintf(run.cmd.ErrOrStderr(), "Crawling %d domains (concurrency: %d)...\n",
		len(domains), run.cfg.Concurrency)

	bp := pipeline.NewBatchProcessor(
		func(domain string) *pipeline.Pipeline {
			return run.newPipeline(domain, crawlers[domain])
		},
		pipeline.WithConcurrency(run.cfg.Concurrency),
		pipeline.WithBatchLogger(run.logger),
	)

	results := bp.ProcessBatch(ctx, domains)

	var failed int
	for i, result := range results {
		if err := crawlError(domains[i], result.Err); err != nil {
			failed++
			fmt.Fprintf(run.cmd.ErrOrStderr(), "[%d/%d] %v\n", i+1, len(domains), err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d domains failed", failed, len(domains))
	}
	return nil
}

// crawlError turns a pipeline error into the command's error. Cancellation
// is not an error: the partial results have been written and summarized.
func crawlError(domain string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if crawler.IsFatal(err) {
		return fmt.Errorf("cannot crawl %s: %w", domain, err)
	}
	return fmt.Errorf("crawl of %s failed: %w", domain, err)
}

// lockedWriter serializes writes from concurrent pipelines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
