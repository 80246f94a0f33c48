package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/pipeline"
	"github.com/nao1215/sitemapper/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "List stored crawls",
		Long: `History lists the crawls stored in the local history database.

Without arguments it lists every crawled domain. With a domain it lists the
crawls of that domain, newest first, with their IDs. Use the IDs with
'sitemapper history show', 'sitemapper history delete' and 'sitemapper diff'.

Examples:
  # List all crawled domains
  sitemapper history

  # List the last 5 crawls of a domain
  sitemapper history example.com --limit 5

  # Export a stored crawl again
  sitemapper history show 12 -o old.csv

  # Remove a stored crawl
  sitemapper history delete 12`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.PersistentFlags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of crawls listed (0 = all)")

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

// newHistoryShowCmd creates the "history show" command.
func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Write the pages of a stored crawl",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}

	cmd.Flags().StringP("output", "o", "-",
		"Output file path (\"-\" for stdout)")
	cmd.Flags().StringP("format", "f", string(report.FormatCSV),
		"Output format: csv, json or markdown")

	return cmd
}

// newHistoryDeleteCmd creates the "history delete" command.
func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored crawl",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDeleteCmd,
	}
}

// openHistoryDB opens the history database named by the --db-dir flag.
// The database must already exist.
func openHistoryDB(cmd *cobra.Command) (*database.CrawlDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database (run 'sitemapper crawl' first): %w", err)
	}
	return db, nil
}

// parseCrawlID parses a crawl ID argument.
func parseCrawlID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid crawl ID: %q", s)
	}
	return id, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listDomains(ctx, out, db)
	}
	return listCrawlHistory(ctx, out, db, args[0], limit)
}

// listDomains lists all domains that have stored crawls.
func listDomains(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	domains, err := db.ListDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	if len(domains) == 0 {
		fmt.Fprintln(out, "No crawls found in the database.")
		fmt.Fprintln(out, "\nUse 'sitemapper crawl <domain>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled domains (%d):\n\n", len(domains))
	for _, domain := range domains {
		fmt.Fprintf(out, "  • %s\n", domain)
	}
	fmt.Fprintln(out, "\nUse 'sitemapper history <domain>' to see the crawls of a domain.")

	return nil
}

// listCrawlHistory lists the stored crawls of one site.
func listCrawlHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, domain string, limit int) error {
	crawls, err := siteHistory(ctx, db, domain, limit)
	if err != nil {
		return err
	}

	if len(crawls) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", domain)
		fmt.Fprintln(out, "\nUse 'sitemapper crawl' to crawl this site.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", domain, len(crawls))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %s\n", "ID", "Date", "Pages", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 50))

	for _, meta := range crawls {
		status := "complete"
		if meta.Canceled {
			status = "partial"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-8d  %s\n",
			meta.ID,
			meta.StartedAt.Local().Format("2006-01-02 15:04:05"),
			meta.Pages,
			status,
		)
	}

	fmt.Fprintln(out, "\nUse 'sitemapper diff <domain>' to compare the latest two crawls.")
	fmt.Fprintln(out, "Use 'sitemapper history show <id>' to export a crawl.")

	return nil
}

// siteHistory returns the crawls of every stored domain spelling of the
// same site (e.g. "example.com" and "https://www.example.com"), newest first.
func siteHistory(ctx context.Context, db *database.CrawlDB, domain string, limit int) ([]database.CrawlMetadata, error) {
	domains, err := db.ListDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	key := config.SiteID(domain)
	var crawls []database.CrawlMetadata
	for _, stored := range domains {
		if config.SiteID(stored) != key {
			continue
		}
		history, err := db.GetCrawlHistory(ctx, stored, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to get crawl history: %w", err)
		}
		crawls = append(crawls, history...)
	}

	sort.SliceStable(crawls, func(i, j int) bool {
		if crawls[i].StartedAt.Equal(crawls[j].StartedAt) {
			return crawls[i].ID > crawls[j].ID
		}
		return crawls[i].StartedAt.After(crawls[j].StartedAt)
	})
	if limit > 0 && len(crawls) > limit {
		crawls = crawls[:limit]
	}
	return crawls, nil
}

// runHistoryShowCmd writes a stored crawl in the requested format.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	id, err := parseCrawlID(args[0])
	if err != nil {
		return err
	}

	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	output = report.OutputPath(output, format)

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	crawlReport, err := db.GetCrawlReportByID(cmd.Context(), id)
	if err != nil {
		return err
	}

	open := pipeline.FileOpener(output)
	if output == "-" || output == "" {
		open = pipeline.WriterOpener(cmd.OutOrStdout())
	}

	step := pipeline.NewReportStep(format, open)
	if err := step.Do(cmd.Context(), crawlReport); err != nil {
		return err
	}
	if !step.Written() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Crawl %d has no pages.\n", id)
	} else if output != "-" && output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Crawl %d has been saved to %s\n", id, output)
	}
	return nil
}

// runHistoryDeleteCmd removes a stored crawl.
func runHistoryDeleteCmd(cmd *cobra.Command, args []string) error {
	id, err := parseCrawlID(args[0])
	if err != nil {
		return err
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteCrawl(cmd.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("crawl %d not found", id)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted crawl %d\n", id)
	return nil
}
