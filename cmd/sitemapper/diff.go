package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/model"
)

// NewDiffCmd creates the diff command.
func NewDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [domain]",
		Short: "Compare two stored crawls",
		Long: `Diff shows which pages were added, removed or changed between two crawls
stored in the history database.

A page has changed when its title, meta description, first heading or
content differs. By default the latest two crawls of the domain are
compared.

Examples:
  # Compare the latest two crawls of a domain
  sitemapper diff example.com

  # Compare two crawls by ID (see 'sitemapper history example.com')
  sitemapper diff --from 3 --to 7

  # Compare the latest crawl with an older one
  sitemapper diff example.com --from 3

  # Output the comparison as Markdown
  sitemapper diff example.com --markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDiffCmd,
	}

	cmd.Flags().Int64("from", 0,
		"ID of the older crawl (default: the second newest crawl of the domain)")
	cmd.Flags().Int64("to", 0,
		"ID of the newer crawl (default: the newest crawl of the domain)")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the comparison in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runDiffCmd executes the diff command.
func runDiffCmd(cmd *cobra.Command, args []string) error {
	fromID, err := cmd.Flags().GetInt64("from")
	if err != nil {
		return err
	}
	toID, err := cmd.Flags().GetInt64("to")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	if len(args) == 0 && (fromID == 0 || toID == 0) {
		return errors.New("a domain is required unless both --from and --to are given")
	}

	db, err := openHistoryDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	if fromID == 0 || toID == 0 {
		crawls, err := siteHistory(ctx, db, args[0], 0)
		if err != nil {
			return err
		}
		fromID, toID, err = pickCrawls(crawls, fromID, toID)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
	}

	diff, err := db.DiffCrawls(ctx, fromID, toID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return outputDiffJSON(out, diff)
	case markdownOutput:
		return outputDiffMarkdown(out, diff)
	default:
		return outputDiffText(out, diff)
	}
}

// pickCrawls fills in the missing crawl IDs from crawls, which are sorted
// newest first. A missing --to is the newest crawl; a missing --from is the
// newest crawl older than --to.
func pickCrawls(crawls []database.CrawlMetadata, fromID, toID int64) (int64, int64, error) {
	if len(crawls) == 0 {
		return 0, 0, errors.New("no crawl history found")
	}

	if toID == 0 {
		toID = crawls[0].ID
	}
	if fromID != 0 {
		return fromID, toID, nil
	}

	for i, meta := range crawls {
		if meta.ID != toID {
			continue
		}
		if i+1 < len(crawls) {
			return crawls[i+1].ID, toID, nil
		}
		break
	}
	return 0, 0, fmt.Errorf("at least 2 crawls are required for comparison (found %d)", len(crawls))
}

// diffResult is the JSON form of a comparison.
type diffResult struct {
	OldID   int64        `json:"old_id"`
	NewID   int64        `json:"new_id"`
	Added   []string     `json:"added"`
	Removed []string     `json:"removed"`
	Changed []diffChange `json:"changed"`
}

type diffChange struct {
	URL    string            `json:"url"`
	Fields []string          `json:"fields"`
	Old    *model.PageRecord `json:"old"`
	New    *model.PageRecord `json:"new"`
}

// outputDiffJSON writes the comparison as indented JSON.
func outputDiffJSON(out io.Writer, diff *database.Diff) error {
	result := diffResult{
		OldID:   diff.OldID,
		NewID:   diff.NewID,
		Added:   nonNil(diff.Added),
		Removed: nonNil(diff.Removed),
		Changed: make([]diffChange, 0, len(diff.Changed)),
	}
	for _, c := range diff.Changed {
		result.Changed = append(result.Changed, diffChange{
			URL:    c.URL,
			Fields: c.Fields,
			Old:    c.Old,
			New:    c.New,
		})
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// outputDiffMarkdown writes the comparison as a Markdown document.
func outputDiffMarkdown(out io.Writer, diff *database.Diff) error {
	md := markdown.NewMarkdown(out)

	md.H1(fmt.Sprintf("Crawl Comparison: #%d to #%d", diff.OldID, diff.NewID))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Change", "Pages"},
		Rows: [][]string{
			{"Added", strconv.Itoa(len(diff.Added))},
			{"Removed", strconv.Itoa(len(diff.Removed))},
			{"Changed", strconv.Itoa(len(diff.Changed))},
		},
	})
	md.PlainText("")

	if diff.IsEmpty() {
		md.PlainText("No differences.")
		return md.Build()
	}

	if len(diff.Added) > 0 {
		md.H2(fmt.Sprintf("Added Pages (%d)", len(diff.Added)))
		md.PlainText("")
		md.BulletList(diff.Added...)
		md.PlainText("")
	}

	if len(diff.Removed) > 0 {
		md.H2(fmt.Sprintf("Removed Pages (%d)", len(diff.Removed)))
		md.PlainText("")
		md.BulletList(diff.Removed...)
		md.PlainText("")
	}

	if len(diff.Changed) > 0 {
		md.H2(fmt.Sprintf("Changed Pages (%d)", len(diff.Changed)))
		md.PlainText("")
		rows := make([][]string, 0, len(diff.Changed))
		for _, c := range diff.Changed {
			for _, field := range c.Fields {
				rows = append(rows, []string{
					markdownCell(c.URL),
					field,
					markdownCell(fieldValue(c.Old, field)),
					markdownCell(fieldValue(c.New, field)),
				})
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Field", "Before", "After"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return md.Build()
}

// outputDiffText writes the comparison in human-readable text format.
func outputDiffText(out io.Writer, diff *database.Diff) error {
	fmt.Fprintf(out, "Crawl Comparison: #%d -> #%d\n", diff.OldID, diff.NewID)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	if diff.IsEmpty() {
		fmt.Fprintln(out, "\nNo differences.")
		return nil
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(out, "\nAdded Pages (%d):\n", len(diff.Added))
		for _, u := range diff.Added {
			fmt.Fprintf(out, "  [+] %s\n", u)
		}
	}

	if len(diff.Removed) > 0 {
		fmt.Fprintf(out, "\nRemoved Pages (%d):\n", len(diff.Removed))
		for _, u := range diff.Removed {
			fmt.Fprintf(out, "  [-] %s\n", u)
		}
	}

	if len(diff.Changed) > 0 {
		fmt.Fprintf(out, "\nChanged Pages (%d):\n", len(diff.Changed))
		for _, c := range diff.Changed {
			fmt.Fprintf(out, "  [~] %s\n", c.URL)
			for _, field := range c.Fields {
				if field == "content" {
					fmt.Fprintln(out, "      content changed")
					continue
				}
				fmt.Fprintf(out, "      %s: %q -> %q\n", field, fieldValue(c.Old, field), fieldValue(c.New, field))
			}
		}
	}

	return nil
}

// fieldValue returns the value of a diff field of record.
func fieldValue(record *model.PageRecord, field string) string {
	if record == nil {
		return ""
	}
	switch field {
	case "title":
		return record.Title
	case "description":
		return record.Description
	case "heading":
		return record.Heading
	case "content":
		return record.ContentHash
	default:
		return ""
	}
}

// markdownCell keeps cell text from breaking the table layout.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
