package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/report"
)

// Crawler runs a crawl of one domain.
type Crawler interface {
	Run(ctx context.Context, domain string) (*model.CrawlReport, error)
}

// CrawlStep crawls report.Domain and replaces the report contents with the
// result. A canceled crawl is not an error: its partial report is kept.
type CrawlStep struct {
	crawler Crawler
	logger  *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a step that runs c.
func NewCrawlStep(c Crawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler: c,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl.
func (s *CrawlStep) Do(ctx context.Context, r *model.CrawlReport) error {
	result, err := s.crawler.Run(ctx, r.Domain)
	if err != nil {
		return err
	}

	// Keep errors recorded by earlier steps.
	errs := r.Errors
	*r = *result
	r.Errors = append(errs, result.Errors...)

	if r.Canceled {
		s.logger.Warn("crawl canceled, keeping partial results",
			"domain", r.Domain,
			"records", len(r.Records),
		)
	}
	return nil
}

// Store persists crawl reports.
type Store interface {
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// PersistStep saves the report to the crawl history. Failures are recorded
// in the report and do not stop the pipeline.
type PersistStep struct {
	store  Store
	logger *slog.Logger

	// lastID is the ID assigned by the most recent save.
	lastID int64
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a step that saves reports to store.
func NewPersistStep(store Store, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Final reports that partial crawls are saved too.
func (s *PersistStep) Final() bool {
	return true
}

// LastID returns the crawl ID of the most recent successful save, or 0.
func (s *PersistStep) LastID() int64 {
	return s.lastID
}

// Do saves the report.
func (s *PersistStep) Do(ctx context.Context, r *model.CrawlReport) error {
	if r.State != model.StateDone {
		s.logger.Debug("skipping persist, crawl did not finish", "domain", r.Domain)
		return nil
	}

	id, err := s.store.SaveCrawlReport(ctx, r)
	if err != nil {
		s.logger.Warn("failed to save crawl history", "domain", r.Domain, "error", err)
		r.AddError(fmt.Sprintf("save crawl history: %v", err))
		return nil
	}
	s.lastID = id
	s.logger.Debug("crawl saved", "domain", r.Domain, "id", id)
	return nil
}

// Opener returns the destination for a report's output.
type Opener func(r *model.CrawlReport) (io.WriteCloser, error)

// FileOpener creates the file at path, including missing parent
// directories.
func FileOpener(path string) Opener {
	return func(_ *model.CrawlReport) (io.WriteCloser, error) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.Create(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		return f, nil
	}
}

// WriterOpener writes to w and never closes it.
func WriterOpener(w io.Writer) Opener {
	return func(_ *model.CrawlReport) (io.WriteCloser, error) {
		return nopCloser{w}, nil
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// ReportStep writes the records in the configured format. Nothing is
// written, and no file is created, when the crawl produced no records.
type ReportStep struct {
	format report.Format
	open   Opener
	logger *slog.Logger

	// written reports whether output was produced.
	written bool
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// NewReportStep creates a step that writes format to the destination
// returned by open.
func NewReportStep(format report.Format, open Opener, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		format: format,
		open:   open,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Final reports that partial crawls are written too.
func (s *ReportStep) Final() bool {
	return true
}

// Written reports whether the step produced output.
func (s *ReportStep) Written() bool {
	return s.written
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, r *model.CrawlReport) (err error) {
	if len(r.Records) == 0 {
		s.logger.Debug("no records, skipping output", "domain", r.Domain)
		return nil
	}

	// Reject a bad format before creating the output file.
	if _, err := report.ParseFormat(string(s.format)); err != nil {
		return err
	}

	out, err := s.open(r)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()

	writer, err := report.NewWriter(s.format, out)
	if err != nil {
		return err
	}
	n, err := writer.Write(r)
	if err != nil {
		return fmt.Errorf("failed to write %s output: %w", s.format, err)
	}

	s.written = true
	s.logger.Debug("output written", "domain", r.Domain, "format", s.format, "bytes", n)
	return nil
}

// SummaryStep prints the end-of-crawl statistics.
type SummaryStep struct {
	writer *report.SummaryWriter
}

// NewSummaryStep creates a step that prints the summary to output.
func NewSummaryStep(output io.Writer, opts ...report.SummaryWriterOption) *SummaryStep {
	return &SummaryStep{writer: report.NewSummaryWriter(output, opts...)}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Final reports that partial crawls are summarized too.
func (s *SummaryStep) Final() bool {
	return true
}

// Do prints the summary.
func (s *SummaryStep) Do(_ context.Context, r *model.CrawlReport) error {
	_, err := s.writer.Write(r)
	return err
}
