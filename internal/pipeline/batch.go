package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitemapper/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of domains crawled at once.
const DefaultConcurrency = 2

// BatchProcessor crawls multiple domains concurrently, one pipeline each.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each domain.
	pipelineFactory func(domain string) *Pipeline

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. pipelineFactory is called
// once per domain so that pipelines never share step state.
func NewBatchProcessor(pipelineFactory func(domain string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// BatchResult is the outcome of one domain's pipeline.
type BatchResult struct {
	Report *model.CrawlReport
	Err    error
}

// ProcessBatch crawls domains and returns one result per domain, in input
// order. A failing domain does not stop the others. Domains not yet started
// when ctx is canceled get a result whose Err is the context error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, domains []string) []BatchResult {
	bp.logger.Info("starting batch",
		"total_domains", len(domains),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	results := make([]BatchResult, len(domains))

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, domain := range domains {
		i := i
		domain := domain
		g.Go(func() error {
			report := model.NewCrawlReport(domain)
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{Report: report, Err: err}
				return nil
			}

			bp.logger.Info("crawling domain",
				"domain", domain,
				"index", i+1,
				"total", len(domains),
			)

			err := bp.pipelineFactory(domain).Execute(ctx, report)
			results[i] = BatchResult{Report: report, Err: err}
			if err != nil {
				bp.logger.Warn("domain failed", "domain", domain, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	bp.logger.Info("batch complete",
		"total_domains", len(domains),
		"elapsed", time.Since(startTime),
	)
	return results
}
