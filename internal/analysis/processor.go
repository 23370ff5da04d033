package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yvh1223/antivirus-market-intelligence/internal/config"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// Stats summarizes one processor run.
type Stats struct {
	Processed int
	Failed    int
	Batches   int
}

// Processor drains unprocessed reviews in batches, fanning each batch out to
// the analyzer with bounded concurrency. A single review's failure is logged
// and skipped; the batch continues.
type Processor struct {
	reviews       ports.ReviewStore
	catalog       ports.Catalog
	analyzer      ports.Analyzer
	batchSize     int
	maxConcurrent int
	batchPause    time.Duration
	logger        *slog.Logger

	productNames map[int64]string
}

// NewProcessor wires the stores and analyzer with analysis tuning.
func NewProcessor(reviews ports.ReviewStore, catalog ports.Catalog, analyzer ports.Analyzer, cfg config.AnalysisConfig, logger *slog.Logger) *Processor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	return &Processor{
		reviews:       reviews,
		catalog:       catalog,
		analyzer:      analyzer,
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
		batchPause:    cfg.BatchPause(),
		logger:        logger,
		productNames:  map[int64]string{},
	}
}

// Run processes pending reviews until none remain or maxBatches is reached
// (0 means unbounded).
func (p *Processor) Run(ctx context.Context, maxBatches int) (Stats, error) {
	var stats Stats

	for {
		if maxBatches > 0 && stats.Batches >= maxBatches {
			return stats, nil
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch, err := p.reviews.Unprocessed(ctx, p.batchSize)
		if err != nil {
			return stats, fmt.Errorf("load unprocessed reviews: %w", err)
		}
		if len(batch) == 0 {
			return stats, nil
		}
		stats.Batches++

		processed, failed := p.runBatch(ctx, batch)
		stats.Processed += processed
		stats.Failed += failed

		p.debug("batch done", "batch", stats.Batches, "processed", processed, "failed", failed)

		if len(batch) < p.batchSize {
			return stats, nil
		}
		if p.batchPause > 0 {
			select {
			case <-time.After(p.batchPause):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}
}

func (p *Processor) runBatch(ctx context.Context, batch []domain.Review) (int, int) {
	var processed, failed atomic.Int64

	// Product names are resolved up front; the cache is not goroutine-safe.
	for _, review := range batch {
		p.productContext(ctx, review.ProductID)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.maxConcurrent)

	for _, review := range batch {
		review := review
		group.Go(func() error {
			if err := p.processOne(groupCtx, review); err != nil {
				failed.Add(1)
				p.warn("review analysis failed", "review_id", review.ID, "error", err)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = group.Wait()

	return int(processed.Load()), int(failed.Load())
}

func (p *Processor) processOne(ctx context.Context, review domain.Review) error {
	text := review.Content
	if review.Title != nil {
		text = *review.Title + " " + review.Content
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty review)"
	}

	result, err := p.analyzer.Analyze(ctx, text, p.productContext(ctx, review.ProductID))
	if err != nil {
		return err
	}
	if err := p.reviews.MarkProcessed(ctx, review.ID, result); err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}
	return nil
}

// productContext resolves and caches the product name so prompts stay
// grounded even across large batches.
func (p *Processor) productContext(ctx context.Context, productID int64) string {
	if name, ok := p.productNames[productID]; ok {
		return name
	}

	name := fmt.Sprintf("product %d", productID)
	if product, err := p.catalog.ProductByID(ctx, productID); err == nil {
		name = product.Name
		if product.Company != "" {
			name = product.Company + " " + product.Name
		}
	}
	p.productNames[productID] = name
	return name
}

func (p *Processor) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Processor) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
