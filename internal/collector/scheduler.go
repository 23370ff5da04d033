package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// TargetSpec selects one product for a batch run, optionally narrowed to a
// single platform.
type TargetSpec struct {
	ProductID      int64
	PlatformFilter string
}

// Locale carries the configured storefront country and language for one
// platform.
type Locale struct {
	Country  string
	Language string
}

// PlatformResult reports one (product, platform) run inside a batch.
type PlatformResult struct {
	Platform  string
	JobID     int64
	Found     int
	Persisted int
	Err       error
}

// ProductResult aggregates the per-platform outcomes for one product.
type ProductResult struct {
	ProductID   int64
	ProductName string
	Company     string
	Found       int
	Persisted   int
	Platforms   []PlatformResult
	Err         error
}

// Scheduler fans the orchestrator out across many product/platform pairs
// sequentially. One target's failure is recorded and never aborts the rest
// of the queue.
type Scheduler struct {
	catalog      ports.Catalog
	orchestrator *Orchestrator
	registry     *adapter.Registry
	locales      map[string]Locale
	targetDelay  time.Duration
	logger       *slog.Logger

	limiters map[int64]*rate.Limiter
}

// NewScheduler wires the catalog, the orchestrator and the adapter registry.
// locales maps platform names to their configured storefront country and
// language; platforms absent from the map run with the adapter defaults.
func NewScheduler(catalog ports.Catalog, orchestrator *Orchestrator, registry *adapter.Registry, locales map[string]Locale, targetDelay time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		catalog:      catalog,
		orchestrator: orchestrator,
		registry:     registry,
		locales:      locales,
		targetDelay:  targetDelay,
		logger:       logger,
		limiters:     map[int64]*rate.Limiter{},
	}
}

// RunBatch collects every target sequentially with a fixed pause between
// runs and returns structured per-target results.
func (s *Scheduler) RunBatch(ctx context.Context, specs []TargetSpec, opts RunOptions) []ProductResult {
	results := make([]ProductResult, 0, len(specs))

	for i, spec := range specs {
		result := s.runProduct(ctx, spec, opts)
		results = append(results, result)

		if result.Err != nil {
			s.warn("product collection failed", "product_id", spec.ProductID, "error", result.Err)
		}

		if i < len(specs)-1 && s.targetDelay > 0 {
			select {
			case <-time.After(s.targetDelay):
			case <-ctx.Done():
				return results
			}
		}
	}

	return results
}

func (s *Scheduler) runProduct(ctx context.Context, spec TargetSpec, opts RunOptions) ProductResult {
	result := ProductResult{ProductID: spec.ProductID}

	product, err := s.catalog.ProductByID(ctx, spec.ProductID)
	if err != nil {
		result.Err = fmt.Errorf("resolve product %d: %w", spec.ProductID, err)
		return result
	}
	result.ProductName = product.Name
	result.Company = product.Company

	mappings, err := s.catalog.ActiveMappings(ctx, spec.ProductID)
	if err != nil {
		result.Err = fmt.Errorf("load mappings: %w", err)
		return result
	}
	if len(mappings) == 0 {
		result.Err = fmt.Errorf("product %s: %w", product.Name, domain.ErrNoMapping)
		return result
	}

	for _, mapping := range mappings {
		if spec.PlatformFilter != "" && mapping.PlatformName != spec.PlatformFilter {
			continue
		}

		platformResult := s.runPlatform(ctx, mapping, opts)
		result.Platforms = append(result.Platforms, platformResult)
		result.Found += platformResult.Found
		result.Persisted += platformResult.Persisted

		if platformResult.Err != nil {
			s.warn("platform collection failed",
				"product", product.Name, "platform", mapping.PlatformName, "error", platformResult.Err)
		}
	}

	return result
}

func (s *Scheduler) runPlatform(ctx context.Context, mapping domain.Mapping, opts RunOptions) PlatformResult {
	result := PlatformResult{Platform: mapping.PlatformName}

	sourceAdapter, err := s.registry.Resolve(mapping.PlatformName)
	if err != nil {
		result.Err = err
		return result
	}

	locale := s.locales[mapping.PlatformName]
	runResult, err := s.orchestrator.Run(ctx, sourceAdapter, Target{
		ProductID:  mapping.ProductID,
		PlatformID: mapping.PlatformID,
		AppID:      mapping.PlatformAppID,
		Country:    locale.Country,
		Language:   locale.Language,
	}, s.limiterFor(ctx, mapping.PlatformID), opts)

	result.JobID = runResult.JobID
	result.Found = runResult.Found
	result.Persisted = runResult.Persisted
	result.Err = err
	return result
}

// limiterFor caches one pacing limiter per platform so consecutive targets
// on the same platform share the quota.
func (s *Scheduler) limiterFor(ctx context.Context, platformID int64) *rate.Limiter {
	if limiter, ok := s.limiters[platformID]; ok {
		return limiter
	}

	hourly := 0
	if platforms, err := s.catalog.ActivePlatforms(ctx); err == nil {
		for _, p := range platforms {
			if p.ID == platformID {
				hourly = p.HourlyRateLimit
				break
			}
		}
	}

	limiter := NewLimiter(hourly)
	s.limiters[platformID] = limiter
	return limiter
}

func (s *Scheduler) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
