package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/app"
	"github.com/yvh1223/antivirus-market-intelligence/internal/collector"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
)

type options struct {
	action       string
	productIDs   string
	platform     string
	allEmpty     bool
	allOutdated  bool
	outdatedDays int
	maxReviews   int
	incremental  bool
	daysBack     int
}

func main() {
	var opts options
	flag.StringVar(&opts.action, "action", "list", "one of: list, suggest, collect, batch")
	flag.StringVar(&opts.productIDs, "product_ids", "", "comma-separated product ids for -action collect")
	flag.StringVar(&opts.platform, "platform", "", "restrict collection to one platform")
	flag.BoolVar(&opts.allEmpty, "all_empty", false, "collect every product without persisted reviews")
	flag.BoolVar(&opts.allOutdated, "all_outdated", false, "collect every product whose latest review is older than -outdated_days")
	flag.IntVar(&opts.outdatedDays, "outdated_days", 30, "staleness threshold for -all_outdated")
	flag.IntVar(&opts.maxReviews, "max_reviews", 500, "maximum reviews per product/platform pair")
	flag.BoolVar(&opts.incremental, "incremental", false, "start each run from the latest persisted review date")
	flag.IntVar(&opts.daysBack, "days_back", 0, "collect reviews newer than N days ago")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	switch opts.action {
	case "list":
		return listProducts(ctx, application)
	case "suggest":
		return suggestProducts(ctx, application)
	case "collect", "batch":
		return collect(ctx, application, opts)
	default:
		return fmt.Errorf("unknown action %q: %w", opts.action, domain.ErrInvalidInput)
	}
}

func listProducts(ctx context.Context, application *app.App) error {
	products, err := application.Catalog.ActiveProducts(ctx)
	if err != nil {
		return err
	}
	stats, err := application.Catalog.ProductStats(ctx)
	if err != nil {
		return err
	}
	statsByProduct := make(map[int64]domain.ProductStats, len(stats))
	for _, s := range stats {
		statsByProduct[s.ProductID] = s
	}

	fmt.Printf("%-5s %-30s %-20s %10s %12s\n", "ID", "PRODUCT", "COMPANY", "REVIEWS", "LATEST")
	for _, product := range products {
		reviews := int64(0)
		latest := "-"
		if s, ok := statsByProduct[product.ID]; ok {
			reviews = s.ReviewCount
			if s.LatestReviewDate != nil {
				latest = s.LatestReviewDate.Format("2006-01-02")
			}
		}
		fmt.Printf("%-5d %-30s %-20s %10d %12s\n", product.ID, product.Name, product.Company, reviews, latest)
	}
	return nil
}

func suggestProducts(ctx context.Context, application *app.App) error {
	suggestions, err := collector.SuggestTargets(ctx, application.Catalog, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		fmt.Println("nothing to suggest: all products are up to date")
		return nil
	}

	for _, s := range suggestions {
		fmt.Printf("[%2d] %s (%s): %s\n", s.Score, s.Product.Name, s.Product.Company, strings.Join(s.Reasons, ", "))
	}
	return nil
}

func collect(ctx context.Context, application *app.App, opts options) error {
	ids, err := selectProducts(ctx, application, opts)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no products selected: pass -product_ids, -all_empty or -all_outdated: %w", domain.ErrInvalidInput)
	}

	specs := make([]collector.TargetSpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, collector.TargetSpec{ProductID: id, PlatformFilter: opts.platform})
	}

	results := application.Scheduler.RunBatch(ctx, specs, collector.RunOptions{
		MaxItems: opts.maxReviews,
		PageSize: application.Config.Collection.PageSize,
		Start:    collector.StartSpec{DaysBack: opts.daysBack, Auto: opts.incremental},
	})

	failures := 0
	for _, result := range results {
		if result.Err != nil {
			failures++
			fmt.Printf("FAIL %s (%d): %v\n", result.ProductName, result.ProductID, result.Err)
			continue
		}
		fmt.Printf("ok   %s (%s): found %d, persisted %d across %d platforms\n",
			result.ProductName, result.Company, result.Found, result.Persisted, len(result.Platforms))
		for _, platform := range result.Platforms {
			if platform.Err != nil {
				fmt.Printf("     %s: %v\n", platform.Platform, platform.Err)
			}
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d products failed", failures, len(results))
	}
	return nil
}

func selectProducts(ctx context.Context, application *app.App, opts options) ([]int64, error) {
	if opts.productIDs != "" {
		return parseIDs(opts.productIDs)
	}
	if !opts.allEmpty && !opts.allOutdated {
		return nil, nil
	}

	products, err := application.Catalog.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := application.Catalog.ProductStats(ctx)
	if err != nil {
		return nil, err
	}
	statsByProduct := make(map[int64]domain.ProductStats, len(stats))
	for _, s := range stats {
		statsByProduct[s.ProductID] = s
	}

	now := time.Now().UTC()
	staleAfter := time.Duration(opts.outdatedDays) * 24 * time.Hour
	var ids []int64
	for _, product := range products {
		s, ok := statsByProduct[product.ID]
		empty := !ok || s.ReviewCount == 0
		outdated := ok && s.LatestReviewDate != nil && now.Sub(*s.LatestReviewDate) > staleAfter

		if (opts.allEmpty && empty) || (opts.allOutdated && outdated) {
			ids = append(ids, product.ID)
		}
	}
	return ids, nil
}

func parseIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid product id %q: %w", part, domain.ErrInvalidInput)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
