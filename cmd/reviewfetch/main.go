package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/app"
	"github.com/yvh1223/antivirus-market-intelligence/internal/collector"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
)

type options struct {
	platform    string
	appID       string
	productID   int64
	productName string
	company     string
	maxReviews  int
	country     string
	language    string
	incremental bool
	startDate   string
	daysBack    int
}

func main() {
	var opts options
	flag.StringVar(&opts.platform, "platform", "", "platform name (google_play, apple_store, amazon)")
	flag.StringVar(&opts.appID, "app_id", "", "platform-specific app or listing id (defaults to the catalog mapping)")
	flag.Int64Var(&opts.productID, "product_id", 0, "product id")
	flag.StringVar(&opts.productName, "product_name", "", "product name (alternative to -product_id)")
	flag.StringVar(&opts.company, "company", "", "company to disambiguate -product_name")
	flag.IntVar(&opts.maxReviews, "max_reviews", 100, "maximum reviews to collect")
	flag.StringVar(&opts.country, "country", "us", "storefront country code")
	flag.StringVar(&opts.language, "language", "en", "review language")
	flag.BoolVar(&opts.incremental, "incremental", false, "start from the latest persisted review date")
	flag.StringVar(&opts.startDate, "start_date", "", "explicit collection boundary (YYYY-MM-DD)")
	flag.IntVar(&opts.daysBack, "days_back", 0, "collect reviews newer than N days ago")
	flag.Parse()

	if opts.platform == "" || (opts.productID == 0 && opts.productName == "") {
		fmt.Fprintln(os.Stderr, "usage: reviewfetch -platform <name> (-product_id <id> | -product_name <name>) [flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}

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

	product, err := resolveProduct(ctx, application, opts)
	if err != nil {
		return err
	}

	platform, err := application.Catalog.PlatformByName(ctx, opts.platform)
	if err != nil {
		return err
	}

	appID := opts.appID
	if appID == "" {
		appID, err = mappedAppID(ctx, application, product.ID, platform.ID)
		if err != nil {
			return err
		}
	}

	start, err := startSpec(opts)
	if err != nil {
		return err
	}

	sourceAdapter, err := application.Registry.Resolve(platform.Name)
	if err != nil {
		return err
	}

	result, err := application.Orchestrator.Run(ctx, sourceAdapter, collector.Target{
		ProductID:  product.ID,
		PlatformID: platform.ID,
		AppID:      appID,
		Country:    opts.country,
		Language:   opts.language,
	}, collector.NewLimiter(platform.HourlyRateLimit), collector.RunOptions{
		MaxItems: opts.maxReviews,
		PageSize: application.Config.Collection.PageSize,
		Start:    start,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s / %s: job %d found %d, persisted %d", product.Name, platform.DisplayName, result.JobID, result.Found, result.Persisted)
	if result.StartDate != nil {
		fmt.Printf(" (since %s)", result.StartDate.Format("2006-01-02"))
	}
	fmt.Println()
	return nil
}

func resolveProduct(ctx context.Context, application *app.App, opts options) (*domain.Product, error) {
	if opts.productID > 0 {
		return application.Catalog.ProductByID(ctx, opts.productID)
	}
	return application.Catalog.ProductByName(ctx, opts.productName, opts.company)
}

func mappedAppID(ctx context.Context, application *app.App, productID, platformID int64) (string, error) {
	mappings, err := application.Catalog.ActiveMappings(ctx, productID)
	if err != nil {
		return "", err
	}
	for _, mapping := range mappings {
		if mapping.PlatformID == platformID {
			return mapping.PlatformAppID, nil
		}
	}
	return "", fmt.Errorf("product %d has no mapping on platform %d: %w", productID, platformID, domain.ErrNoMapping)
}

func startSpec(opts options) (collector.StartSpec, error) {
	spec := collector.StartSpec{DaysBack: opts.daysBack, Auto: opts.incremental}
	if opts.startDate != "" {
		parsed, err := time.Parse("2006-01-02", opts.startDate)
		if err != nil {
			return spec, fmt.Errorf("invalid -start_date %q: %w", opts.startDate, err)
		}
		spec.Explicit = &parsed
	}
	return spec, nil
}
