package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// CatalogRepo reads the immutable reference entities: platforms, products,
// and the mappings joining them.
type CatalogRepo struct {
	q Querier
}

var _ ports.Catalog = (*CatalogRepo)(nil)

// NewCatalogRepo wires a querier.
func NewCatalogRepo(q Querier) *CatalogRepo {
	return &CatalogRepo{q: q}
}

var platformColumns = []string{"id", "name", "display_name", "base_url", "scraping_method", "hourly_rate_limit", "is_active"}
var productColumns = []string{"id", "name", "company", "category", "is_active"}

// PlatformByName resolves a platform or reports ErrUnknownPlatform.
func (r *CatalogRepo) PlatformByName(ctx context.Context, name string) (*domain.Platform, error) {
	query := Builder().
		Select(platformColumns...).
		From("platforms").
		Where(squirrel.Eq{"name": name})

	var platform domain.Platform
	if err := r.getOne(ctx, query, &platform); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("platform %s: %w", name, domain.ErrUnknownPlatform)
		}
		return nil, err
	}
	return &platform, nil
}

// ActivePlatforms lists platforms available for collection.
func (r *CatalogRepo) ActivePlatforms(ctx context.Context) ([]domain.Platform, error) {
	query := Builder().
		Select(platformColumns...).
		From("platforms").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("display_name")

	var platforms []domain.Platform
	if err := r.list(ctx, query, &platforms); err != nil {
		return nil, err
	}
	return platforms, nil
}

// ActiveProducts lists products eligible for collection.
func (r *CatalogRepo) ActiveProducts(ctx context.Context) ([]domain.Product, error) {
	query := Builder().
		Select(productColumns...).
		From("products").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("company", "name")

	var products []domain.Product
	if err := r.list(ctx, query, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ProductByID resolves a product by primary key.
func (r *CatalogRepo) ProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := Builder().
		Select(productColumns...).
		From("products").
		Where(squirrel.Eq{"id": id})

	var product domain.Product
	if err := r.getOne(ctx, query, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductByName resolves a product by name, optionally narrowed by company.
func (r *CatalogRepo) ProductByName(ctx context.Context, name, company string) (*domain.Product, error) {
	query := Builder().
		Select(productColumns...).
		From("products").
		Where(squirrel.Eq{"name": name})
	if company != "" {
		query = query.Where(squirrel.Eq{"company": company})
	}

	var product domain.Product
	if err := r.getOne(ctx, query, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ActiveMappings returns the product's active platform mappings joined with
// product and platform names for reporting.
func (r *CatalogRepo) ActiveMappings(ctx context.Context, productID int64) ([]domain.Mapping, error) {
	query := Builder().
		Select(
			"ppm.id", "ppm.product_id", "ppm.platform_id", "ppm.platform_app_id", "ppm.is_active",
			"p.name AS product_name", "p.company",
			"pl.name AS platform_name", "pl.display_name AS platform_display_name",
		).
		From("product_platform_mappings ppm").
		Join("products p ON ppm.product_id = p.id").
		Join("platforms pl ON ppm.platform_id = pl.id").
		Where(squirrel.Eq{"ppm.is_active": true, "ppm.product_id": productID}).
		OrderBy("pl.display_name")

	var mappings []domain.Mapping
	if err := r.list(ctx, query, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

// ProductStats aggregates collected history per product for the scheduler's
// prioritization heuristic.
func (r *CatalogRepo) ProductStats(ctx context.Context) ([]domain.ProductStats, error) {
	query := Builder().
		Select("product_id", "COUNT(*) AS review_count", "MAX(review_date) AS latest_review_date").
		From("reviews").
		GroupBy("product_id")

	var stats []domain.ProductStats
	if err := r.list(ctx, query, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *CatalogRepo) getOne(ctx context.Context, query squirrel.SelectBuilder, dest any) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if err := pgxscan.ScanOne(dest, rows); err != nil {
		if pgxscan.NotFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

func (r *CatalogRepo) list(ctx context.Context, query squirrel.SelectBuilder, dest any) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if err := pgxscan.ScanAll(dest, rows); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}
