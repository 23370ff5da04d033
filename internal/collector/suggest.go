package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// priorityCategories get a small scoring bonus when suggesting targets.
var priorityCategories = map[string]bool{
	"security_suite": true,
	"antivirus":      true,
}

// Suggestion ranks a product for collection. The score is advisory only;
// nothing enforces the ordering.
type Suggestion struct {
	Product     domain.Product
	Score       int
	Reasons     []string
	Platforms   int
	ReviewCount int64
}

// SuggestTargets scores products by collection urgency: empty history
// first, then staleness, with a small bonus for multi-platform coverage and
// priority categories. Products without active mappings are skipped.
func SuggestTargets(ctx context.Context, catalog ports.Catalog, now time.Time) ([]Suggestion, error) {
	products, err := catalog.ActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	stats, err := catalog.ProductStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load product stats: %w", err)
	}
	statsByProduct := make(map[int64]domain.ProductStats, len(stats))
	for _, s := range stats {
		statsByProduct[s.ProductID] = s
	}

	var suggestions []Suggestion
	for _, product := range products {
		mappings, err := catalog.ActiveMappings(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("load mappings for product %d: %w", product.ID, err)
		}
		if len(mappings) == 0 {
			continue
		}

		suggestion := Suggestion{Product: product, Platforms: len(mappings)}
		stat, hasStats := statsByProduct[product.ID]
		if hasStats {
			suggestion.ReviewCount = stat.ReviewCount
		}

		switch {
		case !hasStats || stat.ReviewCount == 0:
			suggestion.Score += 10
			suggestion.Reasons = append(suggestion.Reasons, "no reviews yet")
		case stat.LatestReviewDate != nil:
			daysOld := int(now.Sub(*stat.LatestReviewDate).Hours() / 24)
			if daysOld > 90 {
				suggestion.Score += 8
				suggestion.Reasons = append(suggestion.Reasons, fmt.Sprintf("latest review %d days old", daysOld))
			} else if daysOld > 30 {
				suggestion.Score += 5
				suggestion.Reasons = append(suggestion.Reasons, fmt.Sprintf("latest review %d days old", daysOld))
			}
		}

		if len(mappings) > 1 {
			suggestion.Score += 2
			suggestion.Reasons = append(suggestion.Reasons, fmt.Sprintf("%d platforms available", len(mappings)))
		}

		if priorityCategories[product.Category] {
			suggestion.Score += 3
			suggestion.Reasons = append(suggestion.Reasons, "high-priority category")
		}

		if suggestion.Score > 0 {
			suggestions = append(suggestions, suggestion)
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	return suggestions, nil
}
