package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// safetyBuffer is subtracted from the auto-detected latest review date to
// tolerate clock skew and late-arriving reviews with earlier reported dates.
const safetyBuffer = 24 * time.Hour

// StartSpec selects how the lower collection boundary is derived.
type StartSpec struct {
	// Explicit wins over everything else.
	Explicit *time.Time
	// DaysBack computes the boundary relative to now.
	DaysBack int
	// Auto detects the latest persisted review date for the pair.
	Auto bool
}

// CursorResolver computes the starting boundary for a collection run from
// persisted state. Pure read; no side effects.
type CursorResolver struct {
	reviews ports.ReviewStore
	now     func() time.Time
}

// NewCursorResolver wires the review store; now defaults to time.Now.
func NewCursorResolver(reviews ports.ReviewStore, now func() time.Time) *CursorResolver {
	if now == nil {
		now = time.Now
	}
	return &CursorResolver{reviews: reviews, now: now}
}

// ResolveStart applies the precedence explicit > days-back > auto-detected
// latest date minus a one-day buffer. A nil result means no boundary: the
// run collects the full history.
func (r *CursorResolver) ResolveStart(ctx context.Context, productID, platformID int64, spec StartSpec) (*time.Time, error) {
	if spec.Explicit != nil {
		start := spec.Explicit.UTC()
		return &start, nil
	}

	if spec.DaysBack > 0 {
		start := r.now().UTC().AddDate(0, 0, -spec.DaysBack)
		return &start, nil
	}

	if spec.Auto {
		latest, err := r.reviews.LatestReviewDate(ctx, productID, platformID)
		if err != nil {
			return nil, fmt.Errorf("detect latest review date: %w", err)
		}
		if latest != nil {
			start := latest.UTC().Add(-safetyBuffer)
			return &start, nil
		}
	}

	return nil, nil
}
