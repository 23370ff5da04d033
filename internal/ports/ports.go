package ports

import (
	"context"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
)

// FetchRequest carries everything an adapter needs for one page.
type FetchRequest struct {
	AppID    string
	PageSize int
	// Cursor is the opaque continuation token from the previous page; empty
	// on the first call.
	Cursor string
	// StartDate, when set, bounds the stream from below: the adapter stops
	// returning records once enough older items are seen across the run.
	StartDate *time.Time
	// OlderSeen is the cumulative count of older-than-boundary records
	// observed on earlier pages of this run; the adapter resumes its
	// soft-stop counting from it rather than starting fresh per page.
	OlderSeen int
	Country   string
	Language  string
}

// Page is the result of a single adapter fetch. An empty NextCursor signals
// exhaustion (or a soft stop at the date boundary).
type Page struct {
	Records    []domain.Review
	NextCursor string
	// OlderSeen is the updated cumulative older-than-boundary count after
	// this page; the caller threads it into the next FetchRequest.
	OlderSeen int
}

// SourceAdapter fetches one page of raw reviews from a platform and
// normalizes them into the common record shape. Implementations own their
// platform's pagination quirks and fragile parsing; network I/O only.
type SourceAdapter interface {
	Name() string
	FetchPage(ctx context.Context, req FetchRequest) (Page, error)
}

// ReviewStore is the deduplicating persistence gateway for reviews.
type ReviewStore interface {
	// UpsertBatch inserts-or-updates records keyed by
	// (platform_id, platform_review_id) and returns how many rows were
	// newly inserted. Partial chunk failures return the count achieved so
	// far without an error.
	UpsertBatch(ctx context.Context, reviews []domain.Review) (int, error)
	// LatestReviewDate returns the newest persisted review date for the
	// pair, or nil when no prior reviews exist.
	LatestReviewDate(ctx context.Context, productID, platformID int64) (*time.Time, error)
	Unprocessed(ctx context.Context, limit int) ([]domain.Review, error)
	MarkProcessed(ctx context.Context, reviewID int64, result domain.AnalysisResult) error
}

// JobStore is the append/merge-only collection-job ledger.
type JobStore interface {
	Create(ctx context.Context, job domain.CollectionJob) (int64, error)
	Update(ctx context.Context, jobID int64, update domain.JobUpdate) error
}

// Catalog resolves the immutable reference entities the pipeline targets.
type Catalog interface {
	PlatformByName(ctx context.Context, name string) (*domain.Platform, error)
	ActivePlatforms(ctx context.Context) ([]domain.Platform, error)
	ProductByID(ctx context.Context, id int64) (*domain.Product, error)
	ActiveProducts(ctx context.Context) ([]domain.Product, error)
	ProductByName(ctx context.Context, name, company string) (*domain.Product, error)
	ActiveMappings(ctx context.Context, productID int64) ([]domain.Mapping, error)
	ProductStats(ctx context.Context) ([]domain.ProductStats, error)
}

// Analyzer pushes review text to an AI service for sentiment and topic
// extraction. External collaborator; failures are per-review.
type Analyzer interface {
	Analyze(ctx context.Context, text, productContext string) (domain.AnalysisResult, error)
}
