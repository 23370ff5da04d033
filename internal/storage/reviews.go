package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

const defaultChunkSize = 1000

var reviewInsertColumns = []string{
	"product_id", "platform_id", "platform_review_id", "user_name", "user_id",
	"title", "content", "rating", "review_date", "country_code",
	"language_code", "helpful_count", "total_votes", "verified_purchase",
	"version_reviewed", "review_source_url", "word_count", "character_count",
}

var reviewSelectColumns = append([]string{"id"}, append(append([]string{}, reviewInsertColumns...), "processed_at")...)

// ReviewRepo is the deduplicating persistence gateway backed by Postgres.
// The (platform_id, platform_review_id) uniqueness constraint is the sole
// concurrency-safety mechanism; no in-process locking.
type ReviewRepo struct {
	q          Querier
	chunkSize  int
	chunkDelay time.Duration
	logger     *slog.Logger
}

var _ ports.ReviewStore = (*ReviewRepo)(nil)

// NewReviewRepo wires a querier. chunkSize < 1 falls back to 1000.
func NewReviewRepo(q Querier, chunkSize int, chunkDelay time.Duration, logger *slog.Logger) *ReviewRepo {
	if chunkSize < 1 {
		chunkSize = defaultChunkSize
	}
	return &ReviewRepo{q: q, chunkSize: chunkSize, chunkDelay: chunkDelay, logger: logger}
}

// UpsertBatch writes records in fixed-size chunks with a short pause between
// them. Conflicting keys are overwritten last-write-wins. The returned count
// covers newly inserted rows only, so a repeat run over unchanged data
// reports zero. A failing chunk ends the batch and returns the count
// achieved so far without an error.
func (r *ReviewRepo) UpsertBatch(ctx context.Context, reviews []domain.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	inserted := 0
	chunks := (len(reviews) + r.chunkSize - 1) / r.chunkSize

	for i := 0; i < len(reviews); i += r.chunkSize {
		end := i + r.chunkSize
		if end > len(reviews) {
			end = len(reviews)
		}
		chunk := reviews[i:end]

		count, err := r.upsertChunk(ctx, chunk)
		inserted += count
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("chunk upsert failed, keeping earlier chunks",
					"chunk", i/r.chunkSize+1, "chunks", chunks, "error", err)
			}
			return inserted, nil
		}

		if end < len(reviews) && r.chunkDelay > 0 {
			select {
			case <-time.After(r.chunkDelay):
			case <-ctx.Done():
				return inserted, nil
			}
		}
	}

	return inserted, nil
}

func (r *ReviewRepo) upsertChunk(ctx context.Context, chunk []domain.Review) (int, error) {
	insert := Builder().
		Insert("reviews").
		Columns(reviewInsertColumns...)

	for _, rec := range chunk {
		insert = insert.Values(
			rec.ProductID, rec.PlatformID, rec.PlatformReviewID, rec.Author,
			rec.AuthorID, rec.Title, rec.Content, rec.Rating, rec.ReviewDate,
			rec.CountryCode, rec.LanguageCode, rec.HelpfulCount, rec.TotalVotes,
			rec.VerifiedPurchase, rec.VersionReviewed, rec.SourceURL,
			rec.WordCount, rec.CharacterCount,
		)
	}

	insert = insert.Suffix(`ON CONFLICT (platform_id, platform_review_id) DO UPDATE SET
		user_name = EXCLUDED.user_name,
		user_id = EXCLUDED.user_id,
		title = EXCLUDED.title,
		content = EXCLUDED.content,
		rating = EXCLUDED.rating,
		review_date = EXCLUDED.review_date,
		country_code = EXCLUDED.country_code,
		language_code = EXCLUDED.language_code,
		helpful_count = EXCLUDED.helpful_count,
		total_votes = EXCLUDED.total_votes,
		verified_purchase = EXCLUDED.verified_purchase,
		version_reviewed = EXCLUDED.version_reviewed,
		review_source_url = EXCLUDED.review_source_url,
		word_count = EXCLUDED.word_count,
		character_count = EXCLUDED.character_count
		RETURNING (xmax = 0) AS inserted`)

	sql, args, err := insert.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("upsert chunk: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var freshInsert bool
		if err := rows.Scan(&freshInsert); err != nil {
			return count, fmt.Errorf("scan upsert result: %w", err)
		}
		if freshInsert {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("upsert rows: %w", err)
	}

	return count, nil
}

// LatestReviewDate returns the newest persisted review date for the pair or
// nil when no history exists.
func (r *ReviewRepo) LatestReviewDate(ctx context.Context, productID, platformID int64) (*time.Time, error) {
	query := Builder().
		Select("MAX(review_date)").
		From("reviews").
		Where(squirrel.Eq{"product_id": productID, "platform_id": platformID})

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest-date query: %w", err)
	}

	var latest *time.Time
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&latest); err != nil {
		return nil, fmt.Errorf("query latest date: %w", err)
	}

	return latest, nil
}

// Unprocessed returns reviews the analysis stage has not touched yet.
func (r *ReviewRepo) Unprocessed(ctx context.Context, limit int) ([]domain.Review, error) {
	query := Builder().
		Select(reviewSelectColumns...).
		From("reviews").
		Where("processed_at IS NULL").
		OrderBy("id").
		Limit(uint64(limit))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unprocessed query: %w", err)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed: %w", err)
	}

	var reviews []domain.Review
	if err := pgxscan.ScanAll(&reviews, rows); err != nil {
		return nil, fmt.Errorf("scan unprocessed: %w", err)
	}

	return reviews, nil
}

// MarkProcessed attaches analysis results to a review in place.
func (r *ReviewRepo) MarkProcessed(ctx context.Context, reviewID int64, result domain.AnalysisResult) error {
	topics, err := json.Marshal(result.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}

	update := Builder().
		Update("reviews").
		Set("sentiment_score", result.SentimentScore).
		Set("sentiment_label", result.SentimentLabel).
		Set("sentiment_confidence", result.SentimentConfidence).
		Set("key_topics", topics).
		Set("priority_level", result.PriorityLevel).
		Set("ai_summary", result.Summary).
		Set("ai_model_used", result.ModelUsed).
		Set("processed_at", result.ProcessedAt).
		Where(squirrel.Eq{"id": reviewID})

	sql, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build processed update: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("review %d: %w", reviewID, domain.ErrNotFound)
	}

	return nil
}
