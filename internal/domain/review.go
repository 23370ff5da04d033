package domain

import (
	"strings"
	"time"
)

// Defaults applied during normalization when a source omits optional fields.
const (
	AnonymousAuthor = "Anonymous"
	FallbackRating  = 1
)

// Review is the normalized unit of collection shared by every platform
// adapter. Uniqueness is (PlatformID, PlatformReviewID); re-fetching the same
// review updates the stored row in place.
type Review struct {
	ID               int64      `db:"id"`
	ProductID        int64      `db:"product_id"`
	PlatformID       int64      `db:"platform_id"`
	PlatformReviewID string     `db:"platform_review_id"`
	Author           string     `db:"user_name"`
	AuthorID         *string    `db:"user_id"`
	Title            *string    `db:"title"`
	Content          string     `db:"content"`
	Rating           int        `db:"rating"`
	ReviewDate       time.Time  `db:"review_date"`
	CountryCode      *string    `db:"country_code"`
	LanguageCode     *string    `db:"language_code"`
	HelpfulCount     int        `db:"helpful_count"`
	TotalVotes       int        `db:"total_votes"`
	VerifiedPurchase *bool      `db:"verified_purchase"`
	VersionReviewed  *string    `db:"version_reviewed"`
	SourceURL        *string    `db:"review_source_url"`
	WordCount        int        `db:"word_count"`
	CharacterCount   int        `db:"character_count"`
	ProcessedAt      *time.Time `db:"processed_at"`
}

// Normalize fills documented defaults and derived counters. Adapters call it
// on every record before handing it to the orchestrator.
func (r *Review) Normalize() {
	if strings.TrimSpace(r.Author) == "" {
		r.Author = AnonymousAuthor
	}
	if r.Rating == 0 {
		r.Rating = FallbackRating
	}
	if r.ReviewDate.IsZero() {
		r.ReviewDate = time.Now().UTC()
	}
	r.WordCount = len(strings.Fields(r.Content))
	r.CharacterCount = len(r.Content)
}

// Platform is an immutable reference entity seeded once and referenced by id.
type Platform struct {
	ID              int64  `db:"id"`
	Name            string `db:"name"`
	DisplayName     string `db:"display_name"`
	BaseURL         string `db:"base_url"`
	ScrapingMethod  string `db:"scraping_method"`
	HourlyRateLimit int    `db:"hourly_rate_limit"`
	IsActive        bool   `db:"is_active"`
}

// Product is an immutable reference entity.
type Product struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Company  string `db:"company"`
	Category string `db:"category"`
	IsActive bool   `db:"is_active"`
}

// Mapping links a product to its platform-native listing identifier
// (package name, numeric app id, ASIN). IsActive soft-disables a mapping
// without deleting collected history.
type Mapping struct {
	ID                  int64  `db:"id"`
	ProductID           int64  `db:"product_id"`
	PlatformID          int64  `db:"platform_id"`
	PlatformAppID       string `db:"platform_app_id"`
	IsActive            bool   `db:"is_active"`
	ProductName         string `db:"product_name"`
	Company             string `db:"company"`
	PlatformName        string `db:"platform_name"`
	PlatformDisplayName string `db:"platform_display_name"`
}

// ProductStats summarizes collected history for scheduling decisions.
type ProductStats struct {
	ProductID        int64      `db:"product_id"`
	ReviewCount      int64      `db:"review_count"`
	LatestReviewDate *time.Time `db:"latest_review_date"`
}
