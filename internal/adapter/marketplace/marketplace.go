package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// Adapter scrapes marketplace product-review pages sorted newest-first. The
// cursor is the page number as a decimal string.
type Adapter struct {
	baseURL    string
	client     *http.Client
	olderLimit int
	logger     *slog.Logger
}

var _ ports.SourceAdapter = (*Adapter)(nil)

// New wires an HTTP client; a nil client gets a 20s-timeout default.
func New(baseURL string, client *http.Client, olderLimit int, logger *slog.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Adapter{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     client,
		olderLimit: olderLimit,
		logger:     logger,
	}
}

// Name identifies the adapter inside the registry.
func (a *Adapter) Name() string {
	return "marketplace"
}

// FetchPage scrapes one review page. Items with missing DOM fragments get
// safe defaults (rating 1, current timestamp, anonymous author) so one
// malformed block never aborts the batch. An empty page signals exhaustion.
func (a *Adapter) FetchPage(ctx context.Context, req ports.FetchRequest) (ports.Page, error) {
	page := 1
	if req.Cursor != "" {
		parsed, err := strconv.Atoi(req.Cursor)
		if err != nil {
			return ports.Page{}, fmt.Errorf("bad cursor %q: %w", req.Cursor, err)
		}
		page = parsed
	}

	pageURL := fmt.Sprintf("%s/product-reviews/%s/?pageNumber=%d&sortBy=recent", a.baseURL, req.AppID, page)

	doc, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return ports.Page{}, err
	}

	items := doc.Find(`div[data-hook="review"]`)
	if items.Length() == 0 {
		return ports.Page{}, nil
	}

	tracker := adapter.ResumeBoundaryTracker(a.olderLimit, req.OlderSeen)
	records := make([]domain.Review, 0, items.Length())
	olderOnPage := 0
	softStop := false

	items.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		rec := parseItem(sel, pageURL, page, i)

		if req.StartDate != nil && rec.ReviewDate.Before(*req.StartDate) {
			olderOnPage++
			if tracker.Observe() {
				softStop = true
				return false
			}
			return true
		}

		records = append(records, rec)
		return true
	})

	if softStop {
		a.debug("date boundary soft stop", "page", page, "older_seen", tracker.Seen())
		return ports.Page{Records: records, OlderSeen: tracker.Seen()}, nil
	}

	// An entirely pre-boundary page means nothing newer remains below.
	if req.StartDate != nil && olderOnPage == items.Length() {
		a.debug("page entirely before start date", "page", page)
		return ports.Page{Records: records, OlderSeen: tracker.Seen()}, nil
	}

	return ports.Page{Records: records, NextCursor: strconv.Itoa(page + 1), OlderSeen: tracker.Seen()}, nil
}

func parseItem(sel *goquery.Selection, pageURL string, page, index int) domain.Review {
	id, ok := sel.Attr("id")
	if !ok || id == "" {
		id = fmt.Sprintf("marketplace_%d_%d", page, index)
	}

	rec := domain.Review{
		PlatformReviewID: id,
		Author:           strings.TrimSpace(sel.Find("span.a-profile-name").First().Text()),
		Content:          strings.TrimSpace(sel.Find(`span[data-hook="review-body"]`).First().Text()),
		Rating:           parseRating(sel.Find(`i[data-hook="review-star-rating"]`).First().Text()),
		ReviewDate:       parseReviewDate(sel.Find(`span[data-hook="review-date"]`).First().Text()),
		HelpfulCount:     parseHelpful(sel.Find(`span[data-hook="helpful-vote-statement"]`).First().Text()),
	}

	if title := strings.TrimSpace(sel.Find(`a[data-hook="review-title"]`).First().Text()); title != "" {
		rec.Title = &title
	}

	verified := sel.Find(`span[data-hook="avp-badge"]`).Length() > 0
	rec.VerifiedPurchase = &verified
	rec.SourceURL = &pageURL

	rec.Normalize()
	return rec
}

// parseRating reads "4.0 out of 5 stars"; absent or unparsable blocks
// default to the lowest rating rather than failing the item.
func parseRating(text string) int {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return domain.FallbackRating
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || value < 1 {
		return domain.FallbackRating
	}
	return int(value)
}

// parseReviewDate reads "Reviewed in the United States on March 15, 2024";
// a missing or unparsable date block defaults to the current timestamp.
func parseReviewDate(text string) time.Time {
	_, after, found := strings.Cut(text, "on ")
	if !found {
		return time.Now().UTC()
	}
	parsed, err := time.Parse("January 2, 2006", strings.TrimSpace(after))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func parseHelpful(text string) int {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		if strings.Contains(strings.ToLower(text), "one person") {
			return 1
		}
		return 0
	}
	value, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return value
}

func (a *Adapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketplace returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
