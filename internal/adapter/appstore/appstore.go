package appstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// maxFeedPages is the upstream cap on the customer-reviews RSS feed.
const maxFeedPages = 10

// Adapter reads the app-store customer-reviews JSON feed, paginated by page
// number (the cursor is the next page rendered as a decimal string).
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
	return "appstore"
}

type feedLabel struct {
	Label string `json:"label"`
}

type feedEntry struct {
	ID      feedLabel `json:"id"`
	Author  struct {
		Name feedLabel `json:"name"`
	} `json:"author"`
	Title   feedLabel `json:"title"`
	Content feedLabel `json:"content"`
	Rating  feedLabel `json:"im:rating"`
	Version feedLabel `json:"im:version"`
	VoteSum feedLabel `json:"im:voteSum"`
	Votes   feedLabel `json:"im:voteCount"`
	Updated feedLabel `json:"updated"`
}

type feedResponse struct {
	Feed struct {
		Entry []feedEntry `json:"entry"`
	} `json:"feed"`
}

// FetchPage requests one feed page. A missing rating marks the entry as app
// metadata rather than a review and it is skipped; other malformed fields get
// safe defaults so a single bad entry never aborts the page.
func (a *Adapter) FetchPage(ctx context.Context, req ports.FetchRequest) (ports.Page, error) {
	page := 1
	if req.Cursor != "" {
		parsed, err := strconv.Atoi(req.Cursor)
		if err != nil {
			return ports.Page{}, fmt.Errorf("bad cursor %q: %w", req.Cursor, err)
		}
		page = parsed
	}

	country := req.Country
	if country == "" {
		country = "us"
	}

	feedURL := fmt.Sprintf("%s/%s/rss/customerreviews/page=%d/id=%s/sortby=mostrecent/json",
		a.baseURL, strings.ToLower(country), page, req.AppID)

	entries, err := a.fetch(ctx, feedURL)
	if err != nil {
		return ports.Page{}, err
	}
	if len(entries) == 0 {
		return ports.Page{}, nil
	}

	tracker := adapter.ResumeBoundaryTracker(a.olderLimit, req.OlderSeen)
	records := make([]domain.Review, 0, len(entries))

	for _, entry := range entries {
		if entry.Rating.Label == "" {
			// App metadata entry at the head of the feed.
			continue
		}
		if entry.ID.Label == "" {
			a.warn("skipping review without id", "page", page)
			continue
		}

		reviewDate := time.Now().UTC()
		if entry.Updated.Label != "" {
			if parsed, err := time.Parse(time.RFC3339, entry.Updated.Label); err == nil {
				reviewDate = parsed.UTC()
			}
		}

		if req.StartDate != nil && reviewDate.Before(*req.StartDate) {
			if tracker.Observe() {
				a.debug("date boundary soft stop", "older_seen", tracker.Seen())
				return ports.Page{Records: records, OlderSeen: tracker.Seen()}, nil
			}
			continue
		}

		rating, err := strconv.Atoi(entry.Rating.Label)
		if err != nil || rating < 1 {
			rating = domain.FallbackRating
		}

		rec := domain.Review{
			PlatformReviewID: entry.ID.Label,
			Author:           entry.Author.Name.Label,
			Content:          entry.Content.Label,
			Rating:           rating,
			ReviewDate:       reviewDate,
		}
		if entry.Title.Label != "" {
			title := entry.Title.Label
			rec.Title = &title
		}
		if entry.Version.Label != "" {
			version := entry.Version.Label
			rec.VersionReviewed = &version
		}
		if sum, err := strconv.Atoi(entry.VoteSum.Label); err == nil {
			rec.HelpfulCount = sum
		}
		if votes, err := strconv.Atoi(entry.Votes.Label); err == nil {
			rec.TotalVotes = votes
		}
		cc := strings.ToUpper(country)
		rec.CountryCode = &cc
		rec.Normalize()
		records = append(records, rec)
	}

	next := ""
	if page < maxFeedPages {
		next = strconv.Itoa(page + 1)
	}
	return ports.Page{Records: records, NextCursor: next, OlderSeen: tracker.Seen()}, nil
}

func (a *Adapter) fetch(ctx context.Context, feedURL string) ([]feedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "review-intelligence/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("app store returned %s", resp.Status)
	}

	var parsed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	return parsed.Feed.Entry, nil
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Adapter) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
