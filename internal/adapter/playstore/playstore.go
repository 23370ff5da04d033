package playstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// Adapter pulls reviews from the Play-store review API: a newest-first JSON
// stream paginated by an opaque continuation token.
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
	return "playstore"
}

type reviewEntry struct {
	ReviewID      string    `json:"reviewId"`
	UserName      string    `json:"userName"`
	UserImage     string    `json:"userImage"`
	Content       string    `json:"content"`
	Score         int       `json:"score"`
	At            time.Time `json:"at"`
	ThumbsUpCount int       `json:"thumbsUpCount"`
	AppVersion    string    `json:"appVersion"`
}

type reviewsResponse struct {
	Reviews   []reviewEntry `json:"reviews"`
	NextToken string        `json:"nextToken"`
}

// FetchPage requests one token-delimited page and normalizes it. Records
// older than req.StartDate are dropped; once the soft-stop threshold of
// older records is crossed the returned cursor is empty.
func (a *Adapter) FetchPage(ctx context.Context, req ports.FetchRequest) (ports.Page, error) {
	pageURL, err := a.buildURL(req)
	if err != nil {
		return ports.Page{}, err
	}

	resp, err := a.fetch(ctx, pageURL)
	if err != nil {
		return ports.Page{}, err
	}

	tracker := adapter.ResumeBoundaryTracker(a.olderLimit, req.OlderSeen)
	records := make([]domain.Review, 0, len(resp.Reviews))

	for _, entry := range resp.Reviews {
		entry := entry
		if entry.ReviewID == "" {
			a.warn("skipping review without id")
			continue
		}
		if req.StartDate != nil && entry.At.Before(*req.StartDate) {
			if tracker.Observe() {
				a.debug("date boundary soft stop", "older_seen", tracker.Seen())
				return ports.Page{Records: records, OlderSeen: tracker.Seen()}, nil
			}
			continue
		}

		rec := domain.Review{
			PlatformReviewID: entry.ReviewID,
			Author:           entry.UserName,
			Content:          entry.Content,
			Rating:           entry.Score,
			ReviewDate:       entry.At.UTC(),
			HelpfulCount:     entry.ThumbsUpCount,
		}
		if entry.UserImage != "" {
			rec.AuthorID = &entry.UserImage
		}
		if entry.AppVersion != "" {
			rec.VersionReviewed = &entry.AppVersion
		}
		if req.Country != "" {
			cc := strings.ToUpper(req.Country)
			rec.CountryCode = &cc
		}
		if req.Language != "" {
			rec.LanguageCode = &req.Language
		}
		rec.Normalize()
		records = append(records, rec)
	}

	return ports.Page{Records: records, NextCursor: resp.NextToken, OlderSeen: tracker.Seen()}, nil
}

func (a *Adapter) buildURL(req ports.FetchRequest) (string, error) {
	parsed, err := url.Parse(a.baseURL + "/reviews")
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", a.baseURL, err)
	}

	query := parsed.Query()
	query.Set("appId", req.AppID)
	query.Set("count", strconv.Itoa(req.PageSize))
	query.Set("sort", "newest")
	if req.Country != "" {
		query.Set("country", req.Country)
	}
	if req.Language != "" {
		query.Set("lang", req.Language)
	}
	if req.Cursor != "" {
		query.Set("token", req.Cursor)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (a *Adapter) fetch(ctx context.Context, pageURL string) (*reviewsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "review-intelligence/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request reviews: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("play store returned %s", resp.Status)
	}

	var parsed reviewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}

	return &parsed, nil
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
