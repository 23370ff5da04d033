package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvh1223/antivirus-market-intelligence/internal/config"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]domain.Review
	marked  []int64
	markErr error
}

func (f *fakeStore) UpsertBatch(context.Context, []domain.Review) (int, error) {
	return 0, nil
}

func (f *fakeStore) LatestReviewDate(context.Context, int64, int64) (*time.Time, error) {
	return nil, nil
}

func (f *fakeStore) Unprocessed(context.Context, int) ([]domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil, nil
	}
	next := f.batches[0]
	f.batches = f.batches[1:]
	return next, nil
}

func (f *fakeStore) MarkProcessed(_ context.Context, reviewID int64, _ domain.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, reviewID)
	return nil
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	failOn string
	texts  []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text, _ string) (domain.AnalysisResult, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return domain.AnalysisResult{}, errors.New("provider unavailable")
	}
	return domain.AnalysisResult{
		SentimentLabel: "neutral",
		PriorityLevel:  "low",
		ProcessedAt:    time.Now().UTC(),
	}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) PlatformByName(context.Context, string) (*domain.Platform, error) {
	return nil, domain.ErrUnknownPlatform
}
func (fakeCatalog) ActivePlatforms(context.Context) ([]domain.Platform, error) { return nil, nil }
func (fakeCatalog) ProductByID(_ context.Context, id int64) (*domain.Product, error) {
	return &domain.Product{ID: id, Name: "Total Shield", Company: "Vendor"}, nil
}
func (fakeCatalog) ActiveProducts(context.Context) ([]domain.Product, error) { return nil, nil }
func (fakeCatalog) ProductByName(context.Context, string, string) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}
func (fakeCatalog) ActiveMappings(context.Context, int64) ([]domain.Mapping, error) {
	return nil, nil
}
func (fakeCatalog) ProductStats(context.Context) ([]domain.ProductStats, error) { return nil, nil }

func reviewBatch(ids ...int64) []domain.Review {
	batch := make([]domain.Review, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, domain.Review{ID: id, ProductID: 1, Content: "fine"})
	}
	return batch
}

func testConfig() config.AnalysisConfig {
	return config.AnalysisConfig{BatchSize: 2, MaxConcurrent: 2, BatchPauseSec: 0}
}

func TestProcessorDrainsAllBatches(t *testing.T) {
	t.Parallel()

	store := &fakeStore{batches: [][]domain.Review{
		reviewBatch(1, 2),
		reviewBatch(3),
	}}
	p := NewProcessor(store, fakeCatalog{}, &fakeAnalyzer{}, testConfig(), nil)

	stats, err := p.Run(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, stats.Batches)
	assert.ElementsMatch(t, []int64{1, 2, 3}, store.marked)
}

func TestProcessorCountsPerReviewFailures(t *testing.T) {
	t.Parallel()

	store := &fakeStore{batches: [][]domain.Review{{
		{ID: 1, ProductID: 1, Content: "fine"},
		{ID: 2, ProductID: 1, Content: "broken review"},
	}}}
	p := NewProcessor(store, fakeCatalog{}, &fakeAnalyzer{failOn: "broken"}, testConfig(), nil)

	stats, err := p.Run(context.Background(), 0)

	require.NoError(t, err, "one review failing must not abort the run")
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, []int64{1}, store.marked)
}

func TestProcessorHonorsMaxBatches(t *testing.T) {
	t.Parallel()

	store := &fakeStore{batches: [][]domain.Review{
		reviewBatch(1, 2),
		reviewBatch(3, 4),
		reviewBatch(5, 6),
	}}
	p := NewProcessor(store, fakeCatalog{}, &fakeAnalyzer{}, testConfig(), nil)

	stats, err := p.Run(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, 2, stats.Processed)
}

func TestProcessorBuildsTextFromTitleAndContent(t *testing.T) {
	t.Parallel()

	title := "Crashes on startup"
	store := &fakeStore{batches: [][]domain.Review{{
		{ID: 1, ProductID: 1, Title: &title, Content: "stopped working after the update"},
		{ID: 2, ProductID: 1, Content: "no title here"},
		{ID: 3, ProductID: 1},
	}}}
	analyzer := &fakeAnalyzer{}
	p := NewProcessor(store, fakeCatalog{}, analyzer, testConfig(), nil)

	_, err := p.Run(context.Background(), 0)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"Crashes on startup stopped working after the update",
		"no title here",
		"(empty review)",
	}, analyzer.texts)
}

func TestProcessorStopsWhenNothingPending(t *testing.T) {
	t.Parallel()

	p := NewProcessor(&fakeStore{}, fakeCatalog{}, &fakeAnalyzer{}, testConfig(), nil)
	stats, err := p.Run(context.Background(), 0)

	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, stats.Batches)
}
