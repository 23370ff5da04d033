package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
)

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		platforms: []domain.Platform{
			{ID: 2, Name: "google_play", DisplayName: "Google Play", HourlyRateLimit: 1000, IsActive: true},
			{ID: 3, Name: "apple_store", DisplayName: "App Store", HourlyRateLimit: 500, IsActive: true},
		},
		products: map[int64]domain.Product{
			1: {ID: 1, Name: "Total Shield", Company: "Vendor", Category: "antivirus", IsActive: true},
			5: {ID: 5, Name: "Safe Browser", Company: "Other", Category: "utility", IsActive: true},
		},
		mappings: map[int64][]domain.Mapping{
			1: {
				{ID: 10, ProductID: 1, PlatformID: 2, PlatformAppID: "com.vendor.shield", IsActive: true, ProductName: "Total Shield", Company: "Vendor", PlatformName: "google_play", PlatformDisplayName: "Google Play"},
				{ID: 11, ProductID: 1, PlatformID: 3, PlatformAppID: "123456", IsActive: true, ProductName: "Total Shield", Company: "Vendor", PlatformName: "apple_store", PlatformDisplayName: "App Store"},
			},
		},
	}
}

func newTestScheduler(catalog *fakeCatalog, registry *adapter.Registry) *Scheduler {
	store := newFakeReviewStore()
	orchestrator := newTestOrchestrator(store, newFakeJobStore())
	locales := map[string]Locale{
		"google_play": {Country: "us", Language: "en"},
		"apple_store": {Country: "us"},
	}
	return NewScheduler(catalog, orchestrator, registry, locales, 0, nil)
}

func TestRunBatchCollectsAllMappedPlatforms(t *testing.T) {
	t.Parallel()

	registry := adapter.NewRegistry()
	registry.Register("google_play", &fakeAdapter{pages: []pageResult{{page: makePage("", "gp-1", "gp-2")}}})
	registry.Register("apple_store", &fakeAdapter{pages: []pageResult{{page: makePage("", "as-1")}}})

	s := newTestScheduler(testCatalog(), registry)
	results := s.RunBatch(context.Background(), []TargetSpec{{ProductID: 1}}, RunOptions{MaxItems: 10})

	require.Len(t, results, 1)
	result := results[0]
	require.NoError(t, result.Err)
	assert.Equal(t, "Total Shield", result.ProductName)
	assert.Len(t, result.Platforms, 2)
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 3, result.Persisted)
}

func TestRunBatchAppliesConfiguredLocales(t *testing.T) {
	t.Parallel()

	play := &fakeAdapter{pages: []pageResult{{page: makePage("", "gp-1")}}}
	store := &fakeAdapter{pages: []pageResult{{page: makePage("", "as-1")}}}
	registry := adapter.NewRegistry()
	registry.Register("google_play", play)
	registry.Register("apple_store", store)

	s := newTestScheduler(testCatalog(), registry)
	results := s.RunBatch(context.Background(), []TargetSpec{{ProductID: 1}}, RunOptions{MaxItems: 10})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	require.NotEmpty(t, play.requests)
	assert.Equal(t, "us", play.requests[0].Country)
	assert.Equal(t, "en", play.requests[0].Language)

	require.NotEmpty(t, store.requests)
	assert.Equal(t, "us", store.requests[0].Country)
	assert.Empty(t, store.requests[0].Language)
}

func TestRunBatchPlatformFilter(t *testing.T) {
	t.Parallel()

	registry := adapter.NewRegistry()
	registry.Register("google_play", &fakeAdapter{pages: []pageResult{{page: makePage("", "gp-1")}}})
	registry.Register("apple_store", &fakeAdapter{})

	s := newTestScheduler(testCatalog(), registry)
	results := s.RunBatch(context.Background(), []TargetSpec{{ProductID: 1, PlatformFilter: "google_play"}}, RunOptions{MaxItems: 10})

	require.Len(t, results, 1)
	require.Len(t, results[0].Platforms, 1)
	assert.Equal(t, "google_play", results[0].Platforms[0].Platform)
}

func TestRunBatchReportsMissingMappings(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(testCatalog(), adapter.NewRegistry())
	results := s.RunBatch(context.Background(), []TargetSpec{{ProductID: 5}}, RunOptions{MaxItems: 10})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, domain.ErrNoMapping)
}

func TestRunBatchContinuesPastFailures(t *testing.T) {
	t.Parallel()

	registry := adapter.NewRegistry()
	registry.Register("google_play", &fakeAdapter{pages: []pageResult{{page: makePage("", "gp-1")}}})
	registry.Register("apple_store", &fakeAdapter{pages: []pageResult{{page: makePage("", "as-1")}}})

	s := newTestScheduler(testCatalog(), registry)
	results := s.RunBatch(context.Background(), []TargetSpec{
		{ProductID: 999}, // unknown product
		{ProductID: 1},
	}, RunOptions{MaxItems: 10})

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, domain.ErrNotFound)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, 2, results[1].Found)
}

func TestRunBatchUnregisteredAdapterIsPerPlatformError(t *testing.T) {
	t.Parallel()

	registry := adapter.NewRegistry()
	registry.Register("google_play", &fakeAdapter{pages: []pageResult{{page: makePage("", "gp-1")}}})
	// apple_store intentionally unregistered.

	s := newTestScheduler(testCatalog(), registry)
	results := s.RunBatch(context.Background(), []TargetSpec{{ProductID: 1}}, RunOptions{MaxItems: 10})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Platforms, 2)

	var failed int
	for _, platform := range results[0].Platforms {
		if platform.Err != nil {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, results[0].Found)
}
