package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

type fakeReviewStore struct {
	mu sync.Mutex

	latest    *time.Time
	latestErr error

	// seen emulates the (platform_id, platform_review_id) uniqueness
	// constraint so repeat runs report zero fresh inserts.
	seen      map[string]bool
	upsertErr error
	upserted  []domain.Review
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{seen: map[string]bool{}}
}

func (f *fakeReviewStore) UpsertBatch(_ context.Context, reviews []domain.Review) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}

	fresh := 0
	for _, rec := range reviews {
		key := rec.PlatformReviewID
		if !f.seen[key] {
			f.seen[key] = true
			fresh++
		}
		f.upserted = append(f.upserted, rec)
	}
	return fresh, nil
}

func (f *fakeReviewStore) LatestReviewDate(context.Context, int64, int64) (*time.Time, error) {
	return f.latest, f.latestErr
}

func (f *fakeReviewStore) Unprocessed(context.Context, int) ([]domain.Review, error) {
	return nil, nil
}

func (f *fakeReviewStore) MarkProcessed(context.Context, int64, domain.AnalysisResult) error {
	return nil
}

type fakeJobStore struct {
	nextID  int64
	created []domain.CollectionJob
	updates map[int64][]domain.JobUpdate

	createErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{nextID: 100, updates: map[int64][]domain.JobUpdate{}}
}

func (f *fakeJobStore) Create(_ context.Context, job domain.CollectionJob) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	job.ID = f.nextID
	f.created = append(f.created, job)
	return f.nextID, nil
}

func (f *fakeJobStore) Update(_ context.Context, jobID int64, update domain.JobUpdate) error {
	f.updates[jobID] = append(f.updates[jobID], update)
	return nil
}

func (f *fakeJobStore) lastStatus(jobID int64) domain.JobStatus {
	updates := f.updates[jobID]
	for i := len(updates) - 1; i >= 0; i-- {
		if updates[i].Status != nil {
			return *updates[i].Status
		}
	}
	return ""
}

type pageResult struct {
	page ports.Page
	err  error
}

type fakeAdapter struct {
	name     string
	pages    []pageResult
	requests []ports.FetchRequest
}

func (f *fakeAdapter) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeAdapter) FetchPage(_ context.Context, req ports.FetchRequest) (ports.Page, error) {
	f.requests = append(f.requests, req)
	if len(f.pages) == 0 {
		return ports.Page{}, nil
	}
	next := f.pages[0]
	f.pages = f.pages[1:]
	return next.page, next.err
}

func makePage(cursor string, ids ...string) ports.Page {
	records := make([]domain.Review, 0, len(ids))
	for _, id := range ids {
		rec := domain.Review{
			PlatformReviewID: id,
			Author:           "tester",
			Content:          "content",
			Rating:           4,
			ReviewDate:       time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		rec.Normalize()
		records = append(records, rec)
	}
	return ports.Page{Records: records, NextCursor: cursor}
}

type fakeCatalog struct {
	platforms []domain.Platform
	products  map[int64]domain.Product
	mappings  map[int64][]domain.Mapping
	stats     []domain.ProductStats

	mappingsErr error
}

func (f *fakeCatalog) PlatformByName(_ context.Context, name string) (*domain.Platform, error) {
	for _, p := range f.platforms {
		if p.Name == name {
			platform := p
			return &platform, nil
		}
	}
	return nil, domain.ErrUnknownPlatform
}

func (f *fakeCatalog) ActivePlatforms(context.Context) ([]domain.Platform, error) {
	return f.platforms, nil
}

func (f *fakeCatalog) ProductByID(_ context.Context, id int64) (*domain.Product, error) {
	if product, ok := f.products[id]; ok {
		return &product, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) ActiveProducts(context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(f.products))
	// Deterministic order by id keeps assertions stable.
	for id := int64(0); id < 100; id++ {
		if product, ok := f.products[id]; ok {
			products = append(products, product)
		}
	}
	return products, nil
}

func (f *fakeCatalog) ProductByName(_ context.Context, name, company string) (*domain.Product, error) {
	for _, product := range f.products {
		if product.Name == name && (company == "" || product.Company == company) {
			p := product
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) ActiveMappings(_ context.Context, productID int64) ([]domain.Mapping, error) {
	if f.mappingsErr != nil {
		return nil, f.mappingsErr
	}
	return f.mappings[productID], nil
}

func (f *fakeCatalog) ProductStats(context.Context) ([]domain.ProductStats, error) {
	return f.stats, nil
}

var errBoom = errors.New("boom")
