package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// Target names one (product, platform, listing) triple to collect.
type Target struct {
	ProductID  int64
	PlatformID int64
	AppID      string
	Country    string
	Language   string
}

// RunOptions tunes a single orchestration run.
type RunOptions struct {
	MaxItems int
	PageSize int
	Start    StartSpec
}

// Result reports what one run found and actually persisted. The two counts
// legitimately differ when records were already present.
type Result struct {
	JobID     int64
	Found     int
	Persisted int
	StartDate *time.Time
}

// NewLimiter converts a platform's hourly quota into a pacing limiter used
// between page requests. Quotas < 1 fall back to one request per second.
func NewLimiter(hourlyLimit int) *rate.Limiter {
	if hourlyLimit < 1 {
		return rate.NewLimiter(rate.Limit(1), 1)
	}
	return rate.NewLimiter(rate.Limit(float64(hourlyLimit)/3600.0), 1)
}

// Orchestrator drives one source adapter page-by-page for a single run,
// upserting each page and recording the job lifecycle in the ledger.
type Orchestrator struct {
	reviews  ports.ReviewStore
	jobs     ports.JobStore
	resolver *CursorResolver
	logger   *slog.Logger
}

// NewOrchestrator wires the persistence gateway, the job ledger and the
// cursor resolver.
func NewOrchestrator(reviews ports.ReviewStore, jobs ports.JobStore, resolver *CursorResolver, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{reviews: reviews, jobs: jobs, resolver: resolver, logger: logger}
}

// Run executes one collection: resolve the start boundary, record the job as
// running, page through the adapter under the limiter's pacing, upsert every
// page, then close the job. Unrecoverable errors are recorded on the job
// before being returned.
func (o *Orchestrator) Run(ctx context.Context, adapter ports.SourceAdapter, target Target, limiter *rate.Limiter, opts RunOptions) (Result, error) {
	if opts.MaxItems < 1 {
		return Result{}, fmt.Errorf("max items must be positive: %w", domain.ErrInvalidInput)
	}
	if opts.PageSize < 1 {
		opts.PageSize = 200
	}

	start, err := o.resolver.ResolveStart(ctx, target.ProductID, target.PlatformID, opts.Start)
	if err != nil {
		return Result{}, err
	}

	jobID, err := o.createJob(ctx, target, start, opts)
	if err != nil {
		return Result{}, err
	}

	result := Result{JobID: jobID, StartDate: start}
	cursor := ""
	olderSeen := 0
	firstPage := true

	for {
		if err := ctx.Err(); err != nil {
			o.failJob(jobID, err)
			return result, err
		}

		if err := limiter.Wait(ctx); err != nil {
			o.failJob(jobID, err)
			return result, err
		}

		pageSize := opts.PageSize
		if remaining := opts.MaxItems - result.Found; remaining < pageSize {
			pageSize = remaining
		}

		page, err := adapter.FetchPage(ctx, ports.FetchRequest{
			AppID:     target.AppID,
			PageSize:  pageSize,
			Cursor:    cursor,
			StartDate: start,
			OlderSeen: olderSeen,
			Country:   target.Country,
			Language:  target.Language,
		})
		if err != nil {
			if firstPage {
				failure := fmt.Errorf("fetch first page: %w", err)
				o.failJob(jobID, failure)
				return result, failure
			}
			// Later pages degrade to a soft stop; what we have stays
			// committed.
			o.warn("page fetch failed, stopping run", "job_id", jobID, "error", err)
			break
		}
		firstPage = false

		records := page.Records
		if overflow := result.Found + len(records) - opts.MaxItems; overflow > 0 {
			records = records[:len(records)-overflow]
		}

		if len(records) > 0 {
			result.Found += len(records)
			persisted, err := o.reviews.UpsertBatch(ctx, stamp(records, target))
			if err != nil {
				failure := fmt.Errorf("persist page: %w", err)
				o.failJob(jobID, failure)
				return result, failure
			}
			result.Persisted += persisted
		}

		o.debug("page collected", "job_id", jobID,
			"found", result.Found, "persisted", result.Persisted)

		cursor = page.NextCursor
		olderSeen = page.OlderSeen
		if cursor == "" || len(page.Records) == 0 || result.Found >= opts.MaxItems {
			break
		}
	}

	if err := o.completeJob(ctx, jobID, result); err != nil {
		return result, err
	}

	return result, nil
}

// stamp assigns the target's identities onto adapter-produced records.
func stamp(records []domain.Review, target Target) []domain.Review {
	stamped := make([]domain.Review, len(records))
	copy(stamped, records)
	for i := range stamped {
		stamped[i].ProductID = target.ProductID
		stamped[i].PlatformID = target.PlatformID
	}
	return stamped
}

func (o *Orchestrator) createJob(ctx context.Context, target Target, start *time.Time, opts RunOptions) (int64, error) {
	jobType := domain.JobFull
	if start != nil {
		jobType = domain.JobIncremental
	}

	params, err := json.Marshal(domain.JobParams{
		AppID:      target.AppID,
		MaxReviews: opts.MaxItems,
		StartDate:  start,
		Country:    target.Country,
		Language:   target.Language,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal job parameters: %w", err)
	}

	jobID, err := o.jobs.Create(ctx, domain.CollectionJob{
		ProductID:  target.ProductID,
		PlatformID: target.PlatformID,
		JobType:    jobType,
		Parameters: params,
		Status:     domain.JobRunning,
	})
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}

	return jobID, nil
}

func (o *Orchestrator) completeJob(ctx context.Context, jobID int64, result Result) error {
	status := domain.JobCompleted
	now := time.Now().UTC()
	err := o.jobs.Update(ctx, jobID, domain.JobUpdate{
		Status:      &status,
		TotalFound:  &result.Found,
		Collected:   &result.Persisted,
		CompletedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("complete job %d: %w", jobID, err)
	}
	return nil
}

// failJob records the failure on a detached context so a canceled run still
// leaves the ledger consistent.
func (o *Orchestrator) failJob(jobID int64, cause error) {
	status := domain.JobFailed
	message := cause.Error()
	now := time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.jobs.Update(ctx, jobID, domain.JobUpdate{
		Status:       &status,
		ErrorMessage: &message,
		CompletedAt:  &now,
	}); err != nil {
		o.warn("failed to record job failure", "job_id", jobID, "error", err)
	}
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
