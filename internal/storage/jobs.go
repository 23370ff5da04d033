package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// JobRepo is the collection-job ledger. Rows are created once and merged
// forward; terminal statuses are never overwritten.
type JobRepo struct {
	q Querier
}

var _ ports.JobStore = (*JobRepo)(nil)

// NewJobRepo wires a querier.
func NewJobRepo(q Querier) *JobRepo {
	return &JobRepo{q: q}
}

// Create inserts a job row and returns its id.
func (r *JobRepo) Create(ctx context.Context, job domain.CollectionJob) (int64, error) {
	startedAt := job.StartedAt
	if startedAt == nil {
		now := time.Now().UTC()
		startedAt = &now
	}

	insert := Builder().
		Insert("collection_jobs").
		Columns("product_id", "platform_id", "job_type", "parameters", "status", "started_at").
		Values(job.ProductID, job.PlatformID, job.JobType, job.Parameters, job.Status, startedAt).
		Suffix("RETURNING id")

	sql, args, err := insert.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build job insert: %w", err)
	}

	var id int64
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}

	return id, nil
}

// Update merges the non-nil fields into the job row. Status transitions are
// monotonic: once a job is completed or failed the row stops accepting
// status changes.
func (r *JobRepo) Update(ctx context.Context, jobID int64, update domain.JobUpdate) error {
	builder := Builder().
		Update("collection_jobs").
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": jobID})

	if update.Status != nil {
		builder = builder.
			Set("status", *update.Status).
			Where(squirrel.NotEq{"status": []domain.JobStatus{domain.JobCompleted, domain.JobFailed}})
	}
	if update.TotalFound != nil {
		builder = builder.Set("total_reviews_found", *update.TotalFound)
	}
	if update.Collected != nil {
		builder = builder.Set("reviews_collected", *update.Collected)
	}
	if update.ErrorMessage != nil {
		builder = builder.Set("error_message", *update.ErrorMessage)
	}
	if update.CompletedAt != nil {
		builder = builder.Set("completed_at", *update.CompletedAt)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build job update: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d not updatable: %w", jobID, domain.ErrNotFound)
	}

	return nil
}
