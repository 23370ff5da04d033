package domain

import "time"

// JobStatus enumerates the collection-job lifecycle. Transitions are
// monotonic: a terminal job never returns to running.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobType distinguishes bounded incremental runs from full history pulls.
type JobType string

const (
	JobFull        JobType = "full_collection"
	JobIncremental JobType = "incremental_collection"
)

// JobParams is serialized onto the job row for audit and replay.
type JobParams struct {
	AppID      string     `json:"app_id"`
	MaxReviews int        `json:"max_reviews"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	Country    string     `json:"country,omitempty"`
	Language   string     `json:"language,omitempty"`
}

// CollectionJob records one orchestration run per (product, platform).
type CollectionJob struct {
	ID            int64      `db:"id"`
	ProductID     int64      `db:"product_id"`
	PlatformID    int64      `db:"platform_id"`
	JobType       JobType    `db:"job_type"`
	Parameters    []byte     `db:"parameters"`
	Status        JobStatus  `db:"status"`
	TotalFound    int        `db:"total_reviews_found"`
	Collected     int        `db:"reviews_collected"`
	ErrorMessage  *string    `db:"error_message"`
	StartedAt     *time.Time `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	UpdatedAt     *time.Time `db:"updated_at"`
}

// JobUpdate carries the mutable job fields; nil members are left untouched.
type JobUpdate struct {
	Status       *JobStatus
	TotalFound   *int
	Collected    *int
	ErrorMessage *string
	CompletedAt  *time.Time
}
