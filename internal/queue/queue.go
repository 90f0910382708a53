package queue

import (
	"context"
	"time"

	"github.com/sendloop/sendloop-backend/internal/model"
)

// RetryConfig is the retry contract attached to every job at enqueue
// time: a fixed attempt budget and exponential backoff. Successful jobs
// are discarded immediately, terminally failed ones are retained for
// operator inspection.
type RetryConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultRetryConfig returns the production contract: 3 attempts,
// exponential backoff from a 5 second base.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BackoffBase: 5 * time.Second,
	}
}

// Backoff returns the delay imposed after the given number of completed
// attempts before the job becomes visible again: base * 2^(n-1).
func (c RetryConfig) Backoff(completedAttempts int) time.Duration {
	if completedAttempts < 1 {
		completedAttempts = 1
	}
	return c.BackoffBase << (completedAttempts - 1)
}

// Delivery is a dequeued job. It stays invisible to other dequeuers
// until the consumer calls Ack, Fail or Reject with its ID.
type Delivery struct {
	ID      string
	Job     model.Job
	Attempt int
}

// Queue is the dispatch queue consumed by the worker pool. The queue
// owns serialization of job visibility.
type Queue interface {
	Enqueue(job model.Job) (string, error)
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (*Delivery, error)
	// Ack marks the job done; the record is discarded.
	Ack(id string) error
	// Fail records a retryable failure. The job is rescheduled under
	// the backoff policy while the attempt budget lasts; the returned
	// bool reports whether it was requeued or went terminal.
	Fail(id string, cause error) (bool, error)
	// Reject marks the job terminally failed regardless of remaining
	// attempts. The record is retained for operator retry.
	Reject(id string, cause error) error
}

// JobStatus is the queue-side status of a job record.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusScheduled JobStatus = "scheduled" // waiting out a backoff delay
	JobStatusActive    JobStatus = "active"    // dequeued, not yet acked
	JobStatusFailed    JobStatus = "failed"    // terminal, retained
)

// JobInfo is the operator-facing view of a job record.
type JobInfo struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Job       model.Job `json:"job"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Inspector is the read/retry surface used by the job monitor. Not
// every queue backing can enumerate its jobs; implementations that can
// expose it alongside Queue.
type Inspector interface {
	// ListJobs returns all live job records for a campaign, or every
	// record when campaignID is zero. An empty result is not an error.
	ListJobs(campaignID int) ([]JobInfo, error)
	// RetryJob re-enqueues a terminally failed job with a fresh
	// attempt counter.
	RetryJob(id string) error
}
