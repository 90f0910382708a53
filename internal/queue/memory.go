package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sendloop/sendloop-backend/internal/model"
)

// readyBuffer caps the number of live jobs. Past it, Enqueue blocks the
// caller and a rescheduled Fail parks its timer goroutine until workers
// free a slot; campaigns larger than this need the AMQP queue.
const readyBuffer = 1024

// MemoryQueue is an in-process dispatch queue with the full retry
// contract: exponential backoff, inflight invisibility and retention of
// terminally failed jobs. The server binary runs on it; tests inject it
// wherever a Queue is needed.
type MemoryQueue struct {
	retry RetryConfig

	mu    sync.Mutex
	jobs  map[string]*jobRecord
	ready chan string
}

type jobRecord struct {
	id        string
	job       model.Job
	status    JobStatus
	attempts  int
	lastError string
	createdAt time.Time
	updatedAt time.Time
}

func NewMemoryQueue(retry RetryConfig) *MemoryQueue {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &MemoryQueue{
		retry: retry,
		jobs:  make(map[string]*jobRecord),
		ready: make(chan string, readyBuffer),
	}
}

func (q *MemoryQueue) Enqueue(job model.Job) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	q.mu.Lock()
	q.jobs[id] = &jobRecord{
		id:        id,
		job:       job,
		status:    JobStatusQueued,
		createdAt: now,
		updatedAt: now,
	}
	q.mu.Unlock()

	q.ready <- id
	return id, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case id := <-q.ready:
			q.mu.Lock()
			rec, ok := q.jobs[id]
			if !ok || rec.status != JobStatusQueued {
				// Acked or manually retried while the id sat in the
				// channel; stale, move on.
				q.mu.Unlock()
				continue
			}
			rec.status = JobStatusActive
			rec.attempts++
			rec.updatedAt = time.Now()
			d := &Delivery{ID: rec.id, Job: rec.job, Attempt: rec.attempts}
			q.mu.Unlock()
			return d, nil
		}
	}
}

func (q *MemoryQueue) Ack(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[id]; !ok {
		return fmt.Errorf("unknown job %s", id)
	}
	delete(q.jobs, id)
	return nil
}

func (q *MemoryQueue) Fail(id string, cause error) (bool, error) {
	q.mu.Lock()
	rec, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return false, fmt.Errorf("unknown job %s", id)
	}
	rec.lastError = cause.Error()
	rec.updatedAt = time.Now()

	if rec.attempts >= q.retry.MaxAttempts {
		rec.status = JobStatusFailed
		q.mu.Unlock()
		return false, nil
	}

	rec.status = JobStatusScheduled
	delay := q.retry.Backoff(rec.attempts)
	q.mu.Unlock()

	time.AfterFunc(delay, func() {
		q.mu.Lock()
		rec, ok := q.jobs[id]
		if !ok || rec.status != JobStatusScheduled {
			q.mu.Unlock()
			return
		}
		rec.status = JobStatusQueued
		rec.updatedAt = time.Now()
		q.mu.Unlock()
		q.ready <- id
	})
	return true, nil
}

func (q *MemoryQueue) Reject(id string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("unknown job %s", id)
	}
	rec.status = JobStatusFailed
	rec.lastError = cause.Error()
	rec.updatedAt = time.Now()
	return nil
}

// ListJobs returns job records for a campaign, oldest first. A campaign
// that never produced a job yields an empty slice.
func (q *MemoryQueue) ListJobs(campaignID int) ([]JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	infos := []JobInfo{}
	for _, rec := range q.jobs {
		if campaignID != 0 && rec.job.CampaignID != campaignID {
			continue
		}
		infos = append(infos, JobInfo{
			ID:        rec.id,
			Status:    rec.status,
			Job:       rec.job,
			Attempts:  rec.attempts,
			LastError: rec.lastError,
			CreatedAt: rec.createdAt,
			UpdatedAt: rec.updatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos, nil
}

// RetryJob puts a terminally failed job back on the queue with a fresh
// attempt counter.
func (q *MemoryQueue) RetryJob(id string) error {
	q.mu.Lock()
	rec, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("unknown job %s", id)
	}
	if rec.status != JobStatusFailed {
		q.mu.Unlock()
		return fmt.Errorf("job %s is %s, only failed jobs can be retried", id, rec.status)
	}
	rec.status = JobStatusQueued
	rec.attempts = 0
	rec.lastError = ""
	rec.updatedAt = time.Now()
	q.mu.Unlock()

	q.ready <- id
	return nil
}

var (
	_ Queue     = (*MemoryQueue)(nil)
	_ Inspector = (*MemoryQueue)(nil)
)
