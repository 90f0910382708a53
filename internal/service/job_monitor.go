// internal/service/job_monitor.go
package service

import (
	"fmt"

	"github.com/sendloop/sendloop-backend/internal/queue"
)

// JobMonitor is the operator-facing read and manual-retry surface over
// the dispatch queue.
type JobMonitor struct {
	Inspector queue.Inspector
}

// ListJobs returns the queue's job records for a campaign. A campaign
// with no jobs, or a queue backing that cannot enumerate jobs, yields
// an empty list rather than an error.
func (m *JobMonitor) ListJobs(campaignID int) ([]queue.JobInfo, error) {
	if m.Inspector == nil {
		return []queue.JobInfo{}, nil
	}
	return m.Inspector.ListJobs(campaignID)
}

// RetryJob re-enqueues a terminally failed job with a fresh attempt
// counter.
func (m *JobMonitor) RetryJob(jobID string) error {
	if m.Inspector == nil {
		return fmt.Errorf("job retry is not supported by this queue backend")
	}
	return m.Inspector.RetryJob(jobID)
}
