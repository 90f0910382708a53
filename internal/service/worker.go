// internal/service/worker.go
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sendloop/sendloop-backend/internal/provider"
	"github.com/sendloop/sendloop-backend/internal/queue"
	"github.com/sendloop/sendloop-backend/internal/repository"
)

// completionTracker derives campaign completion from recipient
// outcomes; the worker pool reports through it after every job.
type completionTracker interface {
	CompleteIfDone(campaignID int) (bool, error)
}

// WorkerPool drains the dispatch queue with Workers concurrent
// consumers. Each worker paces its own sends, so total throughput
// scales with worker count.
type WorkerPool struct {
	Queue         queue.Queue
	Sender        provider.Sender
	RecipientRepo repository.RecipientRepositoryInterface
	LeadRepo      repository.LeadRepositoryInterface
	Tracker       completionTracker

	Workers     int
	SendDelay   time.Duration
	SendTimeout time.Duration
}

// Run blocks until ctx is cancelled and all workers have drained.
func (p *WorkerPool) Run(ctx context.Context) {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.run(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *WorkerPool) run(ctx context.Context, id int) {
	log.Printf("worker %d started", id)
	for {
		d, err := p.Queue.Dequeue(ctx)
		if err != nil {
			log.Printf("worker %d stopping: %v", id, err)
			return
		}

		p.process(ctx, d)

		// Inter-send pacing, per worker, to respect provider rate
		// limits.
		if p.SendDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.SendDelay):
			}
		}
	}
}

func (p *WorkerPool) process(ctx context.Context, d *queue.Delivery) {
	timeout := p.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.Sender.Send(sendCtx, d.Job.To, d.Job.Subject, d.Job.HTML)
	switch {
	case err == nil:
		p.handleSuccess(d)
	case provider.IsPermanent(err):
		p.handlePermanent(d, err)
	default:
		p.handleRetryable(d, err)
	}
}

func (p *WorkerPool) handleSuccess(d *queue.Delivery) {
	if _, err := p.RecipientRepo.MarkSent(d.Job.CampaignID, d.Job.LeadID); err != nil {
		log.Printf("failed to mark recipient sent: campaign=%d lead=%d: %v", d.Job.CampaignID, d.Job.LeadID, err)
	}

	if err := p.Queue.Ack(d.ID); err != nil {
		log.Printf("failed to ack job %s: %v", d.ID, err)
	}

	// Data-minimization policy: a successfully emailed lead is consumed
	// and not retained. Best effort; a failure here never re-surfaces
	// as a send failure.
	if err := p.LeadRepo.Delete(d.Job.LeadID); err != nil {
		log.Printf("post-send lead deletion failed: lead=%d: %v", d.Job.LeadID, err)
	}

	p.checkCompletion(d.Job.CampaignID)
}

func (p *WorkerPool) handlePermanent(d *queue.Delivery, cause error) {
	log.Printf("permanent failure: campaign=%d lead=%d: %v", d.Job.CampaignID, d.Job.LeadID, cause)

	if _, err := p.RecipientRepo.MarkFailed(d.Job.CampaignID, d.Job.LeadID, cause.Error()); err != nil {
		log.Printf("failed to mark recipient failed: campaign=%d lead=%d: %v", d.Job.CampaignID, d.Job.LeadID, err)
	}
	if err := p.Queue.Reject(d.ID, cause); err != nil {
		log.Printf("failed to reject job %s: %v", d.ID, err)
	}

	p.checkCompletion(d.Job.CampaignID)
}

func (p *WorkerPool) handleRetryable(d *queue.Delivery, cause error) {
	requeued, err := p.Queue.Fail(d.ID, cause)
	if err != nil {
		log.Printf("failed to fail job %s: %v", d.ID, err)
		return
	}
	if requeued {
		log.Printf("job %s requeued (attempt %d): %v", d.ID, d.Attempt, cause)
		return
	}

	// Attempt budget exhausted; only now does the failure reach the
	// recipient.
	log.Printf("job %s terminally failed after %d attempts: %v", d.ID, d.Attempt, cause)
	if _, err := p.RecipientRepo.MarkFailed(d.Job.CampaignID, d.Job.LeadID, cause.Error()); err != nil {
		log.Printf("failed to mark recipient failed: campaign=%d lead=%d: %v", d.Job.CampaignID, d.Job.LeadID, err)
	}

	p.checkCompletion(d.Job.CampaignID)
}

func (p *WorkerPool) checkCompletion(campaignID int) {
	if p.Tracker == nil {
		return
	}
	if _, err := p.Tracker.CompleteIfDone(campaignID); err != nil {
		log.Printf("completion check failed: campaign=%d: %v", campaignID, err)
	}
}
