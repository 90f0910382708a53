// internal/service/campaign_service.go
package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	appErrors "github.com/sendloop/sendloop-backend/internal/errors"
	"github.com/sendloop/sendloop-backend/internal/model"
	"github.com/sendloop/sendloop-backend/internal/queue"
	"github.com/sendloop/sendloop-backend/internal/render"
	"github.com/sendloop/sendloop-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	LeadRepo      repository.LeadRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	Queue         queue.Queue
	Builder       *JobBuilder
}

// Result struct for StartCampaign
type StartCampaignResult struct {
	CampaignID int
	JobsQueued int
	Skipped    int
	Status     model.CampaignStatus
	JobIDs     []string
}

type CampaignDetails struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	TemplateID  int               `json:"template_id"`
	Subject     string            `json:"subject"`
	Status      model.CampaignStatus `json:"status"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   *time.Time        `json:"updated_at"`
	Stats       map[string]int    `json:"stats"`
}

// CreateCampaign snapshots the template's subject and body onto the new
// campaign so later template edits never change it.
func (s *CampaignService) CreateCampaign(name string, templateID int, baseVars map[string]string, scheduledAt *string) (*model.Campaign, error) {
	tpl, err := s.TemplateRepo.GetByID(templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %d not found", templateID)
	}

	c := &model.Campaign{
		Name:       name,
		TemplateID: tpl.ID,
		Subject:    tpl.Subject,
		BodyHTML:   tpl.BodyHTML,
		BaseVars:   baseVars,
		Status:     model.CampaignStatusDraft,
	}

	if scheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, err
		}
		c.ScheduledAt = &t
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}

	return c, nil
}

// AttachLeads binds leads to a draft campaign as pending recipients.
// Already attached pairs are skipped (unique per campaign+lead).
func (s *CampaignService) AttachLeads(campaignID int, leadIDs []int) (int, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return 0, err
	}
	if campaign.Status != model.CampaignStatusDraft {
		return 0, appErrors.NewInvalidState(campaignID, string(campaign.Status))
	}

	attached := 0
	for _, leadID := range leadIDs {
		lead, err := s.LeadRepo.GetByID(leadID)
		if err != nil {
			return attached, err
		}
		if lead == nil {
			log.Printf("lead %d not found, skipping", leadID)
			continue
		}
		created, err := s.RecipientRepo.Attach(campaignID, leadID)
		if err != nil {
			return attached, err
		}
		if created {
			attached++
		}
	}
	return attached, nil
}

// StartCampaign moves a draft campaign into dispatch: it builds one job
// per pending recipient, enqueues them all and transitions the campaign
// to running. Configuration errors surface synchronously and leave the
// campaign in its prior state.
func (s *CampaignService) StartCampaign(campaignID int) (*StartCampaignResult, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusDraft {
		return nil, appErrors.NewInvalidState(campaignID, string(campaign.Status))
	}

	pending, err := s.RecipientRepo.GetPending(campaignID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, appErrors.NewNoRecipients(campaignID)
	}

	jobs, skipped := s.Builder.BuildJobs(campaign, pending)
	if len(jobs) == 0 {
		// Every recipient rendered invalid: that is a template problem,
		// not a recipient problem. Campaign stays in draft.
		return nil, appErrors.NewInvalidTemplate("no recipient produced a dispatchable body")
	}

	result := &StartCampaignResult{
		CampaignID: campaignID,
		Status:     model.CampaignStatusRunning,
		JobIDs:     []string{},
	}

	for _, job := range jobs {
		id, err := s.Queue.Enqueue(job)
		if err != nil {
			log.Printf("failed to enqueue job for lead %d: %v", job.LeadID, err)
			continue
		}
		result.JobIDs = append(result.JobIDs, id)
		result.JobsQueued++
	}

	for _, sk := range skipped {
		if _, err := s.RecipientRepo.MarkFailed(campaignID, sk.LeadID, sk.Reason); err != nil {
			log.Printf("failed to mark skipped recipient: campaign=%d lead=%d: %v", campaignID, sk.LeadID, err)
		}
	}
	result.Skipped = len(skipped)

	if _, err := s.CampaignRepo.UpdateStatusIf(campaignID, model.CampaignStatusDraft, model.CampaignStatusRunning); err != nil {
		return result, err
	}

	// Workers may have resolved every recipient before the RUNNING
	// transition landed, in which case their completion checks hit a
	// draft row and no-opped. Re-derive once now that RUNNING is set.
	if _, err := s.CompleteIfDone(campaignID); err != nil {
		log.Printf("completion check failed: campaign=%d: %v", campaignID, err)
	}

	return result, nil
}

// StopCampaign is an operator override: running -> completed right
// away. Jobs already in the dispatch queue are not retracted; they run
// to completion and still update their recipients, they just stop
// influencing orchestration.
func (s *CampaignService) StopCampaign(campaignID int) error {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusRunning {
		return appErrors.NewInvalidState(campaignID, string(campaign.Status))
	}

	stopped, err := s.CampaignRepo.UpdateStatusIf(campaignID, model.CampaignStatusRunning, model.CampaignStatusCompleted)
	if err != nil {
		return err
	}
	if stopped {
		log.Printf("campaign %d stopped by operator", campaignID)
	}
	return nil
}

// CurrentState returns the campaign's status.
func (s *CampaignService) CurrentState(campaignID int) (model.CampaignStatus, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", err
	}
	return campaign.Status, nil
}

// CompleteIfDone derives completion: once no recipient remains pending,
// a running campaign transitions to completed. Called after every
// recipient outcome; the conditional update makes concurrent calls
// race-safe.
func (s *CampaignService) CompleteIfDone(campaignID int) (bool, error) {
	pending, err := s.RecipientRepo.CountPending(campaignID)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	completed, err := s.CampaignRepo.UpdateStatusIf(campaignID, model.CampaignStatusRunning, model.CampaignStatusCompleted)
	if err != nil {
		return false, err
	}
	if completed {
		log.Printf("campaign %d completed", campaignID)
	}
	return completed, nil
}

// RenderPreview renders the campaign snapshot (or an override template)
// against a single lead.
func (s *CampaignService) RenderPreview(campaignID, leadID int, overrideTemplate *string) (string, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", err
	}

	lead, err := s.LeadRepo.GetByID(leadID)
	if err != nil {
		return "", err
	}
	if lead == nil {
		return "", fmt.Errorf("lead not found")
	}

	template := campaign.BodyHTML
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("template cannot be empty")
	}

	vars := render.Merge(campaign.BaseVars, lead.Attributes)
	return render.Render(template, vars), nil
}

// TrackEvent applies a tracking transition (delivered, opened, clicked,
// replied) to a recipient. Terminal states stay sticky.
func (s *CampaignService) TrackEvent(campaignID, leadID int, status model.RecipientStatus) (bool, error) {
	return s.RecipientRepo.SetStatus(campaignID, leadID, status)
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetailsWithStats fetches a campaign together with its
// per-status recipient counts.
func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.CampaignRepo.GetRecipientStats(campaignID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, count := range stats {
		total += count
	}
	stats["total"] = total

	return &CampaignDetails{
		ID:          campaign.ID,
		Name:        campaign.Name,
		TemplateID:  campaign.TemplateID,
		Subject:     campaign.Subject,
		Status:      campaign.Status,
		ScheduledAt: campaign.ScheduledAt,
		CreatedAt:   campaign.CreatedAt,
		UpdatedAt:   campaign.UpdatedAt,
		Stats:       stats,
	}, nil
}
