// internal/handler/job_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sendloop/sendloop-backend/internal/model"
	"github.com/sendloop/sendloop-backend/internal/repository"
	"github.com/sendloop/sendloop-backend/internal/service"
)

// JobHandler exposes the operational surface: campaign stats, the job
// monitor and engagement tracking.
type JobHandler struct {
	Service  *service.CampaignService
	Monitor  *service.JobMonitor
	LeadRepo repository.LeadRepositoryInterface
}

var trackableEvents = map[string]model.RecipientStatus{
	"delivered": model.RecipientStatusDelivered,
	"opened":    model.RecipientStatusOpened,
	"clicked":   model.RecipientStatusClicked,
	"replied":   model.RecipientStatusReplied,
}

// GetCampaignWithStats returns campaign details plus per-status
// recipient counts.
func (h *JobHandler) GetCampaignWithStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := h.Service.GetCampaignDetailsWithStats(id)
	if err != nil {
		http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

// ListJobs returns the in-flight and retained jobs for a campaign.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	jobs, err := h.Monitor.ListJobs(id)
	if err != nil {
		http.Error(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": jobs})
}

// RetryJob requeues a terminally failed job with a fresh attempt
// counter.
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}

	if err := h.Monitor.RetryJob(jobID); err != nil {
		http.Error(w, "retry failed: "+err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"job_id": jobID,
		"status": "queued",
	})
}

// AttachRecipients links leads to a draft campaign.
func (h *JobHandler) AttachRecipients(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		LeadIDs []int `json:"lead_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(body.LeadIDs) == 0 {
		http.Error(w, "lead_ids is required", http.StatusBadRequest)
		return
	}

	attached, err := h.Service.AttachLeads(id, body.LeadIDs)
	if err != nil {
		http.Error(w, "failed to attach leads: "+err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id": id,
		"attached":    attached,
	})
}

// CreateLead stores a new lead with its attribute bag.
func (h *JobHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string            `json:"email"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	lead := &model.Lead{Email: body.Email, Attributes: body.Attributes}
	if err := h.LeadRepo.Create(lead); err != nil {
		http.Error(w, "failed to create lead: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(lead)
}

// ListLeads returns every lead still in the store.
func (h *JobHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.LeadRepo.ListAll()
	if err != nil {
		http.Error(w, "failed to fetch leads: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": leads})
}

// TrackEvent records a provider engagement event (delivered, opened,
// clicked, replied) against a recipient.
func (h *JobHandler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		LeadID int    `json:"lead_id"`
		Event  string `json:"event"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	status, ok := trackableEvents[body.Event]
	if !ok {
		http.Error(w, "unknown event: "+body.Event, http.StatusBadRequest)
		return
	}

	updated, err := h.Service.TrackEvent(id, body.LeadID, status)
	if err != nil {
		http.Error(w, "failed to track event: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id": id,
		"lead_id":     body.LeadID,
		"event":       body.Event,
		"updated":     updated,
	})
}
