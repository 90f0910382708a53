package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sendloop/sendloop-backend/internal/controller"
	appErrors "github.com/sendloop/sendloop-backend/internal/errors"
	"github.com/sendloop/sendloop-backend/internal/model"
	"github.com/sendloop/sendloop-backend/internal/queue"
	"github.com/sendloop/sendloop-backend/internal/service"
)

// --- Mock Repositories ---

type stubCampaignRepo struct {
	campaign *model.Campaign
	statuses []model.CampaignStatus
}

func (m *stubCampaignRepo) Create(c *model.Campaign) error {
	c.ID = 1
	c.CreatedAt = time.Now()
	m.campaign = c
	return nil
}

func (m *stubCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	if m.campaign == nil || m.campaign.ID != id {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return m.campaign, nil
}

func (m *stubCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	if m.campaign == nil {
		return []*model.Campaign{}, 0, nil
	}
	return []*model.Campaign{m.campaign}, 1, nil
}

func (m *stubCampaignRepo) UpdateStatus(campaignID int, status model.CampaignStatus) error {
	m.campaign.Status = status
	return nil
}

func (m *stubCampaignRepo) UpdateStatusIf(campaignID int, from, to model.CampaignStatus) (bool, error) {
	m.statuses = append(m.statuses, to)
	if m.campaign.Status != from {
		return false, nil
	}
	m.campaign.Status = to
	return true, nil
}

func (m *stubCampaignRepo) GetRecipientStats(campaignID int) (map[string]int, error) {
	return map[string]int{"pending": 0, "sent": 2, "failed": 1}, nil
}

type stubTemplateRepo struct{}

func (m *stubTemplateRepo) Create(t *model.Template) error { t.ID = 7; return nil }

func (m *stubTemplateRepo) GetByID(id int) (*model.Template, error) {
	return &model.Template{
		ID:       id,
		Name:     "welcome",
		Subject:  "Welcome, {{first_name}}",
		BodyHTML: "<p>Hi {{first_name}}, greetings from {{company}}!</p>",
		Fields:   []string{"first_name", "company"},
	}, nil
}

func (m *stubTemplateRepo) List() ([]model.Template, error) { return []model.Template{}, nil }

type stubLeadRepo struct{}

func (m *stubLeadRepo) GetByID(id int) (*model.Lead, error) {
	return &model.Lead{
		ID:    id,
		Email: "ada@example.com",
		Attributes: map[string]string{
			"first_name": "Ada",
		},
	}, nil
}

func (m *stubLeadRepo) ListAll() ([]model.Lead, error) { return []model.Lead{}, nil }
func (m *stubLeadRepo) Create(lead *model.Lead) error  { return nil }
func (m *stubLeadRepo) Delete(id int) error            { return nil }

type stubRecipientRepo struct {
	pending []model.PendingRecipient
}

func (m *stubRecipientRepo) Attach(campaignID, leadID int) (bool, error) { return true, nil }

func (m *stubRecipientRepo) GetPending(campaignID int) ([]model.PendingRecipient, error) {
	return m.pending, nil
}

func (m *stubRecipientRepo) CountPending(campaignID int) (int, error) { return len(m.pending), nil }

func (m *stubRecipientRepo) ListByCampaign(campaignID int) ([]model.Recipient, error) {
	return []model.Recipient{}, nil
}

func (m *stubRecipientRepo) MarkSent(campaignID, leadID int) (bool, error) { return true, nil }

func (m *stubRecipientRepo) MarkFailed(campaignID, leadID int, errorMessage string) (bool, error) {
	return true, nil
}

func (m *stubRecipientRepo) SetStatus(campaignID, leadID int, status model.RecipientStatus) (bool, error) {
	return true, nil
}

// --- Helpers ---

func newTestRouter(repo *stubCampaignRepo, recipients *stubRecipientRepo) *chi.Mux {
	svc := &service.CampaignService{
		CampaignRepo:  repo,
		TemplateRepo:  &stubTemplateRepo{},
		LeadRepo:      &stubLeadRepo{},
		RecipientRepo: recipients,
		Queue:         queue.NewMemoryQueue(queue.DefaultRetryConfig()),
		Builder:       &service.JobBuilder{},
	}
	ctrl := &controller.CampaignController{CampaignService: svc}

	r := chi.NewRouter()
	r.Post("/campaigns", ctrl.CreateCampaign)
	r.Get("/campaigns", ctrl.ListCampaigns)
	r.Post("/campaigns/{id}/start", ctrl.StartCampaign)
	r.Post("/campaigns/{id}/stop", ctrl.StopCampaign)
	r.Post("/campaigns/{id}/preview", ctrl.PersonalizedPreview)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestCreateCampaignSnapshotsTemplate(t *testing.T) {
	repo := &stubCampaignRepo{}
	router := newTestRouter(repo, &stubRecipientRepo{})

	w := doJSON(t, router, "POST", "/campaigns", map[string]interface{}{
		"name":        "Launch",
		"template_id": 3,
		"base_vars":   map[string]string{"company": "Sendloop"},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created model.Campaign
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Status != model.CampaignStatusDraft {
		t.Errorf("expected draft status, got %s", created.Status)
	}
	if created.Subject != "Welcome, {{first_name}}" {
		t.Errorf("subject not snapshotted: %q", created.Subject)
	}
	if !strings.Contains(created.BodyHTML, "{{company}}") {
		t.Errorf("body not snapshotted: %q", created.BodyHTML)
	}
}

func TestCreateCampaignRequiresFields(t *testing.T) {
	router := newTestRouter(&stubCampaignRepo{}, &stubRecipientRepo{})

	w := doJSON(t, router, "POST", "/campaigns", map[string]interface{}{"name": "no template"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestStartCampaignQueuesJobs(t *testing.T) {
	repo := &stubCampaignRepo{campaign: &model.Campaign{
		ID:       1,
		Name:     "Launch",
		Subject:  "Hello {{first_name}}",
		BodyHTML: "<p>Hi {{first_name}}</p>",
		Status:   model.CampaignStatusDraft,
	}}
	recipients := &stubRecipientRepo{pending: []model.PendingRecipient{
		{
			Recipient: model.Recipient{CampaignID: 1, LeadID: 10, Status: model.RecipientStatusPending},
			Lead:      model.Lead{ID: 10, Email: "ada@example.com", Attributes: map[string]string{"first_name": "Ada"}},
		},
	}}
	router := newTestRouter(repo, recipients)

	w := doJSON(t, router, "POST", "/campaigns/1/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res struct {
		JobsQueued int                  `json:"jobs_queued"`
		Status     model.CampaignStatus `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.JobsQueued != 1 {
		t.Errorf("expected 1 job queued, got %d", res.JobsQueued)
	}
	if res.Status != model.CampaignStatusRunning {
		t.Errorf("expected running, got %s", res.Status)
	}
}

func TestStartCampaignErrorMapping(t *testing.T) {
	// Unknown campaign id maps to 404.
	router := newTestRouter(&stubCampaignRepo{}, &stubRecipientRepo{})
	if w := doJSON(t, router, "POST", "/campaigns/99/start", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown campaign: expected 404, got %d", w.Code)
	}

	// Wrong status maps to 409.
	repo := &stubCampaignRepo{campaign: &model.Campaign{ID: 1, Status: model.CampaignStatusRunning}}
	router = newTestRouter(repo, &stubRecipientRepo{})
	if w := doJSON(t, router, "POST", "/campaigns/1/start", nil); w.Code != http.StatusConflict {
		t.Errorf("running campaign: expected 409, got %d", w.Code)
	}

	// Draft with zero recipients maps to 422.
	repo = &stubCampaignRepo{campaign: &model.Campaign{ID: 1, Status: model.CampaignStatusDraft}}
	router = newTestRouter(repo, &stubRecipientRepo{})
	if w := doJSON(t, router, "POST", "/campaigns/1/start", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("no recipients: expected 422, got %d", w.Code)
	}
}

func TestStopCampaign(t *testing.T) {
	repo := &stubCampaignRepo{campaign: &model.Campaign{ID: 1, Status: model.CampaignStatusRunning}}
	router := newTestRouter(repo, &stubRecipientRepo{})

	w := doJSON(t, router, "POST", "/campaigns/1/stop", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if repo.campaign.Status != model.CampaignStatusCompleted {
		t.Errorf("expected completed, got %s", repo.campaign.Status)
	}

	// Stopping again conflicts.
	if w := doJSON(t, router, "POST", "/campaigns/1/stop", nil); w.Code != http.StatusConflict {
		t.Errorf("second stop: expected 409, got %d", w.Code)
	}
}

func TestPersonalizedPreview(t *testing.T) {
	repo := &stubCampaignRepo{campaign: &model.Campaign{
		ID:       1,
		BodyHTML: "<p>Hi {{first_name}}, greetings from {{company}}!</p>",
		BaseVars: map[string]string{"company": "Sendloop"},
		Status:   model.CampaignStatusDraft,
	}}
	router := newTestRouter(repo, &stubRecipientRepo{})

	w := doJSON(t, router, "POST", "/campaigns/1/preview", map[string]interface{}{"lead_id": 10})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	html, _ := res["rendered_html"].(string)
	if !strings.Contains(html, "Ada") || !strings.Contains(html, "Sendloop") {
		t.Errorf("unexpected rendered html: %q", html)
	}
}

func TestPersonalizedPreviewWithOverride(t *testing.T) {
	repo := &stubCampaignRepo{campaign: &model.Campaign{
		ID:       1,
		BodyHTML: "<p>original</p>",
		Status:   model.CampaignStatusDraft,
	}}
	router := newTestRouter(repo, &stubRecipientRepo{})

	w := doJSON(t, router, "POST", "/campaigns/1/preview", map[string]interface{}{
		"lead_id":           10,
		"override_template": "<p>Alt for {{first_name}}</p>",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res map[string]interface{}
	json.NewDecoder(w.Body).Decode(&res)
	html, _ := res["rendered_html"].(string)
	if !strings.Contains(html, "Alt for Ada") {
		t.Errorf("override not used: %q", html)
	}
}

func TestListCampaignsDefaults(t *testing.T) {
	repo := &stubCampaignRepo{campaign: &model.Campaign{ID: 1, Name: "Launch", Status: model.CampaignStatusDraft}}
	router := newTestRouter(repo, &stubRecipientRepo{})

	w := doJSON(t, router, "GET", "/campaigns", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res struct {
		Data       []model.Campaign `json:"data"`
		Pagination struct {
			Page       int `json:"page"`
			PageSize   int `json:"page_size"`
			TotalCount int `json:"total_count"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Data) != 1 {
		t.Fatalf("expected 1 campaign, got %d", len(res.Data))
	}
	if res.Pagination.Page != 1 || res.Pagination.PageSize != 20 {
		t.Errorf("unexpected pagination defaults: %+v", res.Pagination)
	}
	if res.Pagination.TotalCount != 1 {
		t.Errorf("expected total_count 1, got %d", res.Pagination.TotalCount)
	}
}
