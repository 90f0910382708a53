package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/sendloop/sendloop-backend/internal/errors"
	"github.com/sendloop/sendloop-backend/internal/model"
)

// memStore backs the mock repositories with one shared in-memory state
// so worker outcomes are observable through the same fixtures the
// service writes to.
type memStore struct {
	mu         sync.Mutex
	campaigns  map[int]*model.Campaign
	templates  map[int]*model.Template
	leads      map[int]*model.Lead
	recipients map[string]*model.Recipient
	nextID     int
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:  make(map[int]*model.Campaign),
		templates:  make(map[int]*model.Template),
		leads:      make(map[int]*model.Lead),
		recipients: make(map[string]*model.Recipient),
		nextID:     1,
	}
}

func recKey(campaignID, leadID int) string {
	return fmt.Sprintf("%d:%d", campaignID, leadID)
}

func (s *memStore) id() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memStore) addLead(email string, attrs map[string]string) *model.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &model.Lead{ID: s.id(), Email: email, Attributes: attrs}
	s.leads[l.ID] = l
	return l
}

func (s *memStore) addCampaign(status model.CampaignStatus, subject, body string, baseVars map[string]string) *model.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &model.Campaign{
		ID:        s.id(),
		Name:      "test campaign",
		Subject:   subject,
		BodyHTML:  body,
		BaseVars:  baseVars,
		Status:    status,
		CreatedAt: time.Now(),
	}
	s.campaigns[c.ID] = c
	return c
}

func (s *memStore) addRecipient(campaignID, leadID int, status model.RecipientStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients[recKey(campaignID, leadID)] = &model.Recipient{
		CampaignID: campaignID,
		LeadID:     leadID,
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func (s *memStore) recipientStatus(campaignID, leadID int) (model.RecipientStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recipients[recKey(campaignID, leadID)]
	if !ok {
		return "", false
	}
	return rec.Status, true
}

func (s *memStore) campaignStatus(campaignID int) model.CampaignStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaigns[campaignID].Status
}

// --- Mock repositories ---

type mockCampaignRepo struct{ store *memStore }

func (m *mockCampaignRepo) Create(c *model.Campaign) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	c.ID = m.store.id()
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	cp := *c
	m.store.campaigns[c.ID] = &cp
	return nil
}

func (m *mockCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	c, ok := m.store.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *mockCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range m.store.campaigns {
		if status != "" && string(c.Status) != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockCampaignRepo) UpdateStatus(campaignID int, status model.CampaignStatus) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if c, ok := m.store.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (m *mockCampaignRepo) UpdateStatusIf(campaignID int, from, to model.CampaignStatus) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	c, ok := m.store.campaigns[campaignID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (m *mockCampaignRepo) GetRecipientStats(campaignID int) (map[string]int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stats := map[string]int{"pending": 0, "sent": 0, "failed": 0}
	for _, r := range m.store.recipients {
		if r.CampaignID == campaignID {
			stats[string(r.Status)]++
		}
	}
	return stats, nil
}

type mockTemplateRepo struct{ store *memStore }

func (m *mockTemplateRepo) Create(t *model.Template) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	t.ID = m.store.id()
	cp := *t
	m.store.templates[t.ID] = &cp
	return nil
}

func (m *mockTemplateRepo) GetByID(id int) (*model.Template, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	t, ok := m.store.templates[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockTemplateRepo) List() ([]model.Template, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := []model.Template{}
	for _, t := range m.store.templates {
		out = append(out, *t)
	}
	return out, nil
}

type mockLeadRepo struct{ store *memStore }

func (m *mockLeadRepo) GetByID(id int) (*model.Lead, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	l, ok := m.store.leads[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *mockLeadRepo) ListAll() ([]model.Lead, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := []model.Lead{}
	for _, l := range m.store.leads {
		out = append(out, *l)
	}
	return out, nil
}

func (m *mockLeadRepo) Create(lead *model.Lead) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	lead.ID = m.store.id()
	cp := *lead
	m.store.leads[lead.ID] = &cp
	return nil
}

// Delete removes the lead and, like the real schema's cascade, its
// recipient rows.
func (m *mockLeadRepo) Delete(id int) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	delete(m.store.leads, id)
	for key, r := range m.store.recipients {
		if r.LeadID == id {
			delete(m.store.recipients, key)
		}
	}
	return nil
}

type mockRecipientRepo struct{ store *memStore }

func (m *mockRecipientRepo) Attach(campaignID, leadID int) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	key := recKey(campaignID, leadID)
	if _, exists := m.store.recipients[key]; exists {
		return false, nil
	}
	m.store.recipients[key] = &model.Recipient{
		CampaignID: campaignID,
		LeadID:     leadID,
		Status:     model.RecipientStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	return true, nil
}

func (m *mockRecipientRepo) GetPending(campaignID int) ([]model.PendingRecipient, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := []model.PendingRecipient{}
	for _, r := range m.store.recipients {
		if r.CampaignID != campaignID || r.Status != model.RecipientStatusPending {
			continue
		}
		lead, ok := m.store.leads[r.LeadID]
		if !ok {
			continue
		}
		out = append(out, model.PendingRecipient{Recipient: *r, Lead: *lead})
	}
	return out, nil
}

func (m *mockRecipientRepo) CountPending(campaignID int) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	count := 0
	for _, r := range m.store.recipients {
		if r.CampaignID == campaignID && r.Status == model.RecipientStatusPending {
			count++
		}
	}
	return count, nil
}

func (m *mockRecipientRepo) ListByCampaign(campaignID int) ([]model.Recipient, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := []model.Recipient{}
	for _, r := range m.store.recipients {
		if r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockRecipientRepo) MarkSent(campaignID, leadID int) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	r, ok := m.store.recipients[recKey(campaignID, leadID)]
	if !ok || r.Status != model.RecipientStatusPending {
		return false, nil
	}
	now := time.Now()
	r.Status = model.RecipientStatusSent
	r.SentAt = &now
	r.UpdatedAt = now
	return true, nil
}

func (m *mockRecipientRepo) MarkFailed(campaignID, leadID int, errorMessage string) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	r, ok := m.store.recipients[recKey(campaignID, leadID)]
	if !ok || r.Status != model.RecipientStatusPending {
		return false, nil
	}
	r.Status = model.RecipientStatusFailed
	r.ErrorMessage = errorMessage
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockRecipientRepo) SetStatus(campaignID, leadID int, status model.RecipientStatus) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	r, ok := m.store.recipients[recKey(campaignID, leadID)]
	if !ok || r.Status == model.RecipientStatusPending || r.Status == model.RecipientStatusFailed {
		return false, nil
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return true, nil
}

// scriptedSender pops a scripted outcome per recipient address and
// records call times for spacing assertions.
type scriptedSender struct {
	mu        sync.Mutex
	script    map[string][]error
	callTimes map[string][]time.Time
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{
		script:    make(map[string][]error),
		callTimes: make(map[string][]time.Time),
	}
}

func (s *scriptedSender) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callTimes[to] = append(s.callTimes[to], time.Now())
	if seq := s.script[to]; len(seq) > 0 {
		err := seq[0]
		s.script[to] = seq[1:]
		return err
	}
	return nil
}

func (s *scriptedSender) calls(to string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.callTimes[to])
}
