// internal/model/campaign.go
package model

import "time"

// CampaignStatus represents valid campaign statuses
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// campaignStatusRank orders statuses so transitions only move forward.
var campaignStatusRank = map[CampaignStatus]int{
	CampaignStatusDraft:     0,
	CampaignStatusRunning:   1,
	CampaignStatusCompleted: 2,
}

// CanTransition reports whether moving from the current status to next
// is a forward transition. Backwards moves are never allowed.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	cur, ok := campaignStatusRank[s]
	if !ok {
		return false
	}
	nxt, ok := campaignStatusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// Campaign is a bulk send bound to one template snapshot and a set of
// recipients. Subject and BodyHTML are copied from the template at
// creation so later template edits never change a running campaign.
type Campaign struct {
	ID          int               `db:"id" json:"id"`
	Name        string            `db:"name" json:"name"`
	TemplateID  int               `db:"template_id" json:"template_id"`
	Subject     string            `db:"subject" json:"subject"`
	BodyHTML    string            `db:"body_html" json:"body_html"`
	BaseVars    map[string]string `db:"base_vars" json:"base_vars,omitempty"`
	Status      CampaignStatus    `db:"status" json:"status"`
	ScheduledAt *time.Time        `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time        `db:"updated_at" json:"updated_at,omitempty"`
}
