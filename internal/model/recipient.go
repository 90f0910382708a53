// internal/model/recipient.go
package model

import "time"

// RecipientStatus represents valid recipient statuses
type RecipientStatus string

const (
	RecipientStatusPending   RecipientStatus = "pending"
	RecipientStatusSent      RecipientStatus = "sent"
	RecipientStatusDelivered RecipientStatus = "delivered"
	RecipientStatusOpened    RecipientStatus = "opened"
	RecipientStatusClicked   RecipientStatus = "clicked"
	RecipientStatusReplied   RecipientStatus = "replied"
	RecipientStatusFailed    RecipientStatus = "failed"
)

// Recipient binds a lead to a campaign. Unique per (campaign, lead);
// only pending recipients are eligible for dispatch.
type Recipient struct {
	CampaignID   int             `db:"campaign_id" json:"campaign_id"`
	LeadID       int             `db:"lead_id" json:"lead_id"`
	Status       RecipientStatus `db:"status" json:"status"`
	SentAt       *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt  *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	OpenedAt     *time.Time      `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt    *time.Time      `db:"clicked_at" json:"clicked_at,omitempty"`
	RepliedAt    *time.Time      `db:"replied_at" json:"replied_at,omitempty"`
	ErrorMessage string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// PendingRecipient is a recipient joined with its lead, as fetched for
// dispatch.
type PendingRecipient struct {
	Recipient
	Lead Lead `json:"lead"`
}
