package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sendloop/sendloop-backend/internal/model"
)

type RecipientRepositoryInterface interface {
	Attach(campaignID, leadID int) (bool, error)
	GetPending(campaignID int) ([]model.PendingRecipient, error)
	CountPending(campaignID int) (int, error)
	ListByCampaign(campaignID int) ([]model.Recipient, error)

	MarkSent(campaignID, leadID int) (bool, error)
	MarkFailed(campaignID, leadID int, errorMessage string) (bool, error)
	SetStatus(campaignID, leadID int, status model.RecipientStatus) (bool, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

// Attach binds a lead to a campaign as a pending recipient. Idempotent:
// an existing (campaign, lead) pair is left untouched and reported as
// not created.
func (r *RecipientRepository) Attach(campaignID, leadID int) (bool, error) {
	query := `
        INSERT INTO recipients (campaign_id, lead_id, status, created_at, updated_at)
        VALUES ($1, $2, 'pending', NOW(), NOW())
        ON CONFLICT (campaign_id, lead_id) DO NOTHING
    `
	res, err := r.DB.Exec(query, campaignID, leadID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetPending fetches all pending recipients of a campaign joined with
// their leads. Only pending recipients are eligible for dispatch.
func (r *RecipientRepository) GetPending(campaignID int) ([]model.PendingRecipient, error) {
	query := `
        SELECT r.campaign_id, r.lead_id, r.status, r.error_message, r.created_at, r.updated_at,
               l.id, l.email, l.attributes
        FROM recipients r
        JOIN leads l ON l.id = r.lead_id
        WHERE r.campaign_id=$1 AND r.status='pending'
        ORDER BY r.lead_id
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.PendingRecipient{}
	for rows.Next() {
		var pr model.PendingRecipient
		var errMsg sql.NullString
		var attrs []byte
		if err := rows.Scan(
			&pr.CampaignID, &pr.LeadID, &pr.Status, &errMsg, &pr.CreatedAt, &pr.UpdatedAt,
			&pr.Lead.ID, &pr.Lead.Email, &attrs,
		); err != nil {
			return nil, err
		}
		pr.ErrorMessage = errMsg.String
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &pr.Lead.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshal attributes: %w", err)
			}
		}
		recipients = append(recipients, pr)
	}
	return recipients, nil
}

func (r *RecipientRepository) CountPending(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(
		`SELECT COUNT(*) FROM recipients WHERE campaign_id=$1 AND status='pending'`,
		campaignID,
	).Scan(&count)
	return count, err
}

func (r *RecipientRepository) ListByCampaign(campaignID int) ([]model.Recipient, error) {
	query := `
        SELECT campaign_id, lead_id, status, sent_at, delivered_at, opened_at, clicked_at, replied_at, error_message, created_at, updated_at
        FROM recipients WHERE campaign_id=$1 ORDER BY lead_id
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		var rec model.Recipient
		var errMsg sql.NullString
		if err := rows.Scan(
			&rec.CampaignID, &rec.LeadID, &rec.Status,
			&rec.SentAt, &rec.DeliveredAt, &rec.OpenedAt, &rec.ClickedAt, &rec.RepliedAt,
			&errMsg, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rec.ErrorMessage = errMsg.String
		recipients = append(recipients, rec)
	}
	return recipients, nil
}

// MarkSent transitions pending -> sent conditionally so a second worker
// racing on the same recipient is a no-op instead of a double update.
func (r *RecipientRepository) MarkSent(campaignID, leadID int) (bool, error) {
	query := `
        UPDATE recipients SET status='sent', sent_at=NOW(), updated_at=NOW()
        WHERE campaign_id=$1 AND lead_id=$2 AND status='pending'
    `
	res, err := r.DB.Exec(query, campaignID, leadID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkFailed transitions pending -> failed conditionally, recording the
// error message. Terminal states stay sticky.
func (r *RecipientRepository) MarkFailed(campaignID, leadID int, errorMessage string) (bool, error) {
	query := `
        UPDATE recipients SET status='failed', error_message=$3, updated_at=NOW()
        WHERE campaign_id=$1 AND lead_id=$2 AND status='pending'
    `
	res, err := r.DB.Exec(query, campaignID, leadID, errorMessage)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetStatus applies a tracking transition (delivered, opened, clicked,
// replied). Pending and failed rows are never touched here, so the
// dispatch state machine cannot be bypassed by tracking events.
func (r *RecipientRepository) SetStatus(campaignID, leadID int, status model.RecipientStatus) (bool, error) {
	col := ""
	switch status {
	case model.RecipientStatusDelivered:
		col = "delivered_at"
	case model.RecipientStatusOpened:
		col = "opened_at"
	case model.RecipientStatusClicked:
		col = "clicked_at"
	case model.RecipientStatusReplied:
		col = "replied_at"
	default:
		return false, fmt.Errorf("status %q is not a tracking status", status)
	}

	query := fmt.Sprintf(`
        UPDATE recipients SET status=$3, %s=NOW(), updated_at=NOW()
        WHERE campaign_id=$1 AND lead_id=$2 AND status NOT IN ('pending', 'failed')
    `, col)
	res, err := r.DB.Exec(query, campaignID, leadID, status)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
