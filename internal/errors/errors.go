package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrInvalidState signals a campaign operation attempted in the wrong
// status, e.g. starting a campaign that is not a draft.
type ErrInvalidState struct {
	CampaignID int
	Status     string
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("campaign %d is in status %q", e.CampaignID, e.Status)
}

func NewInvalidState(id int, status string) error {
	return &ErrInvalidState{CampaignID: id, Status: status}
}

// ErrNoRecipients signals a start attempt with zero pending recipients.
type ErrNoRecipients struct {
	CampaignID int
}

func (e *ErrNoRecipients) Error() string {
	return fmt.Sprintf("campaign %d has no pending recipients", e.CampaignID)
}

func NewNoRecipients(id int) error {
	return &ErrNoRecipients{CampaignID: id}
}

// ErrInvalidTemplate signals a rendered body that failed the structural
// sanity check before dispatch.
type ErrInvalidTemplate struct {
	Reason string
}

func (e *ErrInvalidTemplate) Error() string {
	return fmt.Sprintf("invalid rendered template: %s", e.Reason)
}

func NewInvalidTemplate(reason string) error {
	return &ErrInvalidTemplate{Reason: reason}
}
