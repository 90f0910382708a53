// internal/model/job.go
package model

// Job is one queued unit of work: send this rendered email to this
// recipient. Jobs live only inside the dispatch queue; they are a
// disposable projection of a recipient + template pair.
type Job struct {
	To         string            `json:"to"`
	Subject    string            `json:"subject"`
	HTML       string            `json:"html"`
	CampaignID int               `json:"campaign_id"`
	LeadID     int               `json:"lead_id"`
	Variables  map[string]string `json:"variables,omitempty"`
}
