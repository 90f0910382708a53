// internal/service/job_builder.go
package service

import (
	"log"
	"regexp"
	"strings"

	appErrors "github.com/sendloop/sendloop-backend/internal/errors"
	"github.com/sendloop/sendloop-backend/internal/model"
	"github.com/sendloop/sendloop-backend/internal/render"
)

// markupPattern is the structural sanity check: a rendered body has to
// contain at least one markup tag to count as a document.
var markupPattern = regexp.MustCompile(`<[a-zA-Z!/]`)

// JobBuilder turns a campaign's pending recipients into dispatch jobs.
// Fallback is the optional template substituted when the campaign's own
// snapshot renders to something that fails the structural gate.
type JobBuilder struct {
	Fallback *model.Template
}

// SkippedRecipient records a recipient for whom no job could be built.
type SkippedRecipient struct {
	LeadID int
	Reason string
}

// BuildJobs builds one job per pending recipient. The base variable set
// (campaign-level constants) is merged with the recipient's own
// attributes, recipient attributes winning on collision. Recipients
// whose rendered body fails the gate even after the fallback template
// are returned as skipped; the builder itself never touches the store.
func (b *JobBuilder) BuildJobs(campaign *model.Campaign, recipients []model.PendingRecipient) ([]model.Job, []SkippedRecipient) {
	jobs := []model.Job{}
	skipped := []SkippedRecipient{}

	for _, rec := range recipients {
		if rec.Status != model.RecipientStatusPending {
			continue
		}

		vars := render.Merge(campaign.BaseVars, rec.Lead.Attributes)
		subject := render.Render(campaign.Subject, vars)
		body := render.Render(campaign.BodyHTML, vars)

		if err := validateBody(body); err != nil {
			if b.Fallback == nil {
				log.Printf("recipient skipped: campaign=%d lead=%d: %v", campaign.ID, rec.Lead.ID, err)
				skipped = append(skipped, SkippedRecipient{LeadID: rec.Lead.ID, Reason: err.Error()})
				continue
			}

			// Policy decision, not a hidden fix: the fallback template
			// replaces a broken primary render and is logged as its own
			// event.
			log.Printf("fallback template substituted: campaign=%d lead=%d template=%d: %v",
				campaign.ID, rec.Lead.ID, b.Fallback.ID, err)
			subject = render.Render(b.Fallback.Subject, vars)
			body = render.Render(b.Fallback.BodyHTML, vars)

			if err := validateBody(body); err != nil {
				log.Printf("recipient skipped after fallback: campaign=%d lead=%d: %v", campaign.ID, rec.Lead.ID, err)
				skipped = append(skipped, SkippedRecipient{LeadID: rec.Lead.ID, Reason: err.Error()})
				continue
			}
		}

		jobs = append(jobs, model.Job{
			To:         rec.Lead.Email,
			Subject:    subject,
			HTML:       body,
			CampaignID: campaign.ID,
			LeadID:     rec.Lead.ID,
			Variables:  vars,
		})
	}

	return jobs, skipped
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return appErrors.NewInvalidTemplate("rendered body is empty")
	}
	if !markupPattern.MatchString(body) {
		return appErrors.NewInvalidTemplate("rendered body contains no markup")
	}
	return nil
}
