// internal/model/lead.go
package model

// Lead is a contact record. Email is the typed core; everything else
// lives in the free-form attribute bag used as template variables.
type Lead struct {
	ID         int               `db:"id" json:"id"`
	Email      string            `db:"email" json:"email"`
	Attributes map[string]string `db:"attributes" json:"attributes,omitempty"`
}
