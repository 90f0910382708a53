// internal/model/template.go
package model

import "time"

// Template holds an HTML body, a subject line and the list of variable
// fields it declares. Campaigns snapshot subject and body at creation,
// so a template is effectively immutable once a campaign starts.
type Template struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Subject   string    `db:"subject" json:"subject"`
	BodyHTML  string    `db:"body_html" json:"body_html"`
	Fields    []string  `db:"fields" json:"fields"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
