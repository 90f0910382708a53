// internal/controller/template_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/sendloop/sendloop-backend/internal/model"
	"github.com/sendloop/sendloop-backend/internal/repository"
)

type TemplateController struct {
	TemplateRepo repository.TemplateRepositoryInterface
}

func (c *TemplateController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string   `json:"name"`
		Subject  string   `json:"subject"`
		BodyHTML string   `json:"body_html"`
		Fields   []string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.BodyHTML == "" {
		http.Error(w, "name and body_html are required", http.StatusBadRequest)
		return
	}

	tpl := &model.Template{
		Name:     body.Name,
		Subject:  body.Subject,
		BodyHTML: body.BodyHTML,
		Fields:   body.Fields,
	}
	if err := c.TemplateRepo.Create(tpl); err != nil {
		http.Error(w, "failed to create template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, tpl)
}

func (c *TemplateController) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := c.TemplateRepo.List()
	if err != nil {
		http.Error(w, "failed to fetch templates: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": templates})
}
