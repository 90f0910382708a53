package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/sendloop/sendloop-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	Create(t *model.Template) error
	GetByID(id int) (*model.Template, error)
	List() ([]model.Template, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) Create(t *model.Template) error {
	t.CreatedAt = time.Now()
	query := `
        INSERT INTO templates (name, subject, body_html, fields, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	return r.DB.QueryRow(query, t.Name, t.Subject, t.BodyHTML, pq.Array(t.Fields), t.CreatedAt).Scan(&t.ID)
}

func (r *TemplateRepository) GetByID(id int) (*model.Template, error) {
	query := `SELECT id, name, subject, body_html, fields, created_at FROM templates WHERE id=$1`
	var t model.Template
	err := r.DB.QueryRow(query, id).Scan(&t.ID, &t.Name, &t.Subject, &t.BodyHTML, pq.Array(&t.Fields), &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) List() ([]model.Template, error) {
	query := `SELECT id, name, subject, body_html, fields, created_at FROM templates ORDER BY id`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject, &t.BodyHTML, pq.Array(&t.Fields), &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
