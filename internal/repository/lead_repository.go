package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sendloop/sendloop-backend/internal/model"
)

// LeadRepositoryInterface defines methods used by services and workers
type LeadRepositoryInterface interface {
	GetByID(id int) (*model.Lead, error)
	ListAll() ([]model.Lead, error)
	Create(lead *model.Lead) error
	Delete(id int) error
}

// LeadRepository is the concrete implementation
type LeadRepository struct {
	DB *sql.DB
}

// GetByID fetches a lead by ID
func (r *LeadRepository) GetByID(id int) (*model.Lead, error) {
	query := `SELECT id, email, attributes FROM leads WHERE id = $1`
	row := r.DB.QueryRow(query, id)

	var l model.Lead
	var attrs []byte
	if err := row.Scan(&l.ID, &l.Email, &attrs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &l.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	return &l, nil
}

// ListAll fetches all leads
func (r *LeadRepository) ListAll() ([]model.Lead, error) {
	query := `SELECT id, email, attributes FROM leads ORDER BY id`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		var l model.Lead
		var attrs []byte
		if err := rows.Scan(&l.ID, &l.Email, &attrs); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &l.Attributes); err != nil {
				return nil, err
			}
		}
		leads = append(leads, l)
	}
	return leads, nil
}

// Create inserts a new lead
func (r *LeadRepository) Create(lead *model.Lead) error {
	attrs, err := json.Marshal(lead.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	query := `INSERT INTO leads (email, attributes) VALUES ($1, $2) RETURNING id`
	return r.DB.QueryRow(query, lead.Email, attrs).Scan(&lead.ID)
}

// Delete removes a lead. Recipient rows referencing it are removed by
// the ON DELETE CASCADE foreign key.
func (r *LeadRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM leads WHERE id=$1`, id)
	return err
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
