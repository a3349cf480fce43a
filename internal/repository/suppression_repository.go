package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/dripworks/leadflow-backend/internal/model"
)

type SuppressionRepositoryInterface interface {
	Get(email string) (*model.SuppressionEntry, error)
	Insert(e *model.SuppressionEntry) error
	Delete(email string) (bool, error)
	List() ([]model.SuppressionEntry, error)
}

type SuppressionRepository struct {
	DB *sql.DB
}

// Get fetches the entry for a normalized address, nil if absent.
func (r *SuppressionRepository) Get(email string) (*model.SuppressionEntry, error) {
	query := `SELECT email, scope, source, campaign_id, reason, created_at FROM suppression_list WHERE email=$1`
	var e model.SuppressionEntry
	err := r.DB.QueryRow(query, NormalizeEmail(email)).Scan(
		&e.Email, &e.Scope, &e.Source, &e.CampaignID, &e.Reason, &e.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *SuppressionRepository) Insert(e *model.SuppressionEntry) error {
	e.Email = NormalizeEmail(e.Email)
	e.CreatedAt = time.Now()
	query := `
        INSERT INTO suppression_list (email, scope, source, campaign_id, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.DB.Exec(query, e.Email, e.Scope, e.Source, e.CampaignID, e.Reason, e.CreatedAt)
	return err
}

func (r *SuppressionRepository) Delete(email string) (bool, error) {
	res, err := r.DB.Exec(`DELETE FROM suppression_list WHERE email=$1`, NormalizeEmail(email))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SuppressionRepository) List() ([]model.SuppressionEntry, error) {
	query := `SELECT email, scope, source, campaign_id, reason, created_at FROM suppression_list ORDER BY created_at DESC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.SuppressionEntry{}
	for rows.Next() {
		var e model.SuppressionEntry
		if err := rows.Scan(&e.Email, &e.Scope, &e.Source, &e.CampaignID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NormalizeEmail lowercases and trims an address; every suppression lookup
// and write goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ SuppressionRepositoryInterface = (*SuppressionRepository)(nil)
