package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/dripworks/leadflow-backend/internal/model"
)

type CampaignContactRepositoryInterface interface {
	Create(cc *model.CampaignContact) (bool, error)
	Get(campaignID, contactID int) (*model.CampaignContact, error)
	SetStatus(campaignID, contactID int, status string) error
	AdvanceStep(campaignID, contactID, step int, sentAt time.Time) error
	SetNextScheduled(campaignID, contactID int, at *time.Time) error
	MarkResponded(campaignID, contactID int, at time.Time) (bool, error)
	UnsubscribeByEmail(email string, campaignID *int) ([]model.CampaignContact, error)
	CountByStatus(campaignID int) (map[string]int, error)
}

type CampaignContactRepository struct {
	DB *sql.DB
}

const campaignContactColumns = `campaign_id, contact_id, status, current_step,
    last_email_sent_at, next_email_scheduled_at, responded_at, created_at, updated_at`

// Create inserts a membership row. Returns false when the (campaign, contact)
// pair is already enrolled; the existing row is left untouched.
func (r *CampaignContactRepository) Create(cc *model.CampaignContact) (bool, error) {
	now := time.Now()
	cc.CreatedAt = now
	cc.UpdatedAt = now
	if cc.Status == "" {
		cc.Status = model.ContactPending
	}
	query := `
        INSERT INTO campaign_contacts (campaign_id, contact_id, status, current_step,
            last_email_sent_at, next_email_scheduled_at, responded_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (campaign_id, contact_id) DO NOTHING
    `
	res, err := r.DB.Exec(query,
		cc.CampaignID, cc.ContactID, cc.Status, cc.CurrentStep,
		cc.LastEmailSentAt, cc.NextEmailScheduledAt, cc.RespondedAt, cc.CreatedAt, cc.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignContactRepository) Get(campaignID, contactID int) (*model.CampaignContact, error) {
	query := `SELECT ` + campaignContactColumns + `
        FROM campaign_contacts WHERE campaign_id=$1 AND contact_id=$2`
	var cc model.CampaignContact
	err := r.DB.QueryRow(query, campaignID, contactID).Scan(
		&cc.CampaignID, &cc.ContactID, &cc.Status, &cc.CurrentStep,
		&cc.LastEmailSentAt, &cc.NextEmailScheduledAt, &cc.RespondedAt, &cc.CreatedAt, &cc.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cc, nil
}

func (r *CampaignContactRepository) SetStatus(campaignID, contactID int, status string) error {
	query := `UPDATE campaign_contacts SET status=$1, updated_at=NOW() WHERE campaign_id=$2 AND contact_id=$3`
	_, err := r.DB.Exec(query, status, campaignID, contactID)
	return err
}

// AdvanceStep records a successful send: bumps the current step, stamps
// last_email_sent_at, and moves pending memberships to in_progress.
func (r *CampaignContactRepository) AdvanceStep(campaignID, contactID, step int, sentAt time.Time) error {
	query := `
        UPDATE campaign_contacts
        SET current_step=$1, last_email_sent_at=$2, status=$3, updated_at=NOW()
        WHERE campaign_id=$4 AND contact_id=$5
    `
	_, err := r.DB.Exec(query, step, sentAt, model.ContactInProgress, campaignID, contactID)
	return err
}

func (r *CampaignContactRepository) SetNextScheduled(campaignID, contactID int, at *time.Time) error {
	query := `UPDATE campaign_contacts SET next_email_scheduled_at=$1, updated_at=NOW() WHERE campaign_id=$2 AND contact_id=$3`
	_, err := r.DB.Exec(query, at, campaignID, contactID)
	return err
}

// MarkResponded flips a membership to responded exactly once. Returns false
// when responded_at was already set, which makes reply scans idempotent.
func (r *CampaignContactRepository) MarkResponded(campaignID, contactID int, at time.Time) (bool, error) {
	query := `
        UPDATE campaign_contacts
        SET status=$1, responded_at=$2, next_email_scheduled_at=NULL, updated_at=NOW()
        WHERE campaign_id=$3 AND contact_id=$4 AND responded_at IS NULL
    `
	res, err := r.DB.Exec(query, model.ContactResponded, at, campaignID, contactID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UnsubscribeByEmail sets every non-terminal membership for the address to
// unsubscribed. A nil campaignID applies globally; otherwise only the named
// campaign is touched. Returns the memberships that were updated.
func (r *CampaignContactRepository) UnsubscribeByEmail(email string, campaignID *int) ([]model.CampaignContact, error) {
	query := `
        UPDATE campaign_contacts cc
        SET status=$1, next_email_scheduled_at=NULL, updated_at=NOW()
        FROM contacts c
        WHERE cc.contact_id = c.id
          AND LOWER(c.email) = $2
          AND cc.status IN ($3, $4)
    `
	args := []interface{}{model.ContactUnsubscribed, strings.ToLower(strings.TrimSpace(email)), model.ContactPending, model.ContactInProgress}
	if campaignID != nil {
		query += " AND cc.campaign_id = $5"
		args = append(args, *campaignID)
	}
	query += ` RETURNING ` + prefixColumns("cc", campaignContactColumns)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := []model.CampaignContact{}
	for rows.Next() {
		var cc model.CampaignContact
		if err := rows.Scan(
			&cc.CampaignID, &cc.ContactID, &cc.Status, &cc.CurrentStep,
			&cc.LastEmailSentAt, &cc.NextEmailScheduledAt, &cc.RespondedAt, &cc.CreatedAt, &cc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		updated = append(updated, cc)
	}
	return updated, rows.Err()
}

func (r *CampaignContactRepository) CountByStatus(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_contacts WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

var _ CampaignContactRepositoryInterface = (*CampaignContactRepository)(nil)
