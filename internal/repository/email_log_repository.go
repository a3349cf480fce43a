package repository

import (
	"database/sql"
	"time"

	"github.com/dripworks/leadflow-backend/internal/model"
)

type EmailLogRepositoryInterface interface {
	Insert(l *model.EmailLog) error
	CountSentSince(campaignID int, since time.Time) (int, error)
	GetByTransportMessageID(messageID string) (*model.EmailLog, error)
	ListSentByContact(contactID int, since time.Time) ([]model.EmailLog, error)
}

type EmailLogRepository struct {
	DB *sql.DB
}

const emailLogColumns = `id, campaign_id, contact_id, step_id, subject, status, error_message, transport_message_id, sent_at`

func (r *EmailLogRepository) Insert(l *model.EmailLog) error {
	if l.SentAt.IsZero() {
		l.SentAt = time.Now()
	}
	query := `
        INSERT INTO email_logs (campaign_id, contact_id, step_id, subject, status, error_message, transport_message_id, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		l.CampaignID, l.ContactID, l.StepID, l.Subject, l.Status, l.ErrorMessage, l.TransportMessageID, l.SentAt,
	).Scan(&l.ID)
}

// CountSentSince backs the daily/hourly send-limit checks.
func (r *EmailLogRepository) CountSentSince(campaignID int, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM email_logs WHERE campaign_id=$1 AND status=$2 AND sent_at >= $3`
	var n int
	err := r.DB.QueryRow(query, campaignID, model.LogSent, since).Scan(&n)
	return n, err
}

// GetByTransportMessageID resolves an inbound conversation ID back to the
// send that started the thread.
func (r *EmailLogRepository) GetByTransportMessageID(messageID string) (*model.EmailLog, error) {
	query := `SELECT ` + emailLogColumns + ` FROM email_logs WHERE transport_message_id=$1 AND status=$2`
	var l model.EmailLog
	err := r.DB.QueryRow(query, messageID, model.LogSent).Scan(
		&l.ID, &l.CampaignID, &l.ContactID, &l.StepID, &l.Subject, &l.Status, &l.ErrorMessage, &l.TransportMessageID, &l.SentAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *EmailLogRepository) ListSentByContact(contactID int, since time.Time) ([]model.EmailLog, error) {
	query := `SELECT ` + emailLogColumns + ` FROM email_logs WHERE contact_id=$1 AND status=$2 AND sent_at >= $3 ORDER BY sent_at DESC`
	rows, err := r.DB.Query(query, contactID, model.LogSent, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []model.EmailLog{}
	for rows.Next() {
		var l model.EmailLog
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.ContactID, &l.StepID, &l.Subject, &l.Status, &l.ErrorMessage, &l.TransportMessageID, &l.SentAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

var _ EmailLogRepositoryInterface = (*EmailLogRepository)(nil)
