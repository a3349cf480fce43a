// internal/model/email_log.go
package model

import "time"

// EmailLog statuses.
const (
	LogSent   = "Sent"
	LogFailed = "Failed"
)

// EmailLog is the audit record for every terminal send outcome. The
// transport message ID doubles as the conversation anchor for reply matching.
type EmailLog struct {
	ID                 int       `db:"id" json:"id"`
	CampaignID         int       `db:"campaign_id" json:"campaign_id"`
	ContactID          int       `db:"contact_id" json:"contact_id"`
	StepID             int       `db:"step_id" json:"step_id"`
	Subject            string    `db:"subject" json:"subject"`
	Status             string    `db:"status" json:"status"`
	ErrorMessage       string    `db:"error_message" json:"error_message,omitempty"`
	TransportMessageID string    `db:"transport_message_id" json:"transport_message_id,omitempty"`
	SentAt             time.Time `db:"sent_at" json:"sent_at"`
}
