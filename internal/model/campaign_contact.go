// internal/model/campaign_contact.go
package model

import "time"

// CampaignContact statuses.
const (
	ContactPending      = "pending"
	ContactInProgress   = "in_progress"
	ContactResponded    = "responded"
	ContactCompleted    = "completed"
	ContactBounced      = "bounced"
	ContactUnsubscribed = "unsubscribed"
	ContactOptedOut     = "opted_out"
)

// TerminalContactStatus reports whether a membership status accepts no
// further sends or scheduling.
func TerminalContactStatus(status string) bool {
	switch status {
	case ContactResponded, ContactCompleted, ContactBounced, ContactUnsubscribed, ContactOptedOut:
		return true
	}
	return false
}

// CampaignContact tracks one recipient's progress through a campaign
// sequence. Unique per (campaign_id, contact_id).
type CampaignContact struct {
	CampaignID           int        `db:"campaign_id" json:"campaign_id"`
	ContactID            int        `db:"contact_id" json:"contact_id"`
	Status               string     `db:"status" json:"status"`
	CurrentStep          int        `db:"current_step" json:"current_step"`
	LastEmailSentAt      *time.Time `db:"last_email_sent_at" json:"last_email_sent_at,omitempty"`
	NextEmailScheduledAt *time.Time `db:"next_email_scheduled_at" json:"next_email_scheduled_at,omitempty"`
	RespondedAt          *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}
