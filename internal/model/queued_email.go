// internal/model/queued_email.go
package model

import "time"

// QueuedEmail statuses. Legal transitions:
// pending -> sending -> {sent, pending, failed}; pending -> skipped.
const (
	QueuePending = "pending"
	QueueSending = "sending"
	QueueSent    = "sent"
	QueueFailed  = "failed"
	QueueSkipped = "skipped"
)

// MaxSendAttempts is the retry policy: a claim that fails this many times
// becomes a terminal failure.
const MaxSendAttempts = 3

type QueuedEmail struct {
	ID            int        `db:"id" json:"id"`
	CampaignID    int        `db:"campaign_id" json:"campaign_id"`
	ContactID     int        `db:"contact_id" json:"contact_id"`
	StepID        int        `db:"step_id" json:"step_id"`
	ScheduledAt   time.Time  `db:"scheduled_at" json:"scheduled_at"`
	Status        string     `db:"status" json:"status"`
	Attempts      int        `db:"attempts" json:"attempts"`
	LastAttemptAt *time.Time `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	ErrorMessage  string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
