// internal/model/email_step.go
package model

import "time"

type EmailStep struct {
	ID              int       `db:"id" json:"id"`
	CampaignID      int       `db:"campaign_id" json:"campaign_id"`
	StepNumber      int       `db:"step_number" json:"step_number"`
	SubjectTemplate string    `db:"subject_template" json:"subject_template"`
	BodyTemplate    string    `db:"body_template" json:"body_template"`
	DelayDays       int       `db:"delay_days" json:"delay_days"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
