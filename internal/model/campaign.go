// internal/model/campaign.go
package model

import (
	"strings"
	"time"
)

// Campaign statuses.
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
	CampaignArchived  = "archived"
)

type Campaign struct {
	ID                   int        `db:"id" json:"id"`
	Name                 string     `db:"name" json:"name"`
	CampaignRef          string     `db:"campaign_ref" json:"campaign_ref"`
	Status               string     `db:"status" json:"status"`
	ContactListID        int        `db:"contact_list_id" json:"contact_list_id"`
	SendingWindowStart   int        `db:"sending_window_start" json:"sending_window_start"` // minutes from midnight
	SendingWindowEnd     int        `db:"sending_window_end" json:"sending_window_end"`     // exclusive
	SendingDays          string     `db:"sending_days" json:"sending_days"`                 // "Mon,Tue,..."; empty = all days
	RandomizationMinutes int        `db:"randomization_minutes" json:"randomization_minutes"`
	DailySendLimit       int        `db:"daily_send_limit" json:"daily_send_limit"`   // 0 = unlimited
	HourlySendLimit      int        `db:"hourly_send_limit" json:"hourly_send_limit"` // 0 = unlimited
	StepDelayDays        int        `db:"step_delay_days" json:"step_delay_days"`     // default when a step has none
	StartDate            *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate              *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// AllowedWeekdays parses the SendingDays list. An empty or unparseable list
// allows every day (nil map).
func (c *Campaign) AllowedWeekdays() map[time.Weekday]bool {
	if strings.TrimSpace(c.SendingDays) == "" {
		return nil
	}
	days := map[time.Weekday]bool{}
	for _, part := range strings.Split(c.SendingDays, ",") {
		key := strings.ToLower(strings.TrimSpace(part))
		if len(key) > 3 {
			key = key[:3]
		}
		if d, ok := weekdayNames[key]; ok {
			days[d] = true
		}
	}
	if len(days) == 0 {
		return nil
	}
	return days
}
