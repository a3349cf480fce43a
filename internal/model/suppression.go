// internal/model/suppression.go
package model

import "time"

// Suppression scopes.
const (
	ScopeGlobal   = "global"
	ScopeCampaign = "campaign"
)

// Suppression sources.
const (
	SourceManual  = "manual"
	SourceInbound = "inbound"
	SourceBounce  = "bounce"
)

type SuppressionEntry struct {
	Email      string    `db:"email" json:"email"` // stored lowercased
	Scope      string    `db:"scope" json:"scope"`
	Source     string    `db:"source" json:"source"`
	CampaignID *int      `db:"campaign_id" json:"campaign_id,omitempty"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
