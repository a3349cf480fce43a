// internal/service/template_service.go
package service

import (
	"regexp"
	"strings"

	"github.com/dripworks/leadflow-backend/internal/model"
)

var mergeTagPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{Tag}} merge tags, case-insensitively.
// Unknown tags pass through unchanged.
func RenderTemplate(template string, data map[string]string) string {
	lower := make(map[string]string, len(data))
	for k, v := range data {
		lower[strings.ToLower(k)] = v
	}
	return mergeTagPattern.ReplaceAllStringFunc(template, func(tag string) string {
		key := strings.ToLower(mergeTagPattern.FindStringSubmatch(tag)[1])
		if v, ok := lower[key]; ok {
			return v
		}
		return tag
	})
}

// MergeData builds the merge-tag values for one contact in one campaign.
func MergeData(contact *model.Contact, campaign *model.Campaign) map[string]string {
	return map[string]string{
		"FirstName":    contact.FirstName,
		"LastName":     contact.LastName,
		"Email":        contact.Email,
		"Company":      contact.Company,
		"Position":     contact.Position,
		"Phone":        contact.Phone,
		"CampaignName": campaign.Name,
		"CampaignRef":  campaign.CampaignRef,
	}
}

// Render is the renderer consumed by the queue engine: pure, no state.
func Render(template string, contact *model.Contact, campaign *model.Campaign) string {
	return RenderTemplate(template, MergeData(contact, campaign))
}
