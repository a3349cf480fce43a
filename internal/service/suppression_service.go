// internal/service/suppression_service.go
package service

import (
	"log"

	appErrors "github.com/dripworks/leadflow-backend/internal/errors"
	"github.com/dripworks/leadflow-backend/internal/model"
	"github.com/dripworks/leadflow-backend/internal/repository"
)

// SuppressionService is the registry of blocked addresses. Adding an entry
// cascades into campaign memberships and the email queue.
type SuppressionService struct {
	SuppressionRepo repository.SuppressionRepositoryInterface
	MembershipRepo  repository.CampaignContactRepositoryInterface
	QueueRepo       repository.QueueRepositoryInterface
	ContactRepo     repository.ContactRepositoryInterface
}

// IsSuppressed reports whether sends to the address are blocked for the
// given campaign. Global entries block everywhere; campaign entries block
// only their own campaign.
func (s *SuppressionService) IsSuppressed(email string, campaignID int) (bool, error) {
	entry, err := s.SuppressionRepo.Get(email)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	if entry.Scope == model.ScopeGlobal {
		return true, nil
	}
	return entry.CampaignID != nil && *entry.CampaignID == campaignID, nil
}

// Add suppresses an address. Idempotent and first-write-wins: a repeat call
// returns the existing entry unchanged, dropping the new metadata.
//
// Cascade: every in-scope non-terminal membership for the address becomes
// unsubscribed and its still-pending queue rows are skipped.
func (s *SuppressionService) Add(email, scope, source string, campaignID *int, reason string) (*model.SuppressionEntry, error) {
	if scope != model.ScopeGlobal && scope != model.ScopeCampaign {
		return nil, appErrors.NewValidation("unknown suppression scope %q", scope)
	}
	if scope == model.ScopeCampaign && campaignID == nil {
		return nil, appErrors.NewValidation("campaign-scoped suppression requires a campaign id")
	}

	existing, err := s.SuppressionRepo.Get(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	entry := &model.SuppressionEntry{
		Email:      email,
		Scope:      scope,
		Source:     source,
		CampaignID: campaignID,
		Reason:     reason,
	}
	if err := s.SuppressionRepo.Insert(entry); err != nil {
		return nil, err
	}

	var scopeCampaign *int
	if scope == model.ScopeCampaign {
		scopeCampaign = campaignID
	}

	affected, err := s.MembershipRepo.UnsubscribeByEmail(email, scopeCampaign)
	if err != nil {
		return entry, err
	}

	contact, err := s.ContactRepo.GetByEmail(email)
	if err != nil {
		return entry, err
	}
	skipped := 0
	if contact != nil {
		skipped, err = s.QueueRepo.SkipPendingForContact(contact.ID, scopeCampaign, "suppressed")
		if err != nil {
			return entry, err
		}
	}

	log.Printf("suppressed %s (scope=%s source=%s): %d memberships unsubscribed, %d queued emails skipped",
		entry.Email, scope, source, len(affected), skipped)
	return entry, nil
}

// Remove deletes an entry. The earlier cascade is not reversed.
func (s *SuppressionService) Remove(email string) error {
	deleted, err := s.SuppressionRepo.Delete(email)
	if err != nil {
		return err
	}
	if !deleted {
		return appErrors.NewSuppression(email, "not in suppression list")
	}
	return nil
}

func (s *SuppressionService) List() ([]model.SuppressionEntry, error) {
	return s.SuppressionRepo.List()
}
