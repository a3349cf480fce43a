// internal/service/lifecycle_service.go
package service

import (
	"log"
	"time"

	appErrors "github.com/dripworks/leadflow-backend/internal/errors"
	"github.com/dripworks/leadflow-backend/internal/model"
	"github.com/dripworks/leadflow-backend/internal/repository"
)

// LifecycleService drives campaign state transitions:
// draft -> active <-> paused -> completed -> archived.
type LifecycleService struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	ContactRepo    repository.ContactRepositoryInterface
	MembershipRepo repository.CampaignContactRepositoryInterface
	QueueRepo      repository.QueueRepositoryInterface
	Suppression    *SuppressionService

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *LifecycleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CampaignStats is the per-campaign status breakdown.
type CampaignStats struct {
	CampaignID int            `json:"campaign_id"`
	Status     string         `json:"status"`
	Contacts   map[string]int `json:"contacts"`
	Queue      map[string]int `json:"queue"`
}

// Activate moves a draft or paused campaign to active. Requires at least one
// active step and one non-suppressed contact. Enrolls every eligible contact
// not already on the campaign with a pending membership and a first queued
// email scheduled now (clamped into the sending window). Resuming does not
// backfill sends skipped by an earlier pause.
func (s *LifecycleService) Activate(campaignID int) error {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignPaused {
		return appErrors.NewIllegalTransition(campaignID, c.Status, model.CampaignActive)
	}

	steps, err := s.CampaignRepo.ListActiveSteps(campaignID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return appErrors.NewValidation("campaign %d has no active email steps", campaignID)
	}

	contacts, err := s.ContactRepo.ListByList(c.ContactListID)
	if err != nil {
		return err
	}
	eligible := []model.Contact{}
	for _, contact := range contacts {
		suppressed, err := s.Suppression.IsSuppressed(contact.Email, campaignID)
		if err != nil {
			return err
		}
		if !suppressed {
			eligible = append(eligible, contact)
		}
	}
	if len(eligible) == 0 {
		return appErrors.NewValidation("campaign %d has no eligible contacts", campaignID)
	}

	first := steps[0]
	now := s.now()
	window := SendWindow{Start: c.SendingWindowStart, End: c.SendingWindowEnd}
	days := c.AllowedWeekdays()
	enrolled := 0

	for _, contact := range eligible {
		created, err := s.MembershipRepo.Create(&model.CampaignContact{
			CampaignID: campaignID,
			ContactID:  contact.ID,
			Status:     model.ContactPending,
		})
		if err != nil {
			return err
		}
		if !created {
			// Already enrolled from a previous activation.
			continue
		}

		at := PlanSendTime(now, 0, 0, window, days, nil)
		q := &model.QueuedEmail{
			CampaignID:  campaignID,
			ContactID:   contact.ID,
			StepID:      first.ID,
			ScheduledAt: at,
			Status:      model.QueuePending,
		}
		if err := s.QueueRepo.Insert(q); err != nil {
			return err
		}
		if err := s.MembershipRepo.SetNextScheduled(campaignID, contact.ID, &at); err != nil {
			return err
		}
		enrolled++
	}

	if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignActive); err != nil {
		return err
	}
	if err := s.CampaignRepo.SetStartDate(campaignID, now); err != nil {
		return err
	}

	log.Printf("campaign %d activated: %d contacts enrolled", campaignID, enrolled)
	return nil
}

// Pause stops an active campaign. Every currently-pending queued email is
// skipped; this is not reversed on resume.
func (s *LifecycleService) Pause(campaignID int) error {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignActive {
		return appErrors.NewIllegalTransition(campaignID, c.Status, model.CampaignPaused)
	}

	if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignPaused); err != nil {
		return err
	}
	skipped, err := s.QueueRepo.SkipPendingForCampaign(campaignID, "campaign paused")
	if err != nil {
		return err
	}
	log.Printf("campaign %d paused: %d queued emails skipped", campaignID, skipped)
	return nil
}

// Complete ends a campaign from any non-draft state: remaining pending items
// are skipped and the end date is stamped.
func (s *LifecycleService) Complete(campaignID int) error {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignDraft {
		return appErrors.NewIllegalTransition(campaignID, c.Status, model.CampaignCompleted)
	}

	if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignCompleted); err != nil {
		return err
	}
	if _, err := s.QueueRepo.SkipPendingForCampaign(campaignID, "campaign completed"); err != nil {
		return err
	}
	return s.CampaignRepo.SetEndDate(campaignID, s.now())
}

// Archive is terminal and only legal for non-active campaigns.
func (s *LifecycleService) Archive(campaignID int) error {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignActive {
		return appErrors.NewIllegalTransition(campaignID, c.Status, model.CampaignArchived)
	}
	return s.CampaignRepo.UpdateStatus(campaignID, model.CampaignArchived)
}

// CampaignList is one page of campaigns.
type CampaignList struct {
	Campaigns []*model.Campaign `json:"campaigns"`
	Total     int               `json:"total"`
}

// List returns a page of campaigns, optionally filtered by status.
func (s *LifecycleService) List(offset, limit int, status string) (*CampaignList, error) {
	campaigns, total, err := s.CampaignRepo.ListCampaigns(offset, limit, status)
	if err != nil {
		return nil, err
	}
	return &CampaignList{Campaigns: campaigns, Total: total}, nil
}

// Stats returns counts by membership status and queue status.
func (s *LifecycleService) Stats(campaignID int) (*CampaignStats, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	contacts, err := s.MembershipRepo.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}
	queue, err := s.QueueRepo.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}
	return &CampaignStats{
		CampaignID: campaignID,
		Status:     c.Status,
		Contacts:   contacts,
		Queue:      queue,
	}, nil
}
