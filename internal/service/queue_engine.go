// internal/service/queue_engine.go
package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	appErrors "github.com/dripworks/leadflow-backend/internal/errors"
	"github.com/dripworks/leadflow-backend/internal/model"
	"github.com/dripworks/leadflow-backend/internal/repository"
	"github.com/dripworks/leadflow-backend/internal/transport"
)

// Dispatch outcomes.
const (
	DispatchSent    = "sent"
	DispatchFailed  = "failed"
	DispatchSkipped = "skipped"
	DispatchRetried = "retried"
	DispatchLost    = "lost" // another worker claimed the item first
)

// DefaultSendTimeout bounds each transport call.
const DefaultSendTimeout = 30 * time.Second

// CycleResult is the outcome of one scan-and-dispatch cycle.
type CycleResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// QueueEngine owns the queued-email state machine: it scans for due items,
// claims and dispatches them, and schedules each contact's next step. The
// engine is stateless between calls; everything durable lives in the
// repositories, so any number of workers can run dispatches concurrently.
type QueueEngine struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	ContactRepo    repository.ContactRepositoryInterface
	MembershipRepo repository.CampaignContactRepositoryInterface
	QueueRepo      repository.QueueRepositoryInterface
	LogRepo        repository.EmailLogRepositoryInterface
	Suppression    *SuppressionService
	Transport      transport.MailTransport

	SendTimeout time.Duration

	// Now and Rand are swappable for tests; nil means time.Now and the
	// global source.
	Now  func() time.Time
	Rand *rand.Rand
}

func (e *QueueEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *QueueEngine) sendTimeout() time.Duration {
	if e.SendTimeout > 0 {
		return e.SendTimeout
	}
	return DefaultSendTimeout
}

// GetDueItems returns up to limit pending items whose scheduled_at has
// passed and whose campaign is active, earliest first.
func (e *QueueEngine) GetDueItems(limit int) ([]*model.QueuedEmail, error) {
	return e.QueueRepo.GetDueItems(limit, e.now())
}

// RunDueCycle scans for due items and dispatches them in order. Transport
// failures never abort the loop. Items beyond a campaign's daily or hourly
// send limit stay pending for a later cycle. The budget per campaign is read
// once per cycle and decremented as sends succeed.
func (e *QueueEngine) RunDueCycle(batchLimit int) (CycleResult, error) {
	res := CycleResult{}
	items, err := e.GetDueItems(batchLimit)
	if err != nil {
		return res, err
	}

	budgets := map[int]int{}
	for _, item := range items {
		budget, ok := budgets[item.CampaignID]
		if !ok {
			b, err := e.sendBudget(item.CampaignID)
			if err != nil {
				log.Printf("send-limit check for campaign %d: %v", item.CampaignID, err)
				continue
			}
			budget = b
			budgets[item.CampaignID] = b
		}
		if budget == 0 {
			continue
		}

		outcome, err := e.Dispatch(item)
		if err != nil {
			log.Printf("dispatch queued email %d: %v", item.ID, err)
			continue
		}
		switch outcome {
		case DispatchSent:
			res.Sent++
			if budget > 0 {
				budgets[item.CampaignID] = budget - 1
			}
		case DispatchFailed:
			res.Failed++
		case DispatchSkipped:
			res.Skipped++
		}
	}
	return res, nil
}

// CollectDue returns the IDs of due items for handing to the fan-out queue,
// capped per campaign at its remaining send budget so consumers cannot blow
// past a limit no matter how many items are due. The claim in Dispatch keeps
// a published ID from being sent twice.
func (e *QueueEngine) CollectDue(batchLimit int) ([]int, error) {
	items, err := e.GetDueItems(batchLimit)
	if err != nil {
		return nil, err
	}
	budgets := map[int]int{}
	ids := []int{}
	for _, item := range items {
		budget, ok := budgets[item.CampaignID]
		if !ok {
			b, err := e.sendBudget(item.CampaignID)
			if err != nil {
				log.Printf("send-limit check for campaign %d: %v", item.CampaignID, err)
				continue
			}
			budget = b
			budgets[item.CampaignID] = b
		}
		if budget == 0 {
			continue
		}
		ids = append(ids, item.ID)
		if budget > 0 {
			budgets[item.CampaignID] = budget - 1
		}
	}
	return ids, nil
}

// DispatchByID re-reads an item (e.g. off the fan-out queue) and dispatches
// it if still pending.
func (e *QueueEngine) DispatchByID(id int) (string, error) {
	item, err := e.QueueRepo.GetByID(id)
	if err != nil {
		return "", err
	}
	if item == nil || item.Status != model.QueuePending {
		return DispatchLost, nil
	}
	return e.Dispatch(item)
}

// Dispatch sends one queued email. The pending->sending claim is a single
// compare-and-swap, so concurrent workers cannot double-send. Suppression
// and terminal-contact checks are re-run here, after the claim, to close the
// gap left by scheduling-time checks.
func (e *QueueEngine) Dispatch(item *model.QueuedEmail) (string, error) {
	now := e.now()
	claimed, err := e.QueueRepo.ClaimPending(item.ID, now)
	if err != nil {
		return "", err
	}
	if !claimed {
		return DispatchLost, nil
	}
	attempts := item.Attempts + 1

	campaign, contact, membership, step, err := e.loadDispatchContext(item)
	if err != nil {
		// Infrastructure error: put the item back so a later cycle retries.
		if relErr := e.QueueRepo.ReleaseForRetry(item.ID, err.Error()); relErr != nil {
			log.Printf("release queued email %d: %v", item.ID, relErr)
		}
		return "", err
	}

	if membership == nil || model.TerminalContactStatus(membership.Status) {
		return e.skip(item, "contact no longer eligible")
	}
	suppressed, err := e.Suppression.IsSuppressed(contact.Email, item.CampaignID)
	if err != nil {
		if relErr := e.QueueRepo.ReleaseForRetry(item.ID, err.Error()); relErr != nil {
			log.Printf("release queued email %d: %v", item.ID, relErr)
		}
		return "", err
	}
	if suppressed {
		return e.skip(item, "address suppressed")
	}
	if step == nil || !step.Active {
		return e.skip(item, "email step inactive")
	}

	subject := Render(step.SubjectTemplate, contact, campaign)
	if campaign.CampaignRef != "" {
		subject = fmt.Sprintf("%s [%s]", subject, campaign.CampaignRef)
	}
	body := Render(step.BodyTemplate, contact, campaign)

	// Blocking I/O boundary: only the claim is held, never a lock.
	ctx, cancel := context.WithTimeout(context.Background(), e.sendTimeout())
	messageID, sendErr := e.Transport.Send(ctx, contact.Email, subject, body)
	cancel()

	if sendErr != nil {
		sendErr = appErrors.NewTransport(contact.Email, sendErr)
		if attempts >= model.MaxSendAttempts {
			if err := e.QueueRepo.MarkFailed(item.ID, sendErr.Error()); err != nil {
				return "", err
			}
			e.writeLog(item, subject, model.LogFailed, sendErr.Error(), "", now)
			log.Printf("queued email %d permanently failed after %d attempts: %v", item.ID, attempts, sendErr)
			return DispatchFailed, nil
		}
		if err := e.QueueRepo.ReleaseForRetry(item.ID, sendErr.Error()); err != nil {
			return "", err
		}
		log.Printf("queued email %d send failed (attempt %d/%d), will retry: %v", item.ID, attempts, model.MaxSendAttempts, sendErr)
		return DispatchRetried, nil
	}

	if err := e.QueueRepo.MarkSent(item.ID); err != nil {
		return "", err
	}
	e.writeLog(item, subject, model.LogSent, "", messageID, now)

	if err := e.MembershipRepo.AdvanceStep(item.CampaignID, item.ContactID, step.StepNumber, now); err != nil {
		return "", err
	}
	membership.CurrentStep = step.StepNumber

	if err := e.ScheduleNextStep(campaign, membership); err != nil {
		log.Printf("schedule next step for campaign %d contact %d: %v", item.CampaignID, item.ContactID, err)
	}
	return DispatchSent, nil
}

// ScheduleNextStep finds the next active step past the contact's current one
// and inserts exactly one pending queued email for it, or completes the
// membership when the sequence is exhausted. Never both, never neither.
func (e *QueueEngine) ScheduleNextStep(campaign *model.Campaign, membership *model.CampaignContact) error {
	steps, err := e.CampaignRepo.ListActiveSteps(campaign.ID)
	if err != nil {
		return err
	}

	var next *model.EmailStep
	for i := range steps {
		if steps[i].StepNumber > membership.CurrentStep {
			next = &steps[i]
			break
		}
	}

	if next == nil {
		if err := e.MembershipRepo.SetStatus(campaign.ID, membership.ContactID, model.ContactCompleted); err != nil {
			return err
		}
		return e.MembershipRepo.SetNextScheduled(campaign.ID, membership.ContactID, nil)
	}

	delay := next.DelayDays
	if delay == 0 {
		delay = campaign.StepDelayDays
	}
	window := SendWindow{Start: campaign.SendingWindowStart, End: campaign.SendingWindowEnd}
	at := PlanSendTime(e.now(), delay, campaign.RandomizationMinutes, window, campaign.AllowedWeekdays(), e.Rand)

	q := &model.QueuedEmail{
		CampaignID:  campaign.ID,
		ContactID:   membership.ContactID,
		StepID:      next.ID,
		ScheduledAt: at,
		Status:      model.QueuePending,
	}
	if err := e.QueueRepo.Insert(q); err != nil {
		return err
	}
	return e.MembershipRepo.SetNextScheduled(campaign.ID, membership.ContactID, &at)
}

// SweepTerminal deletes terminal queue rows older than the retention cutoff.
func (e *QueueEngine) SweepTerminal(olderThan time.Duration) (int, error) {
	return e.QueueRepo.SweepTerminal(e.now().Add(-olderThan))
}

func (e *QueueEngine) loadDispatchContext(item *model.QueuedEmail) (*model.Campaign, *model.Contact, *model.CampaignContact, *model.EmailStep, error) {
	campaign, err := e.CampaignRepo.GetByID(item.CampaignID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	contact, err := e.ContactRepo.GetByID(item.ContactID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if contact == nil {
		return nil, nil, nil, nil, fmt.Errorf("contact %d not found", item.ContactID)
	}
	membership, err := e.MembershipRepo.Get(item.CampaignID, item.ContactID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	step, err := e.CampaignRepo.GetStep(item.StepID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return campaign, contact, membership, step, nil
}

func (e *QueueEngine) skip(item *model.QueuedEmail, reason string) (string, error) {
	if err := e.QueueRepo.MarkSkipped(item.ID, reason); err != nil {
		return "", err
	}
	return DispatchSkipped, nil
}

func (e *QueueEngine) writeLog(item *model.QueuedEmail, subject, status, errMsg, messageID string, at time.Time) {
	entry := &model.EmailLog{
		CampaignID:         item.CampaignID,
		ContactID:          item.ContactID,
		StepID:             item.StepID,
		Subject:            subject,
		Status:             status,
		ErrorMessage:       errMsg,
		TransportMessageID: messageID,
		SentAt:             at,
	}
	if err := e.LogRepo.Insert(entry); err != nil {
		log.Printf("write email log for queued email %d: %v", item.ID, err)
	}
}

// sendBudget returns how many more emails the campaign may send right now
// under its daily (from local midnight) and hourly (rolling hour) limits.
// -1 means unlimited.
func (e *QueueEngine) sendBudget(campaignID int) (int, error) {
	c, err := e.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return 0, err
	}
	now := e.now()
	limited := false
	budget := 0
	if c.DailySendLimit > 0 {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		n, err := e.LogRepo.CountSentSince(campaignID, midnight)
		if err != nil {
			return 0, err
		}
		budget = c.DailySendLimit - n
		limited = true
	}
	if c.HourlySendLimit > 0 {
		n, err := e.LogRepo.CountSentSince(campaignID, now.Add(-time.Hour))
		if err != nil {
			return 0, err
		}
		if h := c.HourlySendLimit - n; !limited || h < budget {
			budget = h
		}
		limited = true
	}
	if !limited {
		return -1, nil
	}
	if budget < 0 {
		budget = 0
	}
	return budget, nil
}
