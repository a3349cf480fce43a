package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	appErrors "github.com/dripworks/leadflow-backend/internal/errors"
	"github.com/dripworks/leadflow-backend/internal/model"
	"github.com/dripworks/leadflow-backend/internal/transport"
)

// In-memory fakes backing the service tests. One store, one small repo
// wrapper per interface.

type memberKey struct {
	campaignID int
	contactID  int
}

type fakeStore struct {
	mu sync.Mutex

	campaigns    map[int]*model.Campaign
	nextCampaign int

	steps    map[int]*model.EmailStep
	nextStep int

	lists    map[int]*model.ContactList
	nextList int

	contacts    map[int]*model.Contact
	nextContact int

	memberships map[memberKey]*model.CampaignContact

	queue     map[int]*model.QueuedEmail
	nextQueue int

	logs    []*model.EmailLog
	nextLog int

	suppressions map[string]*model.SuppressionEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns:    map[int]*model.Campaign{},
		steps:        map[int]*model.EmailStep{},
		lists:        map[int]*model.ContactList{},
		contacts:     map[int]*model.Contact{},
		memberships:  map[memberKey]*model.CampaignContact{},
		queue:        map[int]*model.QueuedEmail{},
		suppressions: map[string]*model.SuppressionEntry{},
	}
}

// ---------- campaigns ----------

type fakeCampaignRepo struct{ s *fakeStore }

func (r *fakeCampaignRepo) Create(c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextCampaign++
	c.ID = r.s.nextCampaign
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	r.s.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range r.s.campaigns {
		if status == "" || c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *fakeCampaignRepo) UpdateStatus(campaignID int, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeCampaignRepo) SetStartDate(campaignID int, t time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[campaignID]; ok && c.StartDate == nil {
		c.StartDate = &t
	}
	return nil
}

func (r *fakeCampaignRepo) SetEndDate(campaignID int, t time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[campaignID]; ok {
		c.EndDate = &t
	}
	return nil
}

func (r *fakeCampaignRepo) CreateStep(s *model.EmailStep) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextStep++
	s.ID = r.s.nextStep
	r.s.steps[s.ID] = s
	return nil
}

func (r *fakeCampaignRepo) ListActiveSteps(campaignID int) ([]model.EmailStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.EmailStep{}
	for _, s := range r.s.steps {
		if s.CampaignID == campaignID && s.Active {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

func (r *fakeCampaignRepo) GetStep(stepID int) (*model.EmailStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.steps[stepID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// ---------- contacts ----------

type fakeContactRepo struct{ s *fakeStore }

func (r *fakeContactRepo) GetByID(id int) (*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContactRepo) GetByEmail(email string) (*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := strings.ToLower(strings.TrimSpace(email))
	for _, c := range r.s.contacts {
		if strings.ToLower(c.Email) == want {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeContactRepo) ListByList(listID int) ([]model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Contact{}
	for _, c := range r.s.contacts {
		if c.ListID == listID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeContactRepo) Create(c *model.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextContact++
	c.ID = r.s.nextContact
	r.s.contacts[c.ID] = c
	return nil
}

func (r *fakeContactRepo) CreateList(l *model.ContactList) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextList++
	l.ID = r.s.nextList
	r.s.lists[l.ID] = l
	return nil
}

// ---------- campaign contacts ----------

type fakeMembershipRepo struct{ s *fakeStore }

func (r *fakeMembershipRepo) Create(cc *model.CampaignContact) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := memberKey{cc.CampaignID, cc.ContactID}
	if _, ok := r.s.memberships[key]; ok {
		return false, nil
	}
	if cc.Status == "" {
		cc.Status = model.ContactPending
	}
	cp := *cc
	r.s.memberships[key] = &cp
	return true, nil
}

func (r *fakeMembershipRepo) Get(campaignID, contactID int) (*model.CampaignContact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cc, ok := r.s.memberships[memberKey{campaignID, contactID}]
	if !ok {
		return nil, nil
	}
	cp := *cc
	return &cp, nil
}

func (r *fakeMembershipRepo) SetStatus(campaignID, contactID int, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cc, ok := r.s.memberships[memberKey{campaignID, contactID}]; ok {
		cc.Status = status
	}
	return nil
}

func (r *fakeMembershipRepo) AdvanceStep(campaignID, contactID, step int, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cc, ok := r.s.memberships[memberKey{campaignID, contactID}]; ok {
		cc.CurrentStep = step
		cc.LastEmailSentAt = &sentAt
		cc.Status = model.ContactInProgress
	}
	return nil
}

func (r *fakeMembershipRepo) SetNextScheduled(campaignID, contactID int, at *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cc, ok := r.s.memberships[memberKey{campaignID, contactID}]; ok {
		cc.NextEmailScheduledAt = at
	}
	return nil
}

func (r *fakeMembershipRepo) MarkResponded(campaignID, contactID int, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cc, ok := r.s.memberships[memberKey{campaignID, contactID}]
	if !ok || cc.RespondedAt != nil {
		return false, nil
	}
	cc.Status = model.ContactResponded
	cc.RespondedAt = &at
	cc.NextEmailScheduledAt = nil
	return true, nil
}

func (r *fakeMembershipRepo) UnsubscribeByEmail(email string, campaignID *int) ([]model.CampaignContact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := strings.ToLower(strings.TrimSpace(email))
	var contactID int
	for _, c := range r.s.contacts {
		if strings.ToLower(c.Email) == want {
			contactID = c.ID
		}
	}
	updated := []model.CampaignContact{}
	for key, cc := range r.s.memberships {
		if key.contactID != contactID {
			continue
		}
		if campaignID != nil && key.campaignID != *campaignID {
			continue
		}
		if cc.Status != model.ContactPending && cc.Status != model.ContactInProgress {
			continue
		}
		cc.Status = model.ContactUnsubscribed
		cc.NextEmailScheduledAt = nil
		updated = append(updated, *cc)
	}
	return updated, nil
}

func (r *fakeMembershipRepo) CountByStatus(campaignID int) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int{}
	for key, cc := range r.s.memberships {
		if key.campaignID == campaignID {
			out[cc.Status]++
		}
	}
	return out, nil
}

// ---------- email queue ----------

type fakeQueueRepo struct{ s *fakeStore }

func (r *fakeQueueRepo) Insert(q *model.QueuedEmail) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextQueue++
	q.ID = r.s.nextQueue
	if q.Status == "" {
		q.Status = model.QueuePending
	}
	q.UpdatedAt = q.ScheduledAt
	cp := *q
	r.s.queue[q.ID] = &cp
	return nil
}

func (r *fakeQueueRepo) GetByID(id int) (*model.QueuedEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.queue[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (r *fakeQueueRepo) GetDueItems(limit int, now time.Time) ([]*model.QueuedEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.QueuedEmail{}
	for _, q := range r.s.queue {
		c, ok := r.s.campaigns[q.CampaignID]
		if !ok || c.Status != model.CampaignActive {
			continue
		}
		if q.Status == model.QueuePending && !q.ScheduledAt.After(now) {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeQueueRepo) ClaimPending(id int, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.queue[id]
	if !ok || q.Status != model.QueuePending {
		return false, nil
	}
	q.Status = model.QueueSending
	q.Attempts++
	q.LastAttemptAt = &now
	q.UpdatedAt = now
	return true, nil
}

func (r *fakeQueueRepo) MarkSent(id int) error {
	return r.setStatus(id, model.QueueSent, "", model.QueueSending)
}

func (r *fakeQueueRepo) MarkFailed(id int, errMsg string) error {
	return r.setStatus(id, model.QueueFailed, errMsg, model.QueueSending)
}

func (r *fakeQueueRepo) ReleaseForRetry(id int, errMsg string) error {
	return r.setStatus(id, model.QueuePending, errMsg, model.QueueSending)
}

func (r *fakeQueueRepo) MarkSkipped(id int, reason string) error {
	return r.setStatus(id, model.QueueSkipped, reason, model.QueuePending, model.QueueSending)
}

func (r *fakeQueueRepo) setStatus(id int, status, msg string, from ...string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.queue[id]
	if !ok {
		return nil
	}
	for _, f := range from {
		if q.Status == f {
			q.Status = status
			q.ErrorMessage = msg
			return nil
		}
	}
	return nil
}

func (r *fakeQueueRepo) SkipPendingForCampaign(campaignID int, reason string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, q := range r.s.queue {
		if q.CampaignID == campaignID && q.Status == model.QueuePending {
			q.Status = model.QueueSkipped
			q.ErrorMessage = reason
			n++
		}
	}
	return n, nil
}

func (r *fakeQueueRepo) SkipPendingForContact(contactID int, campaignID *int, reason string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, q := range r.s.queue {
		if q.ContactID != contactID || q.Status != model.QueuePending {
			continue
		}
		if campaignID != nil && q.CampaignID != *campaignID {
			continue
		}
		q.Status = model.QueueSkipped
		q.ErrorMessage = reason
		n++
	}
	return n, nil
}

func (r *fakeQueueRepo) CountByStatus(campaignID int) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int{}
	for _, q := range r.s.queue {
		if q.CampaignID == campaignID {
			out[q.Status]++
		}
	}
	return out, nil
}

func (r *fakeQueueRepo) SweepTerminal(before time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, q := range r.s.queue {
		terminal := q.Status == model.QueueSent || q.Status == model.QueueFailed || q.Status == model.QueueSkipped
		if terminal && q.UpdatedAt.Before(before) {
			delete(r.s.queue, id)
			n++
		}
	}
	return n, nil
}

// ---------- email logs ----------

type fakeLogRepo struct{ s *fakeStore }

func (r *fakeLogRepo) Insert(l *model.EmailLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextLog++
	l.ID = r.s.nextLog
	cp := *l
	r.s.logs = append(r.s.logs, &cp)
	return nil
}

func (r *fakeLogRepo) CountSentSince(campaignID int, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, l := range r.s.logs {
		if l.CampaignID == campaignID && l.Status == model.LogSent && !l.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeLogRepo) GetByTransportMessageID(messageID string) (*model.EmailLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.logs {
		if l.TransportMessageID == messageID && l.Status == model.LogSent {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLogRepo) ListSentByContact(contactID int, since time.Time) ([]model.EmailLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.EmailLog{}
	for _, l := range r.s.logs {
		if l.ContactID == contactID && l.Status == model.LogSent && !l.SentAt.Before(since) {
			out = append(out, *l)
		}
	}
	return out, nil
}

// ---------- suppression list ----------

type fakeSuppressionRepo struct{ s *fakeStore }

func (r *fakeSuppressionRepo) Get(email string) (*model.SuppressionEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.suppressions[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *fakeSuppressionRepo) Insert(e *model.SuppressionEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	cp := *e
	r.s.suppressions[e.Email] = &cp
	return nil
}

func (r *fakeSuppressionRepo) Delete(email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(email))
	if _, ok := r.s.suppressions[key]; !ok {
		return false, nil
	}
	delete(r.s.suppressions, key)
	return true, nil
}

func (r *fakeSuppressionRepo) List() ([]model.SuppressionEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.SuppressionEntry{}
	for _, e := range r.s.suppressions {
		out = append(out, *e)
	}
	return out, nil
}

// ---------- transport ----------

type fakeSent struct {
	to      string
	subject string
	body    string
	id      string
}

// fakeTransport fails the next `failures` sends, then succeeds with
// sequential message IDs.
type fakeTransport struct {
	mu       sync.Mutex
	failures int
	sent     []fakeSent
	inbox    []transport.InboxMessage
	nextID   int
}

func (t *fakeTransport) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures > 0 {
		t.failures--
		return "", errors.New("smtp unavailable")
	}
	t.nextID++
	id := fmt.Sprintf("msg-%d", t.nextID)
	t.sent = append(t.sent, fakeSent{to: to, subject: subject, body: htmlBody, id: id})
	return id, nil
}

func (t *fakeTransport) PollInbox(ctx context.Context, since time.Time) ([]transport.InboxMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := []transport.InboxMessage{}
	for _, m := range t.inbox {
		if !m.ReceivedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ---------- wiring ----------

type testEnv struct {
	store       *fakeStore
	campaigns   *fakeCampaignRepo
	contacts    *fakeContactRepo
	memberships *fakeMembershipRepo
	queue       *fakeQueueRepo
	logs        *fakeLogRepo
	suppressed  *fakeSuppressionRepo

	mail        *fakeTransport
	suppression *SuppressionService
	lifecycle   *LifecycleService
	engine      *QueueEngine
	scanner     *ReplyScanner

	now time.Time
}

func newTestEnv() *testEnv {
	s := newFakeStore()
	env := &testEnv{
		store:       s,
		campaigns:   &fakeCampaignRepo{s},
		contacts:    &fakeContactRepo{s},
		memberships: &fakeMembershipRepo{s},
		queue:       &fakeQueueRepo{s},
		logs:        &fakeLogRepo{s},
		suppressed:  &fakeSuppressionRepo{s},
		mail:        &fakeTransport{},
		now:         time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), // a Monday
	}
	clock := func() time.Time { return env.now }

	env.suppression = &SuppressionService{
		SuppressionRepo: env.suppressed,
		MembershipRepo:  env.memberships,
		QueueRepo:       env.queue,
		ContactRepo:     env.contacts,
	}
	env.lifecycle = &LifecycleService{
		CampaignRepo:   env.campaigns,
		ContactRepo:    env.contacts,
		MembershipRepo: env.memberships,
		QueueRepo:      env.queue,
		Suppression:    env.suppression,
		Now:            clock,
	}
	env.engine = &QueueEngine{
		CampaignRepo:   env.campaigns,
		ContactRepo:    env.contacts,
		MembershipRepo: env.memberships,
		QueueRepo:      env.queue,
		LogRepo:        env.logs,
		Suppression:    env.suppression,
		Transport:      env.mail,
		Now:            clock,
	}
	env.scanner = &ReplyScanner{
		Transport:      env.mail,
		ContactRepo:    env.contacts,
		MembershipRepo: env.memberships,
		QueueRepo:      env.queue,
		LogRepo:        env.logs,
		Suppression:    env.suppression,
		Now:            clock,
	}
	return env
}

// seedCampaign creates a campaign with a 09:00-17:00 window, no
// randomization, and the given steps, plus contacts on its list.
func (env *testEnv) seedCampaign(stepDelays []int, emails ...string) (*model.Campaign, []model.Contact) {
	list := &model.ContactList{Name: "test list"}
	env.contacts.CreateList(list)

	contacts := make([]model.Contact, 0, len(emails))
	for _, email := range emails {
		c := model.Contact{ListID: list.ID, Email: email, FirstName: "Pat", Company: "Acme"}
		env.contacts.Create(&c)
		contacts = append(contacts, c)
	}

	campaign := &model.Campaign{
		Name:               "Test drip",
		CampaignRef:        "LF-260001",
		Status:             model.CampaignDraft,
		ContactListID:      list.ID,
		SendingWindowStart: 9 * 60,
		SendingWindowEnd:   17 * 60,
		StepDelayDays:      3,
	}
	env.campaigns.Create(campaign)

	for i, delay := range stepDelays {
		env.campaigns.CreateStep(&model.EmailStep{
			CampaignID:      campaign.ID,
			StepNumber:      i + 1,
			SubjectTemplate: fmt.Sprintf("Step %d for {{FirstName}}", i+1),
			BodyTemplate:    fmt.Sprintf("<p>Step %d body for {{Company}}</p>", i+1),
			DelayDays:       delay,
			Active:          true,
		})
	}
	return campaign, contacts
}
