// internal/service/reply_scanner.go
package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/dripworks/leadflow-backend/internal/model"
	"github.com/dripworks/leadflow-backend/internal/repository"
	"github.com/dripworks/leadflow-backend/internal/transport"
)

// ScanResult summarizes one inbox scan.
type ScanResult struct {
	RepliesFound    int `json:"replies_found"`
	ContactsUpdated int `json:"contacts_updated"`
}

// ReplyScanner consumes inbound messages from the transport's inbox and
// stops further sends to contacts who replied or opted out.
type ReplyScanner struct {
	Transport      transport.MailTransport
	ContactRepo    repository.ContactRepositoryInterface
	MembershipRepo repository.CampaignContactRepositoryInterface
	QueueRepo      repository.QueueRepositoryInterface
	LogRepo        repository.EmailLogRepositoryInterface
	Suppression    *SuppressionService

	PollTimeout time.Duration
	Now         func() time.Time
}

func (s *ReplyScanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var optOutMarkers = []string{"unsubscribe", "opt out", "opt-out", "remove me"}

// ScanForReplies polls the inbox for messages received in the last sinceDays
// days and matches them against outstanding campaign contacts: by
// conversation ID first, then by normalized-subject containment. Matched
// contacts move to responded exactly once, so re-running the scan on the
// same snapshot is a no-op. Opt-out messages add a global suppression entry
// instead.
func (s *ReplyScanner) ScanForReplies(sinceDays int) (ScanResult, error) {
	res := ScanResult{}
	since := s.now().AddDate(0, 0, -sinceDays)

	timeout := s.PollTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	msgs, err := s.Transport.PollInbox(ctx, since)
	cancel()
	if err != nil {
		return res, err
	}

	for _, msg := range msgs {
		if isOptOut(msg.Subject) {
			if _, err := s.Suppression.Add(msg.SenderEmail, model.ScopeGlobal, model.SourceInbound, nil, "inbound opt-out"); err != nil {
				log.Printf("suppress %s from inbound opt-out: %v", msg.SenderEmail, err)
			}
			continue
		}

		found, updated, err := s.processReply(msg, since)
		if err != nil {
			log.Printf("process reply from %s: %v", msg.SenderEmail, err)
			continue
		}
		if found {
			res.RepliesFound++
		}
		if updated {
			res.ContactsUpdated++
		}
	}
	return res, nil
}

func (s *ReplyScanner) processReply(msg transport.InboxMessage, since time.Time) (found, updated bool, err error) {
	contact, err := s.ContactRepo.GetByEmail(msg.SenderEmail)
	if err != nil {
		return false, false, err
	}
	if contact == nil {
		// Unknown sender: no side effect.
		return false, false, nil
	}

	// Thread match first: the conversation ID points back at the send that
	// started it.
	if msg.ConversationID != "" {
		logRow, err := s.LogRepo.GetByTransportMessageID(msg.ConversationID)
		if err != nil {
			return false, false, err
		}
		if logRow != nil && logRow.ContactID == contact.ID {
			return s.markResponded(logRow.CampaignID, contact.ID, msg.ReceivedAt)
		}
	}

	// Subject fallback: a reply usually quotes the outgoing subject, or at
	// least the bracketed campaign ref appended to it.
	logs, err := s.LogRepo.ListSentByContact(contact.ID, since)
	if err != nil {
		return false, false, err
	}
	subject := normalizeSubject(msg.Subject)
	for _, l := range logs {
		if sent := normalizeSubject(l.Subject); sent != "" && strings.Contains(subject, sent) {
			return s.markResponded(l.CampaignID, contact.ID, msg.ReceivedAt)
		}
		if ref := subjectRef(l.Subject); ref != "" && strings.Contains(subject, ref) {
			return s.markResponded(l.CampaignID, contact.ID, msg.ReceivedAt)
		}
	}
	return false, false, nil
}

// subjectRef extracts the bracketed campaign ref from an outgoing subject,
// lowercased, or "" when the subject carries none.
func subjectRef(subject string) string {
	open := strings.LastIndex(subject, "[")
	end := strings.LastIndex(subject, "]")
	if open < 0 || end <= open+1 {
		return ""
	}
	return strings.ToLower(subject[open+1 : end])
}

func (s *ReplyScanner) markResponded(campaignID, contactID int, at time.Time) (bool, bool, error) {
	updated, err := s.MembershipRepo.MarkResponded(campaignID, contactID, at)
	if err != nil {
		return true, false, err
	}
	if updated {
		if _, err := s.QueueRepo.SkipPendingForContact(contactID, &campaignID, "contact replied"); err != nil {
			return true, true, err
		}
		log.Printf("reply detected: campaign %d contact %d marked responded", campaignID, contactID)
	}
	return true, updated, nil
}

// normalizeSubject lowercases and strips reply/forward prefixes.
func normalizeSubject(subject string) string {
	out := strings.ToLower(strings.TrimSpace(subject))
	for {
		trimmed := out
		for _, prefix := range []string{"re:", "fw:", "fwd:"} {
			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
		if trimmed == out {
			return out
		}
		out = trimmed
	}
}

func isOptOut(subject string) bool {
	lower := strings.ToLower(subject)
	for _, marker := range optOutMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
