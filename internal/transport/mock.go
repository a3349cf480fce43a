// internal/transport/mock.go
package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SentMessage records one delivery made through the mock.
type SentMessage struct {
	To        string
	Subject   string
	Body      string
	MessageID string
	SentAt    time.Time
}

// MockTransport simulates a mail provider. FailureRate in [0,1] makes a
// fraction of sends fail, for exercising the retry path end to end.
type MockTransport struct {
	mu          sync.Mutex
	FailureRate float64
	rng         *rand.Rand
	sent        []SentMessage
	inbox       []InboxMessage
}

func NewMockTransport(failureRate float64) *MockTransport {
	return &MockTransport{
		FailureRate: failureRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockTransport) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rng.Float64() < m.FailureRate {
		return "", fmt.Errorf("mock sending failed")
	}

	id := uuid.NewString()
	m.sent = append(m.sent, SentMessage{To: to, Subject: subject, Body: htmlBody, MessageID: id, SentAt: time.Now()})
	return id, nil
}

func (m *MockTransport) PollInbox(ctx context.Context, since time.Time) ([]InboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []InboxMessage{}
	for _, msg := range m.inbox {
		if !msg.ReceivedAt.Before(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

// SeedInbox plants inbound messages for the scanner to find.
func (m *MockTransport) SeedInbox(msgs ...InboxMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = append(m.inbox, msgs...)
}

// Sent returns a copy of everything delivered so far.
func (m *MockTransport) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

var _ MailTransport = (*MockTransport)(nil)
