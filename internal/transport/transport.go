// internal/transport/transport.go
package transport

import (
	"context"
	"time"
)

// InboxMessage is one inbound email observed by the transport.
type InboxMessage struct {
	SenderEmail    string    `json:"sender_email"`
	ReceivedAt     time.Time `json:"received_at"`
	Subject        string    `json:"subject"`
	ConversationID string    `json:"conversation_id"`
}

// MailTransport is the external mail collaborator. Send blocks on I/O, so
// callers pass a context with a deadline; no engine lock is held across it.
type MailTransport interface {
	// Send delivers one message and returns the transport's message ID,
	// which anchors the conversation for reply matching.
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)

	// PollInbox returns inbound messages received at or after since.
	PollInbox(ctx context.Context, since time.Time) ([]InboxMessage, error)
}
