package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransportRecordsSends(t *testing.T) {
	m := NewMockTransport(0)

	id, err := m.Send(context.Background(), "alice@example.com", "Hello", "<p>Hi</p>")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, id, sent[0].MessageID)
}

func TestMockTransportAlwaysFails(t *testing.T) {
	m := NewMockTransport(1)

	_, err := m.Send(context.Background(), "alice@example.com", "Hello", "")
	require.Error(t, err)
	assert.Empty(t, m.Sent())
}

func TestMockTransportHonorsCancelledContext(t *testing.T) {
	m := NewMockTransport(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Send(ctx, "alice@example.com", "Hello", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockTransportPollInboxFiltersBySince(t *testing.T) {
	m := NewMockTransport(0)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	m.SeedInbox(
		InboxMessage{SenderEmail: "old@example.com", ReceivedAt: now.AddDate(0, 0, -40)},
		InboxMessage{SenderEmail: "new@example.com", ReceivedAt: now},
	)

	msgs, err := m.PollInbox(context.Background(), now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new@example.com", msgs[0].SenderEmail)
}
