package channel

import (
	"context"
	"sync"

	"feedwire/pkg/feed"
)

// MockSender is a test double that records sent messages.
type MockSender struct {
	mu   sync.Mutex
	sent []feed.Message

	// SendFunc, if set, is called instead of the default recording
	// behavior.
	SendFunc func(ctx context.Context, msg feed.Message) error
}

// Compile-time interface guard.
var _ Sender = (*MockSender)(nil)

// Send records the message. If SendFunc is set, it delegates to it and
// records only on success.
func (m *MockSender) Send(ctx context.Context, msg feed.Message) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of all recorded messages.
func (m *MockSender) Sent() []feed.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]feed.Message(nil), m.sent...)
}
