package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/notifyhub/tipcast/internal/domain"
)

// MockGateway is an in-memory Gateway for tests. It records every message and
// fails the tokens listed in FailTokens. Safe for concurrent use.
type MockGateway struct {
	mu         sync.Mutex
	sent       []*Message
	multicasts []*MulticastMessage
	seq        int

	// FailTokens makes Send fail for the listed tokens.
	FailTokens map[string]bool
	// MulticastErr, when set, fails every SendMulticast call outright.
	MulticastErr error
	// BeforeSend runs before each Send is recorded; tests use it to cancel
	// contexts or block mid-run.
	BeforeSend func(msg *Message)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{FailTokens: make(map[string]bool)}
}

func (m *MockGateway) Send(ctx context.Context, msg *Message) (string, error) {
	if m.BeforeSend != nil {
		m.BeforeSend(msg)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, msg)
	if m.FailTokens[msg.Token] {
		return "", fmt.Errorf("%w: token %s rejected", domain.ErrGateway, msg.Token)
	}
	m.seq++
	return fmt.Sprintf("mock-%d", m.seq), nil
}

func (m *MockGateway) SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error) {
	m.mu.Lock()
	m.multicasts = append(m.multicasts, msg)
	err := m.MulticastErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	resp := &BatchResponse{Responses: make([]SendResponse, len(msg.Tokens))}
	for i, token := range msg.Tokens {
		id, err := m.Send(ctx, msg.ForToken(token))
		resp.Responses[i] = SendResponse{Success: err == nil, MessageID: id, Error: err}
		if err != nil {
			resp.FailureCount++
		} else {
			resp.SuccessCount++
		}
	}
	return resp, nil
}

// Sent returns every single-token message delivered so far, including the
// per-token messages of multicasts.
func (m *MockGateway) Sent() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// Multicasts returns every SendMulticast call in order.
func (m *MockGateway) Multicasts() []*MulticastMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MulticastMessage, len(m.multicasts))
	copy(out, m.multicasts)
	return out
}

// Calls is the total number of gateway calls of either kind.
func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent) + len(m.multicasts)
}

var _ Gateway = (*MockGateway)(nil)
