// Package gateway delivers push messages to subscriber devices.
//
// The FCM gateway talks to Firebase Cloud Messaging over HTTP v1; the webhook
// and log gateways exist for staging and dry runs. MockGateway is the test
// double used by the service tests.
package gateway

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MaxMulticastTokens is the largest token list a single multicast accepts.
const MaxMulticastTokens = 500

// Android delivery priorities.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// AndroidConfig carries the Android-specific presentation fields.
type AndroidConfig struct {
	Priority  string `json:"priority,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
	Color     string `json:"color,omitempty"`
}

// Message is one push addressed to a single device token.
type Message struct {
	Token   string            `json:"token"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
	Android AndroidConfig     `json:"android"`
}

// MulticastMessage is the same push addressed to many tokens.
type MulticastMessage struct {
	Tokens  []string
	Title   string
	Body    string
	Data    map[string]string
	Android AndroidConfig
}

// ForToken returns the single-token message for one multicast target.
func (m *MulticastMessage) ForToken(token string) *Message {
	return &Message{
		Token:   token,
		Title:   m.Title,
		Body:    m.Body,
		Data:    m.Data,
		Android: m.Android,
	}
}

// SendResponse is the per-token outcome of a multicast, in input order.
type SendResponse struct {
	Success   bool
	MessageID string
	Error     error
}

// BatchResponse aggregates a multicast.
type BatchResponse struct {
	SuccessCount int
	FailureCount int
	Responses    []SendResponse
}

// Gateway abstracts the push provider. Mocking this interface in tests gives
// full control over delivery outcomes without network calls.
type Gateway interface {
	// Send delivers one message and returns the provider's message id.
	// Errors wrap domain.ErrGateway.
	Send(ctx context.Context, msg *Message) (string, error)
	// SendMulticast delivers msg to every token. Per-token failures are
	// reported in the response; the returned error is reserved for failures
	// that prevented the whole call (for example a cancelled context).
	SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error)
}

type sendFunc func(ctx context.Context, msg *Message) (string, error)

// fanOut sends msg to each token through send with at most limit requests in
// flight and keeps the results in token order.
func fanOut(ctx context.Context, msg *MulticastMessage, limit int, send sendFunc) (*BatchResponse, error) {
	resp := &BatchResponse{Responses: make([]SendResponse, len(msg.Tokens))}
	if len(msg.Tokens) == 0 {
		return resp, nil
	}
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, token := range msg.Tokens {
		g.Go(func() error {
			id, err := send(gctx, msg.ForToken(token))
			resp.Responses[i] = SendResponse{Success: err == nil, MessageID: id, Error: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range resp.Responses {
		if r.Success {
			resp.SuccessCount++
		} else {
			resp.FailureCount++
		}
	}
	return resp, nil
}
