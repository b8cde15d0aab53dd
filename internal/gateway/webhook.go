package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/tipcast/internal/domain"
)

// webhookResponse maps the receiver's 202 Accepted response body.
type webhookResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// WebhookGateway delivers messages by POSTing them as JSON to a fixed URL.
// Staging environments point it at a request bin; tests at httptest.
type WebhookGateway struct {
	url         string
	httpClient  *http.Client
	concurrency int
}

func NewWebhookGateway(url string, timeout time.Duration, concurrency int) *WebhookGateway {
	return &WebhookGateway{
		url:         url,
		httpClient:  &http.Client{Timeout: timeout},
		concurrency: concurrency,
	}
}

// Send posts the message and expects a 202 Accepted response with a JSON
// body containing messageId.
func (g *WebhookGateway) Send(ctx context.Context, msg *Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("%w: marshal message: %v", domain.ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: unexpected webhook status: %d", domain.ErrGateway, resp.StatusCode)
	}

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrGateway, err)
	}
	return out.MessageID, nil
}

func (g *WebhookGateway) SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error) {
	return fanOut(ctx, msg, g.concurrency, g.Send)
}

var _ Gateway = (*WebhookGateway)(nil)
