package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"

	"github.com/notifyhub/tipcast/internal/domain"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCMConfig holds the service-account credentials and endpoints.
type FCMConfig struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string // PEM, normalized by NormalizePrivateKey
	Endpoint    string // e.g. https://fcm.googleapis.com
	TokenURL    string // e.g. https://oauth2.googleapis.com/token
	Timeout     time.Duration
	Concurrency int
}

// FCMGateway sends through the Firebase Cloud Messaging HTTP v1 API.
type FCMGateway struct {
	cfg        FCMConfig
	jwtConfig  *jwt.Config
	tokenCtx   context.Context
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

func NewFCMGateway(cfg FCMConfig, logger *zap.Logger) (*FCMGateway, error) {
	if _, err := ParsePrivateKey(cfg.PrivateKey); err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	g := &FCMGateway{
		cfg: cfg,
		jwtConfig: &jwt.Config{
			Email:      cfg.ClientEmail,
			PrivateKey: []byte(NormalizePrivateKey(cfg.PrivateKey)),
			Scopes:     []string{fcmScope},
			TokenURL:   cfg.TokenURL,
		},
		// token exchanges go through the same client and timeout as sends
		tokenCtx:   context.WithValue(context.Background(), oauth2.HTTPClient, httpClient),
		httpClient: httpClient,
		logger:     logger,
	}
	g.tokens = g.jwtConfig.TokenSource(g.tokenCtx)
	return g, nil
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroidNotification struct {
	ChannelID string `json:"channel_id,omitempty"`
	Color     string `json:"color,omitempty"`
}

type fcmAndroid struct {
	Priority     string                 `json:"priority,omitempty"`
	Notification fcmAndroidNotification `json:"notification"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      fcmAndroid        `json:"android"`
}

type fcmSendRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmSendResponse struct {
	Name string `json:"name"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Send posts one message to projects/<id>/messages:send and returns the
// message name FCM assigns.
func (g *FCMGateway) Send(ctx context.Context, msg *Message) (string, error) {
	token, err := g.token()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(fcmSendRequest{Message: fcmMessage{
		Token:        msg.Token,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Android: fcmAndroid{
			Priority: strings.ToUpper(msg.Android.Priority),
			Notification: fcmAndroidNotification{
				ChannelID: msg.Android.ChannelID,
				Color:     msg.Android.Color,
			},
		},
	}})
	if err != nil {
		return "", fmt.Errorf("%w: marshal message: %v", domain.ErrGateway, err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send",
		strings.TrimRight(g.cfg.Endpoint, "/"), url.PathEscape(g.cfg.ProjectID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		g.invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", domain.ErrGateway, describeFCMError(resp))
	}

	var sendResp fcmSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrGateway, err)
	}
	return sendResp.Name, nil
}

// SendMulticast sends each token individually with bounded concurrency.
func (g *FCMGateway) SendMulticast(ctx context.Context, msg *MulticastMessage) (*BatchResponse, error) {
	if len(msg.Tokens) > MaxMulticastTokens {
		return nil, fmt.Errorf("%w: multicast of %d tokens exceeds %d", domain.ErrGateway, len(msg.Tokens), MaxMulticastTokens)
	}
	// Fetch the access token once up front instead of racing for it.
	if _, err := g.token(); err != nil {
		return nil, err
	}
	return fanOut(ctx, msg, g.cfg.Concurrency, g.Send)
}

// token returns the cached access token, signing and exchanging a new JWT
// assertion once the cached one is about to expire.
func (g *FCMGateway) token() (*oauth2.Token, error) {
	g.mu.Lock()
	src := g.tokens
	g.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch access token: %v", domain.ErrGateway, err)
	}
	return tok, nil
}

// invalidate drops the cached token so the next call fetches a fresh one.
func (g *FCMGateway) invalidate() {
	g.mu.Lock()
	g.tokens = g.jwtConfig.TokenSource(g.tokenCtx)
	g.mu.Unlock()
	g.logger.Debug("fcm access token rejected; refreshing on next send")
}

func describeFCMError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e fcmErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Status != "" {
		return fmt.Sprintf("fcm status %d %s: %s", resp.StatusCode, e.Error.Status, e.Error.Message)
	}
	return fmt.Sprintf("fcm status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

// compile-time check that FCMGateway implements Gateway
var _ Gateway = (*FCMGateway)(nil)
