package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/config"
)

// Line pushes messages through the LINE Messaging API. Only the push and
// broadcast operations are used; no webhook handling.
type Line struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewLine creates a push client. An empty token leaves the client in an
// unavailable state where sends are skipped.
func NewLine(cfg config.DeliveryConfig) *Line {
	if cfg.ChannelToken == "" {
		lgr.Printf("[WARN] delivery channel token not set, broadcasts disabled")
	}
	return &Line{
		token:   cfg.ChannelToken,
		baseURL: cfg.APIURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Available reports whether the channel is configured
func (l *Line) Available() bool { return l.token != "" }

// textMessage is the LINE text bubble payload
type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Push sends a message to a single user
func (l *Line) Push(ctx context.Context, userID, message string) error {
	payload := map[string]any{
		"to":       userID,
		"messages": []textMessage{{Type: "text", Text: message}},
	}
	return l.post(ctx, "/message/push", payload)
}

// Broadcast sends a message to all users of the channel
func (l *Line) Broadcast(ctx context.Context, message string) error {
	payload := map[string]any{
		"messages": []textMessage{{Type: "text", Text: message}},
	}
	return l.post(ctx, "/message/broadcast", payload)
}

// post sends a JSON payload to the API
func (l *Line) post(ctx context.Context, path string, payload any) error {
	if !l.Available() {
		return fmt.Errorf("delivery channel not available")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.token)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}

	return nil
}

// WithBaseURL overrides the API endpoint, used by tests
func (l *Line) WithBaseURL(u string) *Line {
	l.baseURL = u
	return l
}
