package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"notify-gateway/internal/notifications"
)

// PushConfig configures the FCM push adapter.
type PushConfig struct {
	ServerKey string
	Endpoint  string
}

// PushProvider sends push notifications through the FCM legacy HTTP API.
// The recipient is the device registration token.
type PushProvider struct {
	cfg    PushConfig
	client *http.Client
}

func NewPushProvider(cfg PushConfig, client *http.Client) *PushProvider {
	return &PushProvider{cfg: cfg, client: client}
}

func (p *PushProvider) Name() string { return "fcm" }

func (p *PushProvider) Channel() notifications.Channel { return notifications.ChannelPush }

func (p *PushProvider) Ready() bool { return p.cfg.ServerKey != "" }

// fcmResponse is the subset of the FCM response we read. FCM reports
// per-message errors with HTTP 200, so the body decides the outcome.
type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

func (p *PushProvider) Send(ctx context.Context, req *Request) (*Result, error) {
	payload := map[string]interface{}{
		"to": req.Recipient,
		"notification": map[string]string{
			"title": req.Subject,
			"body":  req.Content,
		},
	}
	if len(req.Metadata) > 0 {
		payload["data"] = req.Metadata
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.Endpoint+"/fcm/send", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	httpReq.Header.Set("Authorization", "key="+p.cfg.ServerKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), req.Recipient, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		message := responseExcerpt(respBody)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{
			Provider:    p.Name(),
			Recipient:   req.Recipient,
			StatusCode:  resp.StatusCode,
			Message:     message,
			RawResponse: responseExcerpt(respBody),
		}
	}

	var parsed fcmResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Failure > 0 {
		message := "push delivery rejected"
		if len(parsed.Results) > 0 && parsed.Results[0].Error != "" {
			message = parsed.Results[0].Error
		}
		return nil, &Error{
			Provider:    p.Name(),
			Recipient:   req.Recipient,
			StatusCode:  resp.StatusCode,
			Message:     message,
			RawResponse: responseExcerpt(respBody),
		}
	}

	messageID := ""
	if len(parsed.Results) > 0 {
		messageID = parsed.Results[0].MessageID
	}
	return &Result{
		Provider:   p.Name(),
		MessageID:  messageID,
		StatusCode: resp.StatusCode,
		AcceptedAt: time.Now().UTC(),
	}, nil
}
