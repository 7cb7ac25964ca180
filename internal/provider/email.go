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

// EmailConfig configures the SendGrid-compatible email adapter.
type EmailConfig struct {
	APIKey   string
	From     string
	Endpoint string
}

// EmailProvider sends mail through the SendGrid v3 API.
type EmailProvider struct {
	cfg    EmailConfig
	client *http.Client
}

func NewEmailProvider(cfg EmailConfig, client *http.Client) *EmailProvider {
	return &EmailProvider{cfg: cfg, client: client}
}

func (p *EmailProvider) Name() string { return "sendgrid" }

func (p *EmailProvider) Channel() notifications.Channel { return notifications.ChannelEmail }

func (p *EmailProvider) Ready() bool {
	return p.cfg.APIKey != "" && p.cfg.From != ""
}

func (p *EmailProvider) Send(ctx context.Context, req *Request) (*Result, error) {
	subject := req.Subject
	if subject == "" {
		subject = "Notification"
	}

	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": req.Recipient}}},
		},
		"from":    map[string]string{"email": p.cfg.From},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/plain", "value": req.Content},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.Endpoint+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build email request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), req.Recipient, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
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

	return &Result{
		Provider:   p.Name(),
		MessageID:  resp.Header.Get("X-Message-Id"),
		StatusCode: resp.StatusCode,
		AcceptedAt: time.Now().UTC(),
	}, nil
}
