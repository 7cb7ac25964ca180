package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notify-gateway/internal/notifications"
)

// TwilioConfig configures the Twilio-compatible messaging adapters. SMS
// and WhatsApp share the same wire format.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	Endpoint   string
}

func (c TwilioConfig) ready() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// twilioResponse is the subset of the Messages API response we read.
type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// sendTwilioMessage posts to the Messages endpoint and interprets the
// response. to and from already carry any channel prefix.
func sendTwilioMessage(ctx context.Context, client *http.Client, cfg TwilioConfig, providerName, recipient, to, from, body string) (*Result, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", cfg.Endpoint, cfg.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build message request: %w", err)
	}
	httpReq.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, transportError(providerName, recipient, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed twilioResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		message := parsed.Message
		if message == "" {
			message = responseExcerpt(respBody)
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{
			Provider:    providerName,
			Recipient:   recipient,
			StatusCode:  resp.StatusCode,
			Message:     message,
			RawResponse: responseExcerpt(respBody),
		}
	}

	return &Result{
		Provider:   providerName,
		MessageID:  parsed.SID,
		StatusCode: resp.StatusCode,
		AcceptedAt: time.Now().UTC(),
	}, nil
}

// SMSProvider sends text messages through the Twilio Messages API.
type SMSProvider struct {
	cfg    TwilioConfig
	client *http.Client
}

func NewSMSProvider(cfg TwilioConfig, client *http.Client) *SMSProvider {
	return &SMSProvider{cfg: cfg, client: client}
}

func (p *SMSProvider) Name() string { return "twilio-sms" }

func (p *SMSProvider) Channel() notifications.Channel { return notifications.ChannelSMS }

func (p *SMSProvider) Ready() bool { return p.cfg.ready() }

func (p *SMSProvider) Send(ctx context.Context, req *Request) (*Result, error) {
	return sendTwilioMessage(ctx, p.client, p.cfg, p.Name(), req.Recipient,
		req.Recipient, p.cfg.From, req.Content)
}
