package provider

import (
	"context"
	"net/http"
	"strings"

	"notify-gateway/internal/notifications"
)

// WhatsAppProvider sends messages through the Twilio WhatsApp channel,
// which is the Messages API with whatsapp:-prefixed addresses.
type WhatsAppProvider struct {
	cfg    TwilioConfig
	client *http.Client
}

func NewWhatsAppProvider(cfg TwilioConfig, client *http.Client) *WhatsAppProvider {
	return &WhatsAppProvider{cfg: cfg, client: client}
}

func (p *WhatsAppProvider) Name() string { return "twilio-whatsapp" }

func (p *WhatsAppProvider) Channel() notifications.Channel { return notifications.ChannelWhatsApp }

func (p *WhatsAppProvider) Ready() bool { return p.cfg.ready() }

func (p *WhatsAppProvider) Send(ctx context.Context, req *Request) (*Result, error) {
	return sendTwilioMessage(ctx, p.client, p.cfg, p.Name(), req.Recipient,
		whatsappAddr(req.Recipient), whatsappAddr(p.cfg.From), req.Content)
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
