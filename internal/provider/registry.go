package provider

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"notify-gateway/internal/config"
	"notify-gateway/internal/notifications"
)

// Registry resolves the adapter for a channel.
type Registry struct {
	providers map[notifications.Channel]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[notifications.Channel]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Channel()] = p
	}
	return r
}

// For returns the provider registered for the channel.
func (r *Registry) For(ch notifications.Channel) (Provider, bool) {
	p, ok := r.providers[ch]
	return p, ok
}

// Ready reports whether the channel has a configured provider.
func (r *Registry) Ready(ch notifications.Channel) bool {
	p, ok := r.providers[ch]
	return ok && p.Ready()
}

// NewRegistryFromConfig builds the adapter set. PROVIDER_MODE=mock wires
// simulated providers on every channel; live mode wires the real APIs.
func NewRegistryFromConfig(cfg *config.Config, logger *zap.Logger) *Registry {
	if cfg.ProviderMode == "mock" {
		logger.Info("using mock providers for all channels")
		return NewRegistry(
			NewMockProvider(notifications.ChannelEmail),
			NewMockProvider(notifications.ChannelSMS),
			NewMockProvider(notifications.ChannelWhatsApp),
			NewMockProvider(notifications.ChannelPush),
		)
	}

	client := &http.Client{Timeout: cfg.ProviderTimeout + 5*time.Second}

	twilio := TwilioConfig{
		AccountSID: cfg.SMSAccountSID,
		AuthToken:  cfg.SMSAuthToken,
		From:       cfg.SMSFrom,
		Endpoint:   cfg.SMSEndpoint,
	}
	whatsapp := TwilioConfig{
		AccountSID: cfg.WhatsAppAccountSID,
		AuthToken:  cfg.WhatsAppAuthToken,
		From:       cfg.WhatsAppFrom,
		Endpoint:   cfg.WhatsAppEndpoint,
	}

	registry := NewRegistry(
		NewEmailProvider(EmailConfig{
			APIKey:   cfg.EmailAPIKey,
			From:     cfg.EmailFrom,
			Endpoint: cfg.EmailEndpoint,
		}, client),
		NewSMSProvider(twilio, client),
		NewWhatsAppProvider(whatsapp, client),
		NewPushProvider(PushConfig{
			ServerKey: cfg.PushServerKey,
			Endpoint:  cfg.PushEndpoint,
		}, client),
	)

	for _, ch := range notifications.AllChannels() {
		p, _ := registry.For(ch)
		logger.Info("registered provider",
			zap.String("channel", string(ch)),
			zap.String("provider", p.Name()),
			zap.Bool("ready", p.Ready()))
	}
	return registry
}
