// Package preferences stores per-user channel settings: which channels a
// user accepts and the default priority each channel carries. Rows are
// created lazily with EMAIL enabled so an unknown user can always be
// notified somewhere.
package preferences

import (
	"fmt"
	"time"

	"notify-gateway/internal/notifications"
)

type Preferences struct {
	UserID           string    `json:"userId"`
	EmailEnabled     bool      `json:"emailEnabled"`
	SMSEnabled       bool      `json:"smsEnabled"`
	WhatsAppEnabled  bool      `json:"whatsappEnabled"`
	PushEnabled      bool      `json:"pushEnabled"`
	EmailPriority    int       `json:"emailPriority"`
	SMSPriority      int       `json:"smsPriority"`
	WhatsAppPriority int       `json:"whatsappPriority"`
	PushPriority     int       `json:"pushPriority"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Defaults returns the row shape created on first read.
func Defaults(userID string) *Preferences {
	now := time.Now().UTC()
	return &Preferences{
		UserID:           userID,
		EmailEnabled:     true,
		SMSEnabled:       false,
		WhatsAppEnabled:  false,
		PushEnabled:      false,
		EmailPriority:    notifications.PriorityLow,
		SMSPriority:      notifications.PriorityMedium,
		WhatsAppPriority: notifications.PriorityHigh,
		PushPriority:     notifications.PriorityUrgent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// EnabledChannels returns the enabled subset in the canonical channel
// order. The order is part of the contract: channel defaulting picks the
// first element.
func (p *Preferences) EnabledChannels() []notifications.Channel {
	channels := make([]notifications.Channel, 0, 4)
	for _, ch := range notifications.AllChannels() {
		if p.ChannelEnabled(ch) {
			channels = append(channels, ch)
		}
	}
	return channels
}

func (p *Preferences) ChannelEnabled(ch notifications.Channel) bool {
	switch ch {
	case notifications.ChannelEmail:
		return p.EmailEnabled
	case notifications.ChannelSMS:
		return p.SMSEnabled
	case notifications.ChannelWhatsApp:
		return p.WhatsAppEnabled
	case notifications.ChannelPush:
		return p.PushEnabled
	}
	return false
}

// PriorityFor returns the stored priority for a channel, falling back to 1
// for anything unrecognized.
func (p *Preferences) PriorityFor(ch notifications.Channel) int {
	switch ch {
	case notifications.ChannelEmail:
		return p.EmailPriority
	case notifications.ChannelSMS:
		return p.SMSPriority
	case notifications.ChannelWhatsApp:
		return p.WhatsAppPriority
	case notifications.ChannelPush:
		return p.PushPriority
	}
	return notifications.PriorityLow
}

// UpdateRequest is a partial update: nil fields keep their stored value.
type UpdateRequest struct {
	EmailEnabled     *bool `json:"emailEnabled,omitempty"`
	SMSEnabled       *bool `json:"smsEnabled,omitempty"`
	WhatsAppEnabled  *bool `json:"whatsappEnabled,omitempty"`
	PushEnabled      *bool `json:"pushEnabled,omitempty"`
	EmailPriority    *int  `json:"emailPriority,omitempty"`
	SMSPriority      *int  `json:"smsPriority,omitempty"`
	WhatsAppPriority *int  `json:"whatsappPriority,omitempty"`
	PushPriority     *int  `json:"pushPriority,omitempty"`
}

func (r *UpdateRequest) Validate() error {
	for name, p := range map[string]*int{
		"emailPriority":    r.EmailPriority,
		"smsPriority":      r.SMSPriority,
		"whatsappPriority": r.WhatsAppPriority,
		"pushPriority":     r.PushPriority,
	} {
		if p != nil && !notifications.ValidPriority(*p) {
			return fmt.Errorf("%s must be between 1 and 4, got %d", name, *p)
		}
	}
	return nil
}
