// Package provider holds the channel delivery adapters. Each adapter
// speaks one upstream API (email, SMS, WhatsApp, push) behind a common
// Send contract; failures come back as *Error carrying the structure the
// retry classifier needs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"notify-gateway/internal/notifications"
)

// Provider delivers one notification over one channel.
type Provider interface {
	Name() string
	Channel() notifications.Channel
	// Ready reports whether the adapter has the credentials it needs.
	Ready() bool
	Send(ctx context.Context, req *Request) (*Result, error)
}

// Request is the delivery payload handed to an adapter.
type Request struct {
	TransactionID string
	UserID        string
	Recipient     string
	Subject       string
	Content       string
	Metadata      map[string]interface{}
}

// Result is the provider acknowledgement. It marshals directly into the
// transaction's providerResponse metadata.
type Result struct {
	Provider   string    `json:"provider"`
	MessageID  string    `json:"messageId,omitempty"`
	StatusCode int       `json:"statusCode"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

// ErrCodeNotConfigured marks a channel with no usable provider behind it.
const ErrCodeNotConfigured = "PROVIDER_NOT_CONFIGURED"

// Error is a structured send failure. ErrorCode carries transport-level
// codes (ETIMEDOUT, ECONNREFUSED, ...), StatusCode the upstream HTTP
// status when one was received.
type Error struct {
	Provider      string
	Recipient     string
	ErrorCode     string
	StatusCode    int
	Message       string
	RawResponse   string
	RetryableHint *bool
	Cause         error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.ErrorCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NotConfigured is the failure recorded when a channel has no provider
// or the provider is missing credentials.
func NotConfigured(channel string) *Error {
	hint := false
	return &Error{
		Provider:      "none",
		ErrorCode:     ErrCodeNotConfigured,
		Message:       fmt.Sprintf("provider not configured for channel %s", channel),
		RetryableHint: &hint,
	}
}

// transportErrorCode maps Go transport failures onto the error codes the
// classifier recognizes. Returns "" for anything unrecognized.
func transportErrorCode(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "ETIMEDOUT"
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return "ETIMEDOUT"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "ETIMEDOUT"
	case strings.Contains(msg, "connection refused"):
		return "ECONNREFUSED"
	case strings.Contains(msg, "no such host"):
		return "ENOTFOUND"
	case strings.Contains(msg, "connection reset"):
		return "ECONNRESET"
	}
	return ""
}

// transportError wraps a failed round trip, before any HTTP status came
// back.
func transportError(providerName, recipient string, err error) *Error {
	return &Error{
		Provider:  providerName,
		Recipient: recipient,
		ErrorCode: transportErrorCode(err),
		Message:   err.Error(),
		Cause:     err,
	}
}

const maxResponseExcerpt = 512

// responseExcerpt trims an upstream body for logs and error messages.
func responseExcerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxResponseExcerpt {
		s = s[:maxResponseExcerpt]
	}
	return s
}
