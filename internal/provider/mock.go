package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"notify-gateway/internal/notifications"
)

// MockProvider simulates deliveries for local development and load tests.
// Outcomes are drawn from configurable rates; the remainder after success
// and temporary failures is a permanent failure.
type MockProvider struct {
	channel      notifications.Channel
	successRate  float64
	tempFailRate float64
	latency      time.Duration
}

func NewMockProvider(channel notifications.Channel) *MockProvider {
	return &MockProvider{
		channel:      channel,
		successRate:  0.95,
		tempFailRate: 0.03,
		latency:      50 * time.Millisecond,
	}
}

// NewMockProviderWithRates overrides the outcome distribution. Rates are
// clamped so success + tempFail <= 1.
func NewMockProviderWithRates(channel notifications.Channel, successRate, tempFailRate float64, latency time.Duration) *MockProvider {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	if tempFailRate < 0 {
		tempFailRate = 0
	}
	if successRate+tempFailRate > 1 {
		tempFailRate = 1 - successRate
	}
	return &MockProvider{
		channel:      channel,
		successRate:  successRate,
		tempFailRate: tempFailRate,
		latency:      latency,
	}
}

func (p *MockProvider) Name() string {
	return fmt.Sprintf("mock-%s", p.channel)
}

func (p *MockProvider) Channel() notifications.Channel { return p.channel }

func (p *MockProvider) Ready() bool { return true }

func (p *MockProvider) Send(ctx context.Context, req *Request) (*Result, error) {
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
			return nil, transportError(p.Name(), req.Recipient, ctx.Err())
		}
	}

	r := rand.Float64()
	switch {
	case r < p.successRate:
		return &Result{
			Provider:   p.Name(),
			MessageID:  fmt.Sprintf("mock_%d", time.Now().UnixNano()),
			StatusCode: 200,
			AcceptedAt: time.Now().UTC(),
		}, nil
	case r < p.successRate+p.tempFailRate:
		return nil, &Error{
			Provider:  p.Name(),
			Recipient: req.Recipient,
			ErrorCode: "ETIMEDOUT",
			Message:   "temporary network error",
		}
	default:
		return nil, &Error{
			Provider:   p.Name(),
			Recipient:  req.Recipient,
			StatusCode: 400,
			Message:    "invalid recipient address",
		}
	}
}
