// Package events publishes notification lifecycle events over NATS so
// other systems can follow deliveries without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectAccepted   = "notify.accepted"
	SubjectSent       = "notify.sent"
	SubjectRetry      = "notify.retry"
	SubjectDeadLetter = "notify.dead_letter"
)

// Event is the payload published on every subject.
type Event struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Channel       string    `json:"channel"`
	Status        string    `json:"status"`
	Attempt       int       `json:"attempt,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher emits lifecycle events. Publishing is best effort: callers
// log failures and carry on, delivery state lives in the database.
type Publisher interface {
	Accepted(ctx context.Context, ev Event) error
	Sent(ctx context.Context, ev Event) error
	Retry(ctx context.Context, ev Event) error
	DeadLetter(ctx context.Context, ev Event) error
}

type NATSPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSPublisher(natsURL string, logger *zap.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("Notify Gateway"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(5 * time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", conn.ConnectedUrl()))

	return &NATSPublisher{
		conn:   conn,
		logger: logger,
	}, nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

func (p *NATSPublisher) Accepted(ctx context.Context, ev Event) error {
	return p.publish(SubjectAccepted, ev)
}

func (p *NATSPublisher) Sent(ctx context.Context, ev Event) error {
	return p.publish(SubjectSent, ev)
}

func (p *NATSPublisher) Retry(ctx context.Context, ev Event) error {
	return p.publish(SubjectRetry, ev)
}

func (p *NATSPublisher) DeadLetter(ctx context.Context, ev Event) error {
	return p.publish(SubjectDeadLetter, ev)
}

func (p *NATSPublisher) publish(subject string, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	p.logger.Debug("published event",
		zap.String("subject", subject),
		zap.String("transaction_id", ev.TransactionID))

	return nil
}

// SubscribeDeadLetters delivers dead-letter events to a monitoring handler.
func (p *NATSPublisher) SubscribeDeadLetters(handler func(ev Event)) (*nats.Subscription, error) {
	return p.conn.Subscribe(SubjectDeadLetter, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			p.logger.Error("failed to unmarshal dead-letter event", zap.Error(err))
			return
		}
		handler(ev)
	})
}

// NopPublisher drops every event. Used when NATS is not configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Accepted(ctx context.Context, ev Event) error   { return nil }
func (NopPublisher) Sent(ctx context.Context, ev Event) error       { return nil }
func (NopPublisher) Retry(ctx context.Context, ev Event) error      { return nil }
func (NopPublisher) DeadLetter(ctx context.Context, ev Event) error { return nil }
