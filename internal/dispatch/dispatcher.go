// Package dispatch accepts notification submissions: it resolves the
// channel and priority against user preferences, records the transaction,
// and hands a job to the broker. Everything after that belongs to the
// worker.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notify-gateway/internal/classify"
	"notify-gateway/internal/config"
	"notify-gateway/internal/events"
	"notify-gateway/internal/notifications"
	"notify-gateway/internal/observability"
	"notify-gateway/internal/preferences"
	"notify-gateway/internal/provider"
	"notify-gateway/internal/queue"
)

var (
	// ErrValidation marks requests rejected before a transaction exists.
	ErrValidation = errors.New("invalid notification request")
	// ErrProviderNotReady marks submissions whose resolved channel has no
	// usable provider. The transaction row exists and is dead-lettered.
	ErrProviderNotReady = errors.New("channel provider not ready")
)

// Receipt is what a successful submission returns to the caller.
type Receipt struct {
	TransactionID uuid.UUID
	Channel       notifications.Channel
	Priority      int
	Queue         string
}

type Dispatcher struct {
	store    notifications.Store
	prefs    preferences.Store
	broker   queue.Broker
	registry *provider.Registry
	events   events.Publisher
	metrics  *observability.Metrics
	logger   *zap.Logger

	maxRetries int
	backoff    queue.Backoff
}

func NewDispatcher(
	store notifications.Store,
	prefs preferences.Store,
	broker queue.Broker,
	registry *provider.Registry,
	pub events.Publisher,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:      store,
		prefs:      prefs,
		broker:     broker,
		registry:   registry,
		events:     pub,
		metrics:    metrics,
		logger:     logger,
		maxRetries: cfg.MaxRetryAttempts,
		backoff: queue.Backoff{
			Type:       queue.BackoffExponential,
			DelayMs:    cfg.RetryDelayMs,
			Multiplier: cfg.BackoffMultiplier,
		},
	}
}

// Submit records a transaction and enqueues its delivery job. On
// ErrProviderNotReady the returned receipt still carries the transaction
// ID of the dead-lettered row.
func (d *Dispatcher) Submit(ctx context.Context, req *notifications.CreateRequest) (*Receipt, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	channel := d.resolveChannel(ctx, req)
	priority := d.resolvePriority(ctx, req, channel)

	txn := &notifications.Transaction{
		ID:               uuid.New(),
		UserID:           req.UserID,
		NotificationType: req.NotificationType,
		Channel:          channel,
		Status:           notifications.StatusPending,
		Content:          req.Content,
		Subject:          req.Subject,
		Recipient:        req.Recipient,
		Metadata:         req.Metadata,
		Priority:         priority,
		MaxRetries:       d.maxRetries,
	}
	if txn.NotificationType == "" {
		txn.NotificationType = notifications.TypeTransactional
	}

	if !d.registry.Ready(channel) {
		return d.refuseUnready(ctx, txn)
	}

	if err := d.store.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	queueName := queue.QueueFor(priority)
	job := jobFromTransaction(txn)
	opts := queue.Options{
		Priority: priority,
		Attempts: d.maxRetries + 1,
		Backoff:  d.backoff,
	}
	if err := d.broker.Enqueue(ctx, queueName, job, opts); err != nil {
		d.rollForward(ctx, txn, fmt.Sprintf("enqueue failed: %v", err))
		return nil, fmt.Errorf("failed to enqueue notification %s: %w", txn.ID, err)
	}

	if err := d.store.MarkQueued(ctx, txn.ID); err != nil {
		d.logger.Warn("failed to mark transaction queued",
			zap.String("transaction_id", txn.ID.String()), zap.Error(err))
	}

	d.metrics.NotificationsSubmittedTotal.WithLabelValues(string(channel), queueName).Inc()
	if err := d.events.Accepted(ctx, events.Event{
		TransactionID: txn.ID.String(),
		UserID:        txn.UserID,
		Channel:       string(channel),
		Status:        string(notifications.StatusQueued),
	}); err != nil {
		d.logger.Warn("failed to publish accepted event", zap.Error(err))
	}

	d.logger.Info("notification accepted",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("user_id", txn.UserID),
		zap.String("channel", string(channel)),
		zap.Int("priority", priority),
		zap.String("queue", queueName))

	return &Receipt{
		TransactionID: txn.ID,
		Channel:       channel,
		Priority:      priority,
		Queue:         queueName,
	}, nil
}

// refuseUnready keeps an audit trail for submissions no provider can
// serve: the row is created and immediately dead-lettered.
func (d *Dispatcher) refuseUnready(ctx context.Context, txn *notifications.Transaction) (*Receipt, error) {
	if err := d.store.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	cause := provider.NotConfigured(string(txn.Channel))
	cls := classify.Classify(cause)
	log := &notifications.ErrorLog{
		TransactionID: txn.ID,
		ErrorType:     cls.Type,
		ErrorMessage:  cause.Message,
		ErrorCode:     notifications.Ptr(cause.ErrorCode),
		Retryable:     cls.Retryable,
	}
	if err := d.store.DeadLetterWithLog(ctx, txn.ID, cause.Message, time.Now().UTC(), log); err != nil {
		return nil, fmt.Errorf("failed to dead-letter transaction: %w", err)
	}

	d.metrics.DeadLettersTotal.WithLabelValues(string(txn.Channel)).Inc()
	d.publishDeadLetter(ctx, txn, cause.Message)
	d.logger.Warn("refused submission for unready channel",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("channel", string(txn.Channel)))

	return &Receipt{
		TransactionID: txn.ID,
		Channel:       txn.Channel,
		Priority:      txn.Priority,
	}, ErrProviderNotReady
}

// rollForward dead-letters a created row whose enqueue failed, so it does
// not sit in PENDING forever.
func (d *Dispatcher) rollForward(ctx context.Context, txn *notifications.Transaction, reason string) {
	log := &notifications.ErrorLog{
		TransactionID: txn.ID,
		ErrorType:     classify.KindNonRetryable,
		ErrorMessage:  reason,
		Retryable:     false,
	}
	if err := d.store.DeadLetterWithLog(ctx, txn.ID, reason, time.Now().UTC(), log); err != nil {
		d.logger.Error("failed to roll forward after enqueue failure",
			zap.String("transaction_id", txn.ID.String()), zap.Error(err))
		return
	}
	d.metrics.DeadLettersTotal.WithLabelValues(string(txn.Channel)).Inc()
	d.publishDeadLetter(ctx, txn, reason)
}

func (d *Dispatcher) resolveChannel(ctx context.Context, req *notifications.CreateRequest) notifications.Channel {
	if req.Channel != "" {
		return req.Channel
	}
	channels, err := d.prefs.PreferredChannels(ctx, req.UserID)
	if err != nil {
		d.logger.Warn("preferences unavailable, defaulting channel to EMAIL",
			zap.String("user_id", req.UserID), zap.Error(err))
		return notifications.ChannelEmail
	}
	if len(channels) > 0 {
		return channels[0]
	}
	return notifications.ChannelEmail
}

func (d *Dispatcher) resolvePriority(ctx context.Context, req *notifications.CreateRequest, ch notifications.Channel) int {
	if req.Priority != nil && notifications.ValidPriority(*req.Priority) {
		return *req.Priority
	}
	pri, err := d.prefs.ChannelPriority(ctx, req.UserID, ch)
	if err != nil {
		d.logger.Warn("preferences unavailable, defaulting priority to MEDIUM",
			zap.String("user_id", req.UserID), zap.Error(err))
		return notifications.PriorityMedium
	}
	if !notifications.ValidPriority(pri) {
		return notifications.PriorityMedium
	}
	return pri
}

func (d *Dispatcher) publishDeadLetter(ctx context.Context, txn *notifications.Transaction, reason string) {
	if err := d.events.DeadLetter(ctx, events.Event{
		TransactionID: txn.ID.String(),
		UserID:        txn.UserID,
		Channel:       string(txn.Channel),
		Status:        string(notifications.StatusDeadLetter),
		Reason:        reason,
	}); err != nil {
		d.logger.Warn("failed to publish dead-letter event", zap.Error(err))
	}
}

func validateRequest(req *notifications.CreateRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty body", ErrValidation)
	}
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return fmt.Errorf("%w: userId is required", ErrValidation)
	case strings.TrimSpace(req.Content) == "":
		return fmt.Errorf("%w: content is required", ErrValidation)
	case strings.TrimSpace(req.Recipient) == "":
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if req.Channel != "" && !req.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrValidation, req.Channel)
	}
	if req.NotificationType != "" && !req.NotificationType.Valid() {
		return fmt.Errorf("%w: unknown notificationType %q", ErrValidation, req.NotificationType)
	}
	if req.Priority != nil && !notifications.ValidPriority(*req.Priority) {
		return fmt.Errorf("%w: priority must be between 1 and 4", ErrValidation)
	}
	return nil
}

func jobFromTransaction(txn *notifications.Transaction) *queue.Job {
	subject := ""
	if txn.Subject != nil {
		subject = *txn.Subject
	}
	return &queue.Job{
		ID:        txn.ID.String(),
		UserID:    txn.UserID,
		Channel:   string(txn.Channel),
		Recipient: txn.Recipient,
		Subject:   subject,
		Content:   txn.Content,
		Priority:  txn.Priority,
		Metadata:  txn.Metadata,
	}
}
