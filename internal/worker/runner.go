// Package worker drains the delivery queues: it locks jobs, drives the
// provider call, and settles each transaction into SENT, RETRY or
// DEAD_LETTER. The database owns the retry budget; the broker only
// schedules redeliveries.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notify-gateway/internal/classify"
	"notify-gateway/internal/config"
	"notify-gateway/internal/events"
	"notify-gateway/internal/notifications"
	"notify-gateway/internal/observability"
	"notify-gateway/internal/provider"
	"notify-gateway/internal/queue"
)

// Runner processes one job at a time. A single Runner is shared by every
// worker goroutine; it keeps no per-job state.
type Runner struct {
	store    notifications.Store
	broker   queue.Broker
	registry *provider.Registry
	events   events.Publisher
	metrics  *observability.Metrics
	logger   *zap.Logger

	providerTimeout time.Duration
	lockTTL         time.Duration
	workerID        string
}

func NewRunner(
	store notifications.Store,
	broker queue.Broker,
	registry *provider.Registry,
	pub events.Publisher,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Runner {
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	return &Runner{
		store:           store,
		broker:          broker,
		registry:        registry,
		events:          pub,
		metrics:         metrics,
		logger:          logger,
		providerTimeout: cfg.ProviderTimeout,
		lockTTL:         cfg.QueueLockTTL,
		workerID:        fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
	}
}

// Process handles a single delivered job. Safe to call with jobs another
// worker is already handling; the per-job lock arbitrates.
func (r *Runner) Process(ctx context.Context, queueName string, job *queue.Job) {
	locked, err := r.broker.AcquireLock(ctx, queueName, job.ID, r.workerID, r.lockTTL)
	if err != nil {
		r.logger.Error("failed to acquire job lock", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if !locked {
		return
	}
	defer r.releaseLock(queueName, job.ID)

	txnID, err := uuid.Parse(job.ID)
	if err != nil {
		r.logger.Warn("dropping job with malformed id", zap.String("job_id", job.ID))
		r.remove(ctx, queueName, job.ID)
		return
	}

	txn, err := r.store.GetByID(ctx, txnID)
	if errors.Is(err, notifications.ErrNotFound) {
		r.logger.Warn("dropping job without transaction row", zap.String("job_id", job.ID))
		r.remove(ctx, queueName, job.ID)
		return
	}
	if err != nil {
		r.logger.Error("failed to load transaction", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	// redelivery of finished work is a silent ack
	if txn.Status.Terminal() {
		r.remove(ctx, queueName, job.ID)
		return
	}

	ok, err := r.store.MarkProcessing(ctx, txnID)
	if err != nil {
		r.logger.Error("failed to mark processing", zap.String("transaction_id", job.ID), zap.Error(err))
		return
	}
	if !ok {
		// row went terminal between read and update
		r.remove(ctx, queueName, job.ID)
		return
	}

	result, sendErr := r.send(ctx, txn)
	if sendErr == nil {
		r.handleSuccess(ctx, queueName, job, txn, result)
		return
	}
	r.handleFailure(ctx, queueName, job, txn, sendErr)
}

func (r *Runner) send(ctx context.Context, txn *notifications.Transaction) (*provider.Result, error) {
	p, ok := r.registry.For(txn.Channel)
	if !ok || !p.Ready() {
		return nil, provider.NotConfigured(string(txn.Channel))
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.providerTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.Send(sendCtx, providerRequest(txn))
	r.metrics.ProviderSendDuration.WithLabelValues(string(txn.Channel)).Observe(time.Since(start).Seconds())
	return result, err
}

func (r *Runner) handleSuccess(ctx context.Context, queueName string, job *queue.Job, txn *notifications.Transaction, result *provider.Result) {
	response, err := json.Marshal(result)
	if err != nil {
		response = nil
	}

	if err := r.store.MarkSent(ctx, txn.ID, time.Now().UTC(), response); err != nil {
		if errors.Is(err, notifications.ErrAlreadyTerminal) {
			r.remove(ctx, queueName, job.ID)
			return
		}
		r.logger.Error("failed to mark sent", zap.String("transaction_id", job.ID), zap.Error(err))
		return
	}

	if err := r.broker.Complete(ctx, queueName, job.ID); err != nil {
		r.logger.Warn("failed to ack completed job", zap.String("job_id", job.ID), zap.Error(err))
	}

	r.metrics.NotificationsProcessedTotal.WithLabelValues(string(txn.Channel), string(notifications.StatusSent)).Inc()
	if err := r.events.Sent(ctx, events.Event{
		TransactionID: txn.ID.String(),
		UserID:        txn.UserID,
		Channel:       string(txn.Channel),
		Status:        string(notifications.StatusSent),
		Attempt:       job.Attempt,
	}); err != nil {
		r.logger.Warn("failed to publish sent event", zap.Error(err))
	}

	r.logger.Info("notification sent",
		zap.String("transaction_id", job.ID),
		zap.String("channel", string(txn.Channel)),
		zap.Int("attempt", job.Attempt),
		zap.String("provider_message_id", result.MessageID))
}

func (r *Runner) handleFailure(ctx context.Context, queueName string, job *queue.Job, txn *notifications.Transaction, sendErr error) {
	cls := classify.Classify(sendErr)
	message := errorMessage(sendErr)

	errLog := &notifications.ErrorLog{
		TransactionID: txn.ID,
		ErrorType:     cls.Type,
		ErrorMessage:  message,
		Retryable:     cls.Retryable,
	}
	var perr *provider.Error
	if errors.As(sendErr, &perr) {
		if perr.ErrorCode != "" {
			errLog.ErrorCode = notifications.Ptr(perr.ErrorCode)
		}
		if perr.RawResponse != "" {
			errLog.ProviderResponse = notifications.Ptr(perr.RawResponse)
		}
	}
	if err := r.store.AppendErrorLog(ctx, errLog); err != nil {
		r.logger.Error("failed to append error log", zap.String("transaction_id", job.ID), zap.Error(err))
	}

	if !cls.Retryable {
		r.deadLetter(ctx, queueName, job, txn, message)
		return
	}

	retryCount, err := r.store.MarkRetry(ctx, txn.ID, message)
	if err != nil {
		if errors.Is(err, notifications.ErrRetriesExhausted) {
			r.deadLetter(ctx, queueName, job, txn, message)
			return
		}
		r.logger.Error("failed to mark retry", zap.String("transaction_id", job.ID), zap.Error(err))
		return
	}

	delay := job.Backoff.NextDelay(retryCount)
	if err := r.broker.Retry(ctx, queueName, job, time.Now().Add(delay)); err != nil {
		r.logger.Error("failed to schedule retry", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	r.metrics.RetriesScheduledTotal.WithLabelValues(string(txn.Channel)).Inc()
	r.metrics.NotificationsProcessedTotal.WithLabelValues(string(txn.Channel), string(notifications.StatusRetry)).Inc()
	if err := r.events.Retry(ctx, events.Event{
		TransactionID: txn.ID.String(),
		UserID:        txn.UserID,
		Channel:       string(txn.Channel),
		Status:        string(notifications.StatusRetry),
		Attempt:       retryCount,
		Reason:        message,
	}); err != nil {
		r.logger.Warn("failed to publish retry event", zap.Error(err))
	}

	r.logger.Warn("delivery failed, retry scheduled",
		zap.String("transaction_id", job.ID),
		zap.String("channel", string(txn.Channel)),
		zap.String("error_type", cls.Type),
		zap.Int("retry_count", retryCount),
		zap.Duration("delay", delay))
}

func (r *Runner) deadLetter(ctx context.Context, queueName string, job *queue.Job, txn *notifications.Transaction, reason string) {
	if err := r.store.MarkDeadLetter(ctx, txn.ID, reason, time.Now().UTC()); err != nil {
		if errors.Is(err, notifications.ErrAlreadyTerminal) {
			r.remove(ctx, queueName, job.ID)
			return
		}
		r.logger.Error("failed to dead-letter transaction", zap.String("transaction_id", job.ID), zap.Error(err))
		return
	}

	if err := r.broker.Fail(ctx, queueName, job.ID); err != nil {
		r.logger.Warn("failed to ack failed job", zap.String("job_id", job.ID), zap.Error(err))
	}

	// park an inspectable copy; the dead letter queue is never consumed
	dlqJob := *job
	dlqJob.Reason = reason
	if err := r.broker.Enqueue(ctx, queue.QueueDeadLetter, &dlqJob, queue.Options{Attempts: 1}); err != nil {
		r.logger.Warn("failed to park dead-letter copy", zap.String("job_id", job.ID), zap.Error(err))
	}

	r.metrics.DeadLettersTotal.WithLabelValues(string(txn.Channel)).Inc()
	r.metrics.NotificationsProcessedTotal.WithLabelValues(string(txn.Channel), string(notifications.StatusDeadLetter)).Inc()
	if err := r.events.DeadLetter(ctx, events.Event{
		TransactionID: txn.ID.String(),
		UserID:        txn.UserID,
		Channel:       string(txn.Channel),
		Status:        string(notifications.StatusDeadLetter),
		Attempt:       job.Attempt,
		Reason:        reason,
	}); err != nil {
		r.logger.Warn("failed to publish dead-letter event", zap.Error(err))
	}

	r.logger.Error("notification dead-lettered",
		zap.String("transaction_id", job.ID),
		zap.String("channel", string(txn.Channel)),
		zap.String("reason", reason))
}

func (r *Runner) remove(ctx context.Context, queueName, jobID string) {
	if err := r.broker.Remove(ctx, queueName, jobID); err != nil {
		r.logger.Warn("failed to remove job", zap.String("job_id", jobID), zap.Error(err))
	}
}

// releaseLock uses a fresh context so locks are freed even when the
// worker context is already cancelled.
func (r *Runner) releaseLock(queueName, jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.broker.ReleaseLock(ctx, queueName, jobID, r.workerID); err != nil {
		r.logger.Warn("failed to release job lock", zap.String("job_id", jobID), zap.Error(err))
	}
}

func providerRequest(txn *notifications.Transaction) *provider.Request {
	subject := ""
	if txn.Subject != nil {
		subject = *txn.Subject
	}
	return &provider.Request{
		TransactionID: txn.ID.String(),
		UserID:        txn.UserID,
		Recipient:     txn.Recipient,
		Subject:       subject,
		Content:       txn.Content,
		Metadata:      txn.Metadata,
	}
}

// errorMessage prefers the provider's own message so stored failure
// reasons match what the upstream actually said.
func errorMessage(err error) string {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}
