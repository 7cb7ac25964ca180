package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"notify-gateway/internal/config"
	"notify-gateway/internal/notifications"
	"notify-gateway/internal/queue"
)

const reapBatchSize = 100

// Reaper re-enqueues submissions that were accepted but never reached a
// worker, typically because the process died between the database write
// and the queue write. Enqueueing by transaction id is idempotent, so a
// job that still exists is refreshed rather than duplicated.
type Reaper struct {
	store  notifications.Store
	broker queue.Broker
	logger *zap.Logger

	interval   time.Duration
	stuckAfter time.Duration
	maxRetries int
	backoff    queue.Backoff

	wg   sync.WaitGroup
	stop chan struct{}
}

func NewReaper(store notifications.Store, broker queue.Broker, cfg *config.Config, logger *zap.Logger) *Reaper {
	return &Reaper{
		store:      store,
		broker:     broker,
		logger:     logger,
		interval:   cfg.ReaperInterval,
		stuckAfter: cfg.ReaperStuckAfter,
		maxRetries: cfg.MaxRetryAttempts,
		backoff: queue.Backoff{
			Type:       queue.BackoffExponential,
			DelayMs:    cfg.RetryDelayMs,
			Multiplier: cfg.BackoffMultiplier,
		},
		stop: make(chan struct{}),
	}
}

func (r *Reaper) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *Reaper) Stop() {
	close(r.stop)
	r.wg.Wait()
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.stuckAfter)
	txns, err := r.store.ReapStuck(ctx, cutoff, reapBatchSize)
	if err != nil {
		r.logger.Error("failed to reap stuck transactions", zap.Error(err))
		return
	}

	for _, txn := range txns {
		queueName := queue.QueueFor(txn.Priority)
		job := reapedJob(txn)
		opts := queue.Options{
			Priority: txn.Priority,
			Attempts: txn.MaxRetries + 1,
			Backoff:  r.backoff,
		}
		if err := r.broker.Enqueue(ctx, queueName, job, opts); err != nil {
			r.logger.Error("failed to re-enqueue stuck transaction",
				zap.String("transaction_id", txn.ID.String()), zap.Error(err))
			continue
		}
		if txn.Status == notifications.StatusPending {
			if err := r.store.MarkQueued(ctx, txn.ID); err != nil {
				r.logger.Warn("failed to mark reaped transaction queued",
					zap.String("transaction_id", txn.ID.String()), zap.Error(err))
			}
		}
		r.logger.Warn("re-enqueued stuck transaction",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("queue", queueName),
			zap.String("status", string(txn.Status)))
	}
}

func reapedJob(txn *notifications.Transaction) *queue.Job {
	subject := ""
	if txn.Subject != nil {
		subject = *txn.Subject
	}
	return &queue.Job{
		ID:          txn.ID.String(),
		UserID:      txn.UserID,
		Channel:     string(txn.Channel),
		Recipient:   txn.Recipient,
		Subject:     subject,
		Content:     txn.Content,
		Priority:    txn.Priority,
		Metadata:    txn.Metadata,
		MaxAttempts: txn.MaxRetries + 1,
	}
}
