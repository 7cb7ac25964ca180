package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broker is the queue contract the dispatcher and workers program against.
type Broker interface {
	// Enqueue stores the job payload and adds it to the queue's pending set.
	Enqueue(ctx context.Context, queue string, job *Job, opts Options) error
	// Dequeue returns up to limit jobs in priority order without removing
	// them. Callers must lock a job before processing it.
	Dequeue(ctx context.Context, queue string, limit int) ([]*Job, error)
	// AcquireLock claims a job for the given owner. Returns false when the
	// job is already held.
	AcquireLock(ctx context.Context, queue, jobID, owner string, ttl time.Duration) (bool, error)
	// ReleaseLock releases a lock if still held by owner.
	ReleaseLock(ctx context.Context, queue, jobID, owner string) error
	// Retry moves a job from pending to the delayed set, due at the given
	// time, with its attempt counter advanced.
	Retry(ctx context.Context, queue string, job *Job, at time.Time) error
	// PromoteDelayed moves due jobs back to pending. Returns how many moved.
	PromoteDelayed(ctx context.Context, queue string, now time.Time) (int, error)
	// Complete acknowledges a job and records it in the completed set.
	Complete(ctx context.Context, queue, jobID string) error
	// Fail acknowledges a job and records it in the failed set.
	Fail(ctx context.Context, queue, jobID string) error
	// Remove drops a job from the queue without recording an outcome.
	Remove(ctx context.Context, queue, jobID string) error
	// Stats reports queue depths.
	Stats(ctx context.Context, queue string) (*Stats, error)
	Close() error
}

// Config tunes retention and locking. Zero values fall back to the
// defaults below.
type Config struct {
	Prefix             string
	CompletedRetention time.Duration
	CompletedCap       int64
	FailedRetention    time.Duration
	LockTTL            time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "notify"
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = 24 * time.Hour
	}
	if c.CompletedCap <= 0 {
		c.CompletedCap = 1000
	}
	if c.FailedRetention <= 0 {
		c.FailedRetention = 7 * 24 * time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 2 * time.Minute
	}
	return c
}

// RedisBroker implements Broker on Redis sorted sets.
type RedisBroker struct {
	client *redis.Client
	cfg    Config
	logger *zap.Logger
}

func NewRedisBroker(client *redis.Client, cfg Config, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, cfg: cfg.withDefaults(), logger: logger}
}

func (b *RedisBroker) pendingKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:pending", b.cfg.Prefix, queue)
}

func (b *RedisBroker) delayedKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:delayed", b.cfg.Prefix, queue)
}

func (b *RedisBroker) activeKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:active", b.cfg.Prefix, queue)
}

func (b *RedisBroker) completedKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:completed", b.cfg.Prefix, queue)
}

func (b *RedisBroker) failedKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:failed", b.cfg.Prefix, queue)
}

// jobsKey is per queue so a dead-letter copy never clobbers the origin
// queue's payload for the same job ID.
func (b *RedisBroker) jobsKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:jobs", b.cfg.Prefix, queue)
}

func (b *RedisBroker) lockKey(jobID string) string {
	return fmt.Sprintf("%s:lock:%s", b.cfg.Prefix, jobID)
}

// pendingScore orders the pending set: priority dominates (1e19 clears the
// ~1.7e18 nanosecond clock), and subtracting the clock makes older jobs
// score higher within a priority, so ZREVRANGE yields priority-then-FIFO.
func pendingScore(priority int, now time.Time) float64 {
	return float64(priority)*1e19 - float64(now.UnixNano())
}

func (b *RedisBroker) Enqueue(ctx context.Context, queue string, job *Job, opts Options) error {
	if opts.Priority > 0 {
		job.Priority = opts.Priority
	}
	if opts.Attempts > 0 {
		job.MaxAttempts = opts.Attempts
	}
	if opts.Backoff.DelayMs > 0 {
		job.Backoff = opts.Backoff
	}
	if job.Attempt == 0 {
		job.Attempt = 1
	}
	job.EnqueuedAt = time.Now().UTC()

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.jobsKey(queue), job.ID, payload)
	pipe.ZAdd(ctx, b.pendingKey(queue), redis.Z{
		Score:  pendingScore(job.Priority, time.Now()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (b *RedisBroker) Dequeue(ctx context.Context, queue string, limit int) ([]*Job, error) {
	ids, err := b.client.ZRevRange(ctx, b.pendingKey(queue), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending queue %s: %w", queue, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	payloads, err := b.client.HMGet(ctx, b.jobsKey(queue), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job payloads: %w", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for i, raw := range payloads {
		if raw == nil {
			// payload gone, drop the orphaned queue entry
			b.client.ZRem(ctx, b.pendingKey(queue), ids[i])
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(raw.(string)), &job); err != nil {
			b.logger.Warn("dropping undecodable job",
				zap.String("queue", queue),
				zap.String("job_id", ids[i]),
				zap.Error(err))
			b.client.ZRem(ctx, b.pendingKey(queue), ids[i])
			b.client.HDel(ctx, b.jobsKey(queue), ids[i])
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (b *RedisBroker) AcquireLock(ctx context.Context, queue, jobID, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = b.cfg.LockTTL
	}
	ok, err := b.client.SetNX(ctx, b.lockKey(jobID), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock for %s: %w", jobID, err)
	}
	if ok {
		b.client.ZAdd(ctx, b.activeKey(queue), redis.Z{
			Score:  float64(time.Now().Add(ttl).Unix()),
			Member: jobID,
		})
	}
	return ok, nil
}

// releaseScript deletes the lock only when still owned by the caller.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (b *RedisBroker) ReleaseLock(ctx context.Context, queue, jobID, owner string) error {
	released, err := releaseScript.Run(ctx, b.client, []string{b.lockKey(jobID)}, owner).Int()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock for %s: %w", jobID, err)
	}
	if released == 1 {
		b.client.ZRem(ctx, b.activeKey(queue), jobID)
	}
	return nil
}

func (b *RedisBroker) Retry(ctx context.Context, queue string, job *Job, at time.Time) error {
	job.Attempt++
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.jobsKey(queue), job.ID, payload)
	pipe.ZRem(ctx, b.pendingKey(queue), job.ID)
	pipe.ZAdd(ctx, b.delayedKey(queue), redis.Z{
		Score:  float64(at.Unix()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delay job %s: %w", job.ID, err)
	}
	return nil
}

func (b *RedisBroker) PromoteDelayed(ctx context.Context, queue string, now time.Time) (int, error) {
	ids, err := b.client.ZRangeByScore(ctx, b.delayedKey(queue), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read delayed queue %s: %w", queue, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	payloads, err := b.client.HMGet(ctx, b.jobsKey(queue), ids...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to load delayed payloads: %w", err)
	}

	pipe := b.client.TxPipeline()
	promoted := 0
	for i, raw := range payloads {
		pipe.ZRem(ctx, b.delayedKey(queue), ids[i])
		if raw == nil {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(raw.(string)), &job); err != nil {
			pipe.HDel(ctx, b.jobsKey(queue), ids[i])
			continue
		}
		pipe.ZAdd(ctx, b.pendingKey(queue), redis.Z{
			Score:  pendingScore(job.Priority, now),
			Member: job.ID,
		})
		promoted++
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to promote delayed jobs: %w", err)
	}
	return promoted, nil
}

func (b *RedisBroker) Complete(ctx context.Context, queue, jobID string) error {
	now := time.Now()
	pipe := b.client.TxPipeline()
	pipe.ZRem(ctx, b.pendingKey(queue), jobID)
	pipe.ZRem(ctx, b.delayedKey(queue), jobID)
	pipe.ZRem(ctx, b.activeKey(queue), jobID)
	pipe.HDel(ctx, b.jobsKey(queue), jobID)
	pipe.ZAdd(ctx, b.completedKey(queue), redis.Z{
		Score:  float64(now.Unix()),
		Member: jobID,
	})
	// retention: drop entries past the window, then cap by count
	pipe.ZRemRangeByScore(ctx, b.completedKey(queue), "-inf",
		strconv.FormatInt(now.Add(-b.cfg.CompletedRetention).Unix(), 10))
	pipe.ZRemRangeByRank(ctx, b.completedKey(queue), 0, -(b.cfg.CompletedCap + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

func (b *RedisBroker) Fail(ctx context.Context, queue, jobID string) error {
	now := time.Now()
	pipe := b.client.TxPipeline()
	pipe.ZRem(ctx, b.pendingKey(queue), jobID)
	pipe.ZRem(ctx, b.delayedKey(queue), jobID)
	pipe.ZRem(ctx, b.activeKey(queue), jobID)
	pipe.HDel(ctx, b.jobsKey(queue), jobID)
	pipe.ZAdd(ctx, b.failedKey(queue), redis.Z{
		Score:  float64(now.Unix()),
		Member: jobID,
	})
	pipe.ZRemRangeByScore(ctx, b.failedKey(queue), "-inf",
		strconv.FormatInt(now.Add(-b.cfg.FailedRetention).Unix(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record failed job %s: %w", jobID, err)
	}
	return nil
}

func (b *RedisBroker) Remove(ctx context.Context, queue, jobID string) error {
	pipe := b.client.TxPipeline()
	pipe.ZRem(ctx, b.pendingKey(queue), jobID)
	pipe.ZRem(ctx, b.delayedKey(queue), jobID)
	pipe.ZRem(ctx, b.activeKey(queue), jobID)
	pipe.HDel(ctx, b.jobsKey(queue), jobID)
	pipe.Del(ctx, b.lockKey(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove job %s: %w", jobID, err)
	}
	return nil
}

func (b *RedisBroker) Stats(ctx context.Context, queue string) (*Stats, error) {
	// expired locks leave stale active entries behind
	b.client.ZRemRangeByScore(ctx, b.activeKey(queue), "-inf",
		strconv.FormatInt(time.Now().Unix(), 10))

	pipe := b.client.Pipeline()
	pendingCmd := pipe.ZCard(ctx, b.pendingKey(queue))
	activeCmd := pipe.ZCard(ctx, b.activeKey(queue))
	delayedCmd := pipe.ZCard(ctx, b.delayedKey(queue))
	completedCmd := pipe.ZCard(ctx, b.completedKey(queue))
	failedCmd := pipe.ZCard(ctx, b.failedKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read stats for queue %s: %w", queue, err)
	}

	// locked jobs stay in pending until acked, so waiting excludes them
	waiting := pendingCmd.Val() - activeCmd.Val()
	if waiting < 0 {
		waiting = 0
	}
	return &Stats{
		Queue:     queue,
		Waiting:   waiting,
		Active:    activeCmd.Val(),
		Delayed:   delayedCmd.Val(),
		Completed: completedCmd.Val(),
		Failed:    failedCmd.Val(),
	}, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
