package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestBroker(t *testing.T, cfg Config) (*RedisBroker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBroker(client, cfg, zap.NewNop()), mr
}

func testJob(id string, priority int) *Job {
	return &Job{
		ID:        id,
		UserID:    "user-1",
		Channel:   "EMAIL",
		Recipient: "user@example.com",
		Content:   "hello",
		Priority:  priority,
	}
}

func TestQueueFor(t *testing.T) {
	if q := QueueFor(2); q != QueueRegular {
		t.Errorf("expected regular for priority 2, got %s", q)
	}
	if q := QueueFor(3); q != QueuePriority {
		t.Errorf("expected priority queue for priority 3, got %s", q)
	}
}

func TestBackoffNextDelay(t *testing.T) {
	b := Backoff{Type: BackoffExponential, DelayMs: 5000, Multiplier: 2}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
	}
	for _, c := range cases {
		if got := b.NextDelay(c.attempt); got != c.want {
			t.Errorf("attempt %d: expected %v, got %v", c.attempt, c.want, got)
		}
	}

	fixed := Backoff{Type: BackoffFixed, DelayMs: 1000}
	if got := fixed.NextDelay(3); got != time.Second {
		t.Errorf("expected fixed delay 1s, got %v", got)
	}
}

func TestEnqueueDequeuePriorityOrder(t *testing.T) {
	broker, _ := newTestBroker(t, Config{})
	ctx := context.Background()

	for _, j := range []*Job{testJob("low-1", 1), testJob("low-2", 1), testJob("urgent", 4)} {
		if err := broker.Enqueue(ctx, QueueRegular, j, Options{}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	jobs, err := broker.Dequeue(ctx, QueueRegular, 10)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "urgent" {
		t.Errorf("expected urgent job first, got %s", jobs[0].ID)
	}
	if jobs[1].ID != "low-1" || jobs[2].ID != "low-2" {
		t.Errorf("expected FIFO within priority, got %s then %s", jobs[1].ID, jobs[2].ID)
	}
}

func TestDequeueIsNonDestructive(t *testing.T) {
	broker, _ := newTestBroker(t, Config{})
	ctx := context.Background()

	if err := broker.Enqueue(ctx, QueueRegular, testJob("job-1", 2), Options{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		jobs, err := broker.Dequeue(ctx, QueueRegular, 10)
		if err != nil {
			t.Fatalf("dequeue %d failed: %v", i, err)
		}
		if len(jobs) != 1 || jobs[0].ID != "job-1" {
			t.Fatalf("dequeue %d: expected job-1 still present, got %v", i, jobs)
		}
	}
}

func TestEnqueueAppliesOptions(t *testing.T) {
	broker, _ := newTestBroker(t, Config{})
	ctx := context.Background()

	job := testJob("job-1", 1)
	opts := Options{
		Priority: 4,
		Attempts: 4,
		Backoff:  Backoff{Type: BackoffExponential, DelayMs: 5000, Multiplier: 2},
	}
	if err := broker.Enqueue(ctx, QueueRegular, job, opts); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	jobs, err := broker.Dequeue(ctx, QueueRegular, 1)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	got := jobs[0]
	if got.Priority != 4 || got.MaxAttempts != 4 || got.Attempt != 1 {
		t.Errorf("options not applied: %+v", got)
	}
	if got.Backoff.DelayMs != 5000 {
		t.Errorf("expected backoff on payload, got %+v", got.Backoff)
	}
}

func TestRetryAndPromoteDelayed(t *testing.T) {
	broker, _ := newTestBroker(t, Config{})
	ctx := context.Background()
	now := time.Now()

	job := testJob("job-1", 2)
	if err := broker.Enqueue(ctx, QueueRegular, job, Options{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := broker.Retry(ctx, QueueRegular, job, now.Add(time.Hour)); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	jobs, err := broker.Dequeue(ctx, QueueRegular, 10)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty pending while delayed, got %d jobs", len(jobs))
	}

	n, err := broker.PromoteDelayed(ctx, QueueRegular, now)
	if err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing due yet, promoted %d", n)
	}

	n, err = broker.PromoteDelayed(ctx, QueueRegular, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 promoted, got %d", n)
	}

	jobs, err = broker.Dequeue(ctx, QueueRegular, 10)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Attempt != 2 {
		t.Fatalf("expected promoted job on attempt 2, got %+v", jobs)
	}
}

func TestLockExclusivity(t *testing.T) {
	broker, mr := newTestBroker(t, Config{})
	ctx := context.Background()

	ok, err := broker.AcquireLock(ctx, QueueRegular, "job-1", "worker-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = broker.AcquireLock(ctx, QueueRegular, "job-1", "worker-b", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to fail while locked")
	}

	// wrong owner cannot release
	if err := broker.ReleaseLock(ctx, QueueRegular, "job-1", "worker-b"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	ok, _ = broker.AcquireLock(ctx, QueueRegular, "job-1", "worker-b", time.Minute)
	if ok {
		t.Fatal("expected lock to survive release by non-owner")
	}

	if err := broker.ReleaseLock(ctx, QueueRegular, "job-1", "worker-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	ok, _ = broker.AcquireLock(ctx, QueueRegular, "job-1", "worker-b", time.Minute)
	if !ok {
		t.Fatal("expected acquire to succeed after owner release")
	}

	// expired locks free themselves
	mr.FastForward(2 * time.Minute)
	ok, _ = broker.AcquireLock(ctx, QueueRegular, "job-1", "worker-c", time.Minute)
	if !ok {
		t.Fatal("expected acquire to succeed after TTL expiry")
	}
}

func TestCompleteCapsHistory(t *testing.T) {
	broker, _ := newTestBroker(t, Config{CompletedCap: 3})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := broker.Enqueue(ctx, QueueRegular, testJob(id, 2), Options{}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		if err := broker.Complete(ctx, QueueRegular, id); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
	}

	stats, err := broker.Stats(ctx, QueueRegular)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Completed != 3 {
		t.Errorf("expected completed history capped at 3, got %d", stats.Completed)
	}
	if stats.Waiting != 0 {
		t.Errorf("expected empty pending after completion, got %d", stats.Waiting)
	}
}

func TestFailTrimsOldEntries(t *testing.T) {
	broker, _ := newTestBroker(t, Config{FailedRetention: 24 * time.Hour})
	ctx := context.Background()

	// seed an entry older than the retention window
	old := float64(time.Now().Add(-48 * time.Hour).Unix())
	if err := broker.client.ZAdd(ctx, broker.failedKey(QueueRegular), redis.Z{Score: old, Member: "stale"}).Err(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := broker.Enqueue(ctx, QueueRegular, testJob("fresh", 2), Options{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := broker.Fail(ctx, QueueRegular, "fresh"); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	stats, err := broker.Stats(ctx, QueueRegular)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("expected stale entry trimmed, got %d failed", stats.Failed)
	}
}

func TestStatsWaitingExcludesActive(t *testing.T) {
	broker, _ := newTestBroker(t, Config{})
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := broker.Enqueue(ctx, QueueRegular, testJob(id, 2), Options{}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	if _, err := broker.AcquireLock(ctx, QueueRegular, "a", "worker-1", time.Minute); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	stats, err := broker.Stats(ctx, QueueRegular)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Waiting != 1 || stats.Active != 1 {
		t.Errorf("expected waiting=1 active=1, got waiting=%d active=%d", stats.Waiting, stats.Active)
	}
}

func TestRemoveLeavesNoTrace(t *testing.T) {
	broker, _ := newTestBroker(t, Config{})
	ctx := context.Background()

	if err := broker.Enqueue(ctx, QueueRegular, testJob("job-1", 2), Options{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := broker.Remove(ctx, QueueRegular, "job-1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	jobs, err := broker.Dequeue(ctx, QueueRegular, 10)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected empty queue, got %d jobs", len(jobs))
	}

	stats, err := broker.Stats(ctx, QueueRegular)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Completed != 0 || stats.Failed != 0 {
		t.Errorf("expected no outcome recorded, got %+v", stats)
	}
}

func TestDeadLetterQueueKeepsPayload(t *testing.T) {
	broker, _ := newTestBroker(t, Config{})
	ctx := context.Background()

	job := testJob("job-1", 2)
	job.Reason = "provider rejected recipient"
	if err := broker.Enqueue(ctx, QueueDeadLetter, job, Options{Attempts: 1}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	jobs, err := broker.Dequeue(ctx, QueueDeadLetter, 10)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Reason != "provider rejected recipient" {
		t.Fatalf("expected dead-letter payload with reason, got %+v", jobs)
	}
	if jobs[0].MaxAttempts != 1 {
		t.Errorf("expected single-attempt dead-letter copy, got %d", jobs[0].MaxAttempts)
	}
}
