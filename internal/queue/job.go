// Package queue is a Redis-backed job broker. Each named queue keeps a
// pending sorted set ordered by priority then age, a delayed sorted set
// scored by due time, and a hash of job payloads. Completed and failed
// sets record recent history for dashboards; the payloads themselves are
// deleted once a job finishes.
package queue

import (
	"time"
)

// Queue names.
const (
	QueueRegular    = "regular"
	QueuePriority   = "priority"
	QueueDeadLetter = "dead-letter"
)

// QueueFor routes by effective priority: HIGH and URGENT jobs go to the
// priority queue, the rest to regular.
func QueueFor(priority int) string {
	if priority >= 3 {
		return QueuePriority
	}
	return QueueRegular
}

// Backoff types.
const (
	BackoffExponential = "exponential"
	BackoffFixed       = "fixed"
)

// Backoff describes the retry delay policy carried on a job.
type Backoff struct {
	Type       string `json:"type"`
	DelayMs    int    `json:"delay_ms"`
	Multiplier int    `json:"multiplier"`
}

// NextDelay returns the wait before retry attempt n (1-based), so the
// first retry waits the base delay and each further retry multiplies it.
func (b Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.DelayMs
	if delay <= 0 {
		delay = 5000
	}
	if b.Type == BackoffFixed {
		return time.Duration(delay) * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	for i := 1; i < attempt; i++ {
		delay *= multiplier
	}
	return time.Duration(delay) * time.Millisecond
}

// Job is the payload carried through Redis. The job ID doubles as the
// notification transaction ID so queue state can always be joined back
// to the database row.
type Job struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	Channel     string                 `json:"channel"`
	Recipient   string                 `json:"recipient"`
	Subject     string                 `json:"subject,omitempty"`
	Content     string                 `json:"content"`
	Priority    int                    `json:"priority"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Attempt     int                    `json:"attempt"`
	MaxAttempts int                    `json:"max_attempts"`
	Backoff     Backoff                `json:"backoff"`
	EnqueuedAt  time.Time              `json:"enqueued_at"`
	// Reason is set on dead-letter copies only.
	Reason string `json:"reason,omitempty"`
}

// Options applies per-enqueue overrides onto the job payload.
type Options struct {
	Priority int
	Attempts int
	Backoff  Backoff
}

// Stats is a point-in-time snapshot of one queue.
type Stats struct {
	Queue     string `json:"queue"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Delayed   int64  `json:"delayed"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}
