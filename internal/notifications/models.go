// Package notifications holds the transaction data model shared by the
// dispatcher, the worker and the admin API: the Transaction record, its
// append-only ErrorLog trail, and the status state machine both sides
// drive.
package notifications

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel is the delivery medium for a notification.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelPush     Channel = "PUSH"
)

// AllChannels returns every channel in its canonical order. Preference
// resolution and analytics rely on this order being stable.
func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelPush}
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelPush:
		return true
	}
	return false
}

// Type categorizes the business purpose of a notification.
type Type string

const (
	TypeTransactional Type = "TRANSACTIONAL"
	TypeMarketing     Type = "MARKETING"
	TypeSystem        Type = "SYSTEM"
	TypeAlert         Type = "ALERT"
)

func (t Type) Valid() bool {
	switch t {
	case TypeTransactional, TypeMarketing, TypeSystem, TypeAlert:
		return true
	}
	return false
}

// Status is the transaction lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
	StatusRetry      Status = "RETRY"
	StatusDeadLetter Status = "DEAD_LETTER"
)

// Terminal reports whether a status admits no further transitions. FAILED
// is treated as an alias of DEAD_LETTER: the worker never writes it, but a
// row carrying it must not be reprocessed.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusDeadLetter, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusQueued || to == StatusProcessing || to == StatusDeadLetter
	case StatusQueued, StatusRetry:
		return to == StatusProcessing || to == StatusDeadLetter
	case StatusProcessing:
		return to == StatusSent || to == StatusRetry || to == StatusDeadLetter
	}
	return false
}

// Priority levels. Queue routing sends priority >= PriorityHigh to the
// priority queue.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
	PriorityUrgent = 4
)

func ValidPriority(p int) bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// Metadata is the opaque key-value payload attached to a transaction,
// stored as JSONB.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("metadata: cannot scan %T", src)
	}
	if len(b) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// Transaction is the durable record of one notification submission across
// its whole lifecycle. Created by the dispatcher, mutated only by the
// worker afterwards, never deleted.
type Transaction struct {
	ID               uuid.UUID  `json:"transactionId"`
	UserID           string     `json:"userId"`
	NotificationType Type       `json:"notificationType"`
	Channel          Channel    `json:"channel"`
	Status           Status     `json:"status"`
	Content          string     `json:"content"`
	Subject          *string    `json:"subject,omitempty"`
	Recipient        string     `json:"recipient"`
	Metadata         Metadata   `json:"metadata"`
	Priority         int        `json:"priority"`
	RetryCount       int        `json:"retryCount"`
	MaxRetries       int        `json:"maxRetries"`
	FailureReason    *string    `json:"failureReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	SentAt           *time.Time `json:"sentAt,omitempty"`
	FailedAt         *time.Time `json:"failedAt,omitempty"`
}

// ErrorLog is one failed delivery attempt. Rows are append-only; the count
// per transaction equals the number of failed attempts.
type ErrorLog struct {
	ID               uuid.UUID `json:"id"`
	TransactionID    uuid.UUID `json:"transactionId"`
	ErrorType        string    `json:"errorType"`
	ErrorMessage     string    `json:"errorMessage"`
	ErrorStack       *string   `json:"errorStack,omitempty"`
	ErrorCode        *string   `json:"errorCode,omitempty"`
	Retryable        bool      `json:"retryable"`
	ProviderResponse *string   `json:"providerResponse,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// CreateRequest is a submission as the dispatcher consumes it. Validation
// happens in the dispatcher, so bulk items and single sends share one path.
type CreateRequest struct {
	UserID           string   `json:"userId"`
	NotificationType Type     `json:"notificationType"`
	Channel          Channel  `json:"channel,omitempty"`
	Content          string   `json:"content"`
	Subject          *string  `json:"subject,omitempty"`
	Recipient        string   `json:"recipient"`
	Priority         *int     `json:"priority,omitempty"`
	Metadata         Metadata `json:"metadata,omitempty"`
}

// Ptr returns a pointer to v. Convenience for optional fields in literals.
func Ptr[T any](v T) *T {
	return &v
}
