package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notify-gateway/internal/db"
)

var (
	// ErrNotFound is returned when a transaction does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrRetriesExhausted is returned by MarkRetry when the retry budget is
	// spent or the row is already terminal.
	ErrRetriesExhausted = errors.New("retry budget exhausted")
	// ErrAlreadyTerminal is returned by guarded transitions that found the
	// row in a terminal state.
	ErrAlreadyTerminal = errors.New("transaction already terminal")
)

// Store is the persistence seam for transactions and their error logs.
type Store interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	MarkQueued(ctx context.Context, id uuid.UUID) error
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, providerResponse []byte) error
	MarkRetry(ctx context.Context, id uuid.UUID, reason string) (int, error)
	MarkDeadLetter(ctx context.Context, id uuid.UUID, reason string, failedAt time.Time) error
	DeadLetterWithLog(ctx context.Context, id uuid.UUID, reason string, failedAt time.Time, log *ErrorLog) error
	AppendErrorLog(ctx context.Context, log *ErrorLog) error
	ListErrorLogs(ctx context.Context, transactionID uuid.UUID) ([]*ErrorLog, error)
	List(ctx context.Context, f Filter) ([]*Transaction, error)
	ListFailedAttempts(ctx context.Context, f FailedFilter) ([]*FailedAttempt, error)
	StatusCounts(ctx context.Context, userID string) (map[Status]int64, error)
	ErrorAnalytics(ctx context.Context, from, to *time.Time) (*ErrorAnalytics, error)
	ChannelAnalytics(ctx context.Context, from, to *time.Time) ([]*ChannelStats, error)
	ReapStuck(ctx context.Context, olderThan time.Time, limit int) ([]*Transaction, error)
}

// Filter narrows admin transaction listings. Zero values mean "no filter".
type Filter struct {
	TransactionID string
	UserID        string
	Status        Status
	Channel       Channel
	FailureReason string
	StartDate     *time.Time
	EndDate       *time.Time
	Limit         int
	Offset        int
}

// FailedFilter narrows failed-attempt listings.
type FailedFilter struct {
	ErrorType string
	Retryable *bool
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// FailedAttempt is an error log row joined with its transaction context.
type FailedAttempt struct {
	ErrorLog
	UserID    string  `json:"userId"`
	Channel   Channel `json:"channel"`
	Status    Status  `json:"status"`
	Recipient string  `json:"recipient"`
}

type PostgresStore struct {
	db     *db.PostgresDB
	logger *zap.Logger
}

func NewPostgresStore(db *db.PostgresDB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

const txnColumns = `transaction_id, user_id, notification_type, channel, status, content, subject, recipient,
	metadata, priority, retry_count, max_retries, failure_reason, created_at, updated_at, sent_at, failed_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.NotificationType, &t.Channel, &t.Status, &t.Content, &t.Subject, &t.Recipient,
		&t.Metadata, &t.Priority, &t.RetryCount, &t.MaxRetries, &t.FailureReason, &t.CreatedAt, &t.UpdatedAt,
		&t.SentAt, &t.FailedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) Create(ctx context.Context, txn *Transaction) error {
	query := `INSERT INTO transactions (` + txnColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.db.ExecContext(ctx, query,
		txn.ID, txn.UserID, txn.NotificationType, txn.Channel, txn.Status, txn.Content, txn.Subject,
		txn.Recipient, txn.Metadata, txn.Priority, txn.RetryCount, txn.MaxRetries, txn.FailureReason,
		txn.CreatedAt, txn.UpdatedAt, txn.SentAt, txn.FailedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	s.logger.Info("transaction created",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("user_id", txn.UserID),
		zap.String("channel", string(txn.Channel)),
		zap.Int("priority", txn.Priority))
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE transaction_id = $1`

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

func (s *PostgresStore) MarkQueued(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE transactions SET status = $2, updated_at = $3
		WHERE transaction_id = $1 AND status = $4`
	_, err := s.db.ExecContext(ctx, query, id, StatusQueued, time.Now().UTC(), StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark queued: %w", err)
	}
	return nil
}

// MarkProcessing claims the row for one delivery attempt. It returns false
// without error when the row is already terminal, which the worker treats
// as an idempotent ack.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE transactions SET status = $2, updated_at = $3
		WHERE transaction_id = $1 AND status NOT IN ($4, $5, $6)`
	res, err := s.db.ExecContext(ctx, query, id, StatusProcessing, time.Now().UTC(),
		StatusSent, StatusDeadLetter, StatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to mark processing: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark processing: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, providerResponse []byte) error {
	if len(providerResponse) == 0 {
		providerResponse = []byte("null")
	}
	query := `UPDATE transactions
		SET status = $2, sent_at = $3, failure_reason = NULL,
			metadata = jsonb_set(COALESCE(metadata, '{}'), '{providerResponse}', $4::jsonb, true),
			updated_at = $5
		WHERE transaction_id = $1 AND status NOT IN ($6, $7, $8)`
	res, err := s.db.ExecContext(ctx, query, id, StatusSent, sentAt, providerResponse, time.Now().UTC(),
		StatusSent, StatusDeadLetter, StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark sent: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark sent: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// MarkRetry atomically increments retry_count while the budget allows it.
// The guard keeps retry_count <= max_retries no matter how many workers
// race the same redelivered job.
func (s *PostgresStore) MarkRetry(ctx context.Context, id uuid.UUID, reason string) (int, error) {
	query := `UPDATE transactions
		SET status = $2, retry_count = retry_count + 1, failure_reason = $3, updated_at = $4
		WHERE transaction_id = $1 AND retry_count < max_retries AND status NOT IN ($5, $6, $7)
		RETURNING retry_count`
	var count int
	err := s.db.QueryRowContext(ctx, query, id, StatusRetry, reason, time.Now().UTC(),
		StatusSent, StatusDeadLetter, StatusFailed).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrRetriesExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("failed to mark retry: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkDeadLetter(ctx context.Context, id uuid.UUID, reason string, failedAt time.Time) error {
	query := `UPDATE transactions SET status = $2, failure_reason = $3, failed_at = $4, updated_at = $5
		WHERE transaction_id = $1 AND status NOT IN ($6, $7, $8)`
	res, err := s.db.ExecContext(ctx, query, id, StatusDeadLetter, reason, failedAt, time.Now().UTC(),
		StatusSent, StatusDeadLetter, StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark dead letter: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark dead letter: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyTerminal
	}

	s.logger.Warn("transaction dead lettered",
		zap.String("transaction_id", id.String()),
		zap.String("reason", reason))
	return nil
}

// DeadLetterWithLog rolls a row forward to DEAD_LETTER and appends a
// synthetic error log in one database transaction. Used by the dispatcher
// when the enqueue fails or the provider is not ready.
func (s *PostgresStore) DeadLetterWithLog(ctx context.Context, id uuid.UUID, reason string, failedAt time.Time, log *ErrorLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin dead letter tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE transactions SET status = $2, failure_reason = $3, failed_at = $4, updated_at = $5
		WHERE transaction_id = $1 AND status NOT IN ($6, $7, $8)`
	if _, err := tx.ExecContext(ctx, query, id, StatusDeadLetter, reason, failedAt, time.Now().UTC(),
		StatusSent, StatusDeadLetter, StatusFailed); err != nil {
		return fmt.Errorf("failed to dead letter transaction: %w", err)
	}

	prepareErrorLog(log)
	logQuery := `INSERT INTO error_logs (id, transaction_id, error_type, error_message, error_stack, error_code, retryable, provider_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, logQuery, log.ID, log.TransactionID, log.ErrorType, log.ErrorMessage,
		log.ErrorStack, log.ErrorCode, log.Retryable, log.ProviderResponse, log.CreatedAt); err != nil {
		return fmt.Errorf("failed to append synthetic error log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dead letter tx: %w", err)
	}

	s.logger.Warn("transaction dead lettered at submission",
		zap.String("transaction_id", id.String()),
		zap.String("reason", reason))
	return nil
}

// prepareErrorLog assigns identity and timestamp to logs built by callers
// that leave them zero.
func prepareErrorLog(log *ErrorLog) {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
}

func (s *PostgresStore) AppendErrorLog(ctx context.Context, log *ErrorLog) error {
	prepareErrorLog(log)
	query := `INSERT INTO error_logs (id, transaction_id, error_type, error_message, error_stack, error_code, retryable, provider_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query, log.ID, log.TransactionID, log.ErrorType, log.ErrorMessage,
		log.ErrorStack, log.ErrorCode, log.Retryable, log.ProviderResponse, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append error log: %w", err)
	}
	return nil
}

const errorLogColumns = `id, transaction_id, error_type, error_message, error_stack, error_code, retryable, provider_response, created_at`

func scanErrorLog(row interface{ Scan(...interface{}) error }) (*ErrorLog, error) {
	var e ErrorLog
	err := row.Scan(&e.ID, &e.TransactionID, &e.ErrorType, &e.ErrorMessage, &e.ErrorStack, &e.ErrorCode,
		&e.Retryable, &e.ProviderResponse, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) ListErrorLogs(ctx context.Context, transactionID uuid.UUID) ([]*ErrorLog, error) {
	query := `SELECT ` + errorLogColumns + ` FROM error_logs
		WHERE transaction_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}
	defer rows.Close()

	var logs []*ErrorLog
	for rows.Next() {
		e, err := scanErrorLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Transaction, error) {
	conds := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.TransactionID != "" {
		conds = append(conds, "transaction_id::text = "+arg(f.TransactionID))
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = "+arg(f.UserID))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(f.Status))
	}
	if f.Channel != "" {
		conds = append(conds, "channel = "+arg(f.Channel))
	}
	if f.FailureReason != "" {
		conds = append(conds, "failure_reason ILIKE "+arg("%"+f.FailureReason+"%"))
	}
	if f.StartDate != nil {
		conds = append(conds, "created_at >= "+arg(*f.StartDate))
	}
	if f.EndDate != nil {
		conds = append(conds, "created_at <= "+arg(*f.EndDate))
	}

	query := `SELECT ` + txnColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *PostgresStore) ListFailedAttempts(ctx context.Context, f FailedFilter) ([]*FailedAttempt, error) {
	conds := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ErrorType != "" {
		conds = append(conds, "e.error_type = "+arg(f.ErrorType))
	}
	if f.Retryable != nil {
		conds = append(conds, "e.retryable = "+arg(*f.Retryable))
	}
	if f.StartDate != nil {
		conds = append(conds, "e.created_at >= "+arg(*f.StartDate))
	}
	if f.EndDate != nil {
		conds = append(conds, "e.created_at <= "+arg(*f.EndDate))
	}

	query := `SELECT e.id, e.transaction_id, e.error_type, e.error_message, e.error_stack, e.error_code,
			e.retryable, e.provider_response, e.created_at, t.user_id, t.channel, t.status, t.recipient
		FROM error_logs e
		JOIN transactions t ON t.transaction_id = e.transaction_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY e.created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*FailedAttempt
	for rows.Next() {
		var a FailedAttempt
		err := rows.Scan(&a.ID, &a.TransactionID, &a.ErrorType, &a.ErrorMessage, &a.ErrorStack, &a.ErrorCode,
			&a.Retryable, &a.ProviderResponse, &a.CreatedAt, &a.UserID, &a.Channel, &a.Status, &a.Recipient)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failed attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// ReapStuck claims submissions that never made it onto a queue (crash
// between row creation and enqueue) and returns them for re-enqueue. The
// SKIP LOCKED claim keeps concurrent reapers from double-claiming, and the
// updated_at re-stamp keeps a row from being claimed twice in a row.
func (s *PostgresStore) ReapStuck(ctx context.Context, olderThan time.Time, limit int) ([]*Transaction, error) {
	query := `UPDATE transactions SET updated_at = now()
		WHERE transaction_id IN (
			SELECT transaction_id FROM transactions
			WHERE status IN ($1, $2) AND updated_at < $3
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + txnColumns

	rows, err := s.db.QueryContext(ctx, query, StatusPending, StatusQueued, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to reap stuck transactions: %w", err)
	}
	defer rows.Close()

	var txns []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reaped transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
