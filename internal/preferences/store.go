package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"notify-gateway/internal/db"
	"notify-gateway/internal/notifications"
)

var ErrNotFound = errors.New("preferences not found")

type Store interface {
	// Get returns the user's preferences, creating the default row on
	// first read.
	Get(ctx context.Context, userID string) (*Preferences, error)
	// Update merges the non-nil fields of req into the stored row,
	// creating it first if the user has never been seen.
	Update(ctx context.Context, userID string, req *UpdateRequest) (*Preferences, error)
	// PreferredChannels returns the enabled channels in canonical order.
	PreferredChannels(ctx context.Context, userID string) ([]notifications.Channel, error)
	// ChannelPriority returns the stored priority for the channel.
	ChannelPriority(ctx context.Context, userID string, ch notifications.Channel) (int, error)
}

type PostgresStore struct {
	db     *db.PostgresDB
	logger *zap.Logger
}

func NewPostgresStore(database *db.PostgresDB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: database, logger: logger}
}

const prefColumns = `user_id, email_enabled, sms_enabled, whatsapp_enabled, push_enabled,
	email_priority, sms_priority, whatsapp_priority, push_priority, created_at, updated_at`

func scanPreferences(row interface{ Scan(...interface{}) error }) (*Preferences, error) {
	var p Preferences
	err := row.Scan(
		&p.UserID, &p.EmailEnabled, &p.SMSEnabled, &p.WhatsAppEnabled, &p.PushEnabled,
		&p.EmailPriority, &p.SMSPriority, &p.WhatsAppPriority, &p.PushPriority,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Preferences, error) {
	p, err := s.fetch(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := s.insertDefaults(ctx, userID); err != nil {
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create default preferences: %w", err)
		}
		// lost the creation race; the winner's row serves the read
	}
	return s.fetch(ctx, userID)
}

func (s *PostgresStore) fetch(ctx context.Context, userID string) (*Preferences, error) {
	query := `SELECT ` + prefColumns + ` FROM preferences WHERE user_id = $1`
	p, err := scanPreferences(s.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) insertDefaults(ctx context.Context, userID string) error {
	d := Defaults(userID)
	query := `
		INSERT INTO preferences (
			user_id, email_enabled, sms_enabled, whatsapp_enabled, push_enabled,
			email_priority, sms_priority, whatsapp_priority, push_priority
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		d.UserID, d.EmailEnabled, d.SMSEnabled, d.WhatsAppEnabled, d.PushEnabled,
		d.EmailPriority, d.SMSPriority, d.WhatsAppPriority, d.PushPriority,
	)
	if err == nil {
		s.logger.Debug("created default preferences", zap.String("user_id", userID))
	}
	return err
}

func (s *PostgresStore) Update(ctx context.Context, userID string, req *UpdateRequest) (*Preferences, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	d := Defaults(userID)
	query := `
		INSERT INTO preferences (
			user_id, email_enabled, sms_enabled, whatsapp_enabled, push_enabled,
			email_priority, sms_priority, whatsapp_priority, push_priority
		) VALUES (
			$1,
			COALESCE($2, $10), COALESCE($3, $11), COALESCE($4, $12), COALESCE($5, $13),
			COALESCE($6, $14), COALESCE($7, $15), COALESCE($8, $16), COALESCE($9, $17)
		)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = COALESCE($2, preferences.email_enabled),
			sms_enabled = COALESCE($3, preferences.sms_enabled),
			whatsapp_enabled = COALESCE($4, preferences.whatsapp_enabled),
			push_enabled = COALESCE($5, preferences.push_enabled),
			email_priority = COALESCE($6, preferences.email_priority),
			sms_priority = COALESCE($7, preferences.sms_priority),
			whatsapp_priority = COALESCE($8, preferences.whatsapp_priority),
			push_priority = COALESCE($9, preferences.push_priority),
			updated_at = now()
		RETURNING ` + prefColumns

	p, err := scanPreferences(s.db.QueryRowContext(ctx, query,
		userID,
		req.EmailEnabled, req.SMSEnabled, req.WhatsAppEnabled, req.PushEnabled,
		req.EmailPriority, req.SMSPriority, req.WhatsAppPriority, req.PushPriority,
		d.EmailEnabled, d.SMSEnabled, d.WhatsAppEnabled, d.PushEnabled,
		d.EmailPriority, d.SMSPriority, d.WhatsAppPriority, d.PushPriority,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	s.logger.Info("preferences updated", zap.String("user_id", userID))
	return p, nil
}

func (s *PostgresStore) PreferredChannels(ctx context.Context, userID string) ([]notifications.Channel, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.EnabledChannels(), nil
}

func (s *PostgresStore) ChannelPriority(ctx context.Context, userID string, ch notifications.Channel) (int, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.PriorityFor(ch), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
