package notifications

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

type ErrorTypeCount struct {
	ErrorType string `json:"errorType"`
	Count     int64  `json:"count"`
}

type RetryableCount struct {
	Retryable bool  `json:"retryable"`
	Count     int64 `json:"count"`
}

// ErrorAnalytics is the failure breakdown served by the admin API.
type ErrorAnalytics struct {
	TotalErrors        int64            `json:"totalErrors"`
	ErrorTypeBreakdown []ErrorTypeCount `json:"errorTypeBreakdown"`
	RetryableBreakdown []RetryableCount `json:"retryableBreakdown"`
	RecentErrors       []*ErrorLog      `json:"recentErrors"`
}

// ChannelStats is the per-channel delivery breakdown. Rates are percentages
// rounded to two decimals; failureRate groups FAILED with DEAD_LETTER.
type ChannelStats struct {
	Channel     Channel `json:"channel"`
	Total       int64   `json:"total"`
	Sent        int64   `json:"sent"`
	Failed      int64   `json:"failed"`
	Pending     int64   `json:"pending"`
	Retry       int64   `json:"retry"`
	DeadLetter  int64   `json:"deadLetter"`
	SuccessRate float64 `json:"successRate"`
	FailureRate float64 `json:"failureRate"`
}

func (s *PostgresStore) StatusCounts(ctx context.Context, userID string) (map[Status]int64, error) {
	query := `SELECT status, COUNT(*) FROM transactions`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func timeRange(column string, from, to *time.Time, args *[]interface{}) string {
	conds := []string{}
	if from != nil {
		*args = append(*args, *from)
		conds = append(conds, fmt.Sprintf("%s >= $%d", column, len(*args)))
	}
	if to != nil {
		*args = append(*args, *to)
		conds = append(conds, fmt.Sprintf("%s <= $%d", column, len(*args)))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (s *PostgresStore) ErrorAnalytics(ctx context.Context, from, to *time.Time) (*ErrorAnalytics, error) {
	out := &ErrorAnalytics{
		ErrorTypeBreakdown: []ErrorTypeCount{},
		RetryableBreakdown: []RetryableCount{},
		RecentErrors:       []*ErrorLog{},
	}

	var args []interface{}
	where := timeRange("created_at", from, to, &args)

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM error_logs`+where, args...).Scan(&out.TotalErrors); err != nil {
		return nil, fmt.Errorf("failed to count errors: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT error_type, COUNT(*) FROM error_logs`+where+` GROUP BY error_type ORDER BY COUNT(*) DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to break down error types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c ErrorTypeCount
		if err := rows.Scan(&c.ErrorType, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan error type count: %w", err)
		}
		out.ErrorTypeBreakdown = append(out.ErrorTypeBreakdown, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	retryRows, err := s.db.QueryContext(ctx,
		`SELECT retryable, COUNT(*) FROM error_logs`+where+` GROUP BY retryable ORDER BY retryable DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to break down retryability: %w", err)
	}
	defer retryRows.Close()
	for retryRows.Next() {
		var c RetryableCount
		if err := retryRows.Scan(&c.Retryable, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan retryable count: %w", err)
		}
		out.RetryableBreakdown = append(out.RetryableBreakdown, c)
	}
	if err := retryRows.Err(); err != nil {
		return nil, err
	}

	recentRows, err := s.db.QueryContext(ctx,
		`SELECT `+errorLogColumns+` FROM error_logs`+where+` ORDER BY created_at DESC LIMIT 50`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent errors: %w", err)
	}
	defer recentRows.Close()
	for recentRows.Next() {
		e, err := scanErrorLog(recentRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recent error: %w", err)
		}
		out.RecentErrors = append(out.RecentErrors, e)
	}
	return out, recentRows.Err()
}

func (s *PostgresStore) ChannelAnalytics(ctx context.Context, from, to *time.Time) ([]*ChannelStats, error) {
	var args []interface{}
	where := timeRange("created_at", from, to, &args)

	query := `SELECT channel,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'SENT'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status IN ('PENDING', 'QUEUED', 'PROCESSING')),
			COUNT(*) FILTER (WHERE status = 'RETRY'),
			COUNT(*) FILTER (WHERE status = 'DEAD_LETTER')
		FROM transactions` + where + `
		GROUP BY channel ORDER BY channel`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate channels: %w", err)
	}
	defer rows.Close()

	var stats []*ChannelStats
	for rows.Next() {
		var c ChannelStats
		if err := rows.Scan(&c.Channel, &c.Total, &c.Sent, &c.Failed, &c.Pending, &c.Retry, &c.DeadLetter); err != nil {
			return nil, fmt.Errorf("failed to scan channel stats: %w", err)
		}
		if c.Total > 0 {
			c.SuccessRate = roundRate(float64(c.Sent) / float64(c.Total) * 100)
			c.FailureRate = roundRate(float64(c.Failed+c.DeadLetter) / float64(c.Total) * 100)
		}
		stats = append(stats, &c)
	}
	return stats, rows.Err()
}

func roundRate(v float64) float64 {
	return math.Round(v*100) / 100
}
