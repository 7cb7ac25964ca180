package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"notify-gateway/internal/notifications"
	"notify-gateway/internal/queue"
)

// parseTime accepts RFC3339 or a plain date.
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Dashboard handles GET /admin/dashboard
//
//	@Summary	Delivery dashboard
//	@Tags		Admin
//	@Produce	json
//	@Param		userId	query		string	false	"Restrict statistics to one user"
//	@Success	200		{object}	map[string]interface{}
//	@Router		/admin/dashboard [get]
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	statistics, err := h.store.StatusCounts(c.Context(), c.Query("userId"))
	if err != nil {
		h.logger.Error("failed to count statuses", zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}

	queueStats := fiber.Map{}
	for _, name := range []string{queue.QueueRegular, queue.QueuePriority, queue.QueueDeadLetter} {
		stats, err := h.broker.Stats(c.Context(), name)
		if err != nil {
			h.logger.Warn("failed to read queue stats", zap.String("queue", name), zap.Error(err))
			continue
		}
		queueStats[name] = stats
	}

	return c.JSON(fiber.Map{
		"statistics": statistics,
		"queueStats": queueStats,
		"timestamp":  time.Now().UTC(),
	})
}

// ListTransactions handles GET /admin/transactions
//
//	@Summary	Search transactions
//	@Tags		Admin
//	@Produce	json
//	@Param		transactionId	query		string	false	"Exact transaction id"
//	@Param		userId			query		string	false	"Exact user id"
//	@Param		status			query		string	false	"Transaction status"
//	@Param		channel			query		string	false	"Delivery channel"
//	@Param		failureReason	query		string	false	"Case-insensitive substring of the failure reason"
//	@Param		startDate		query		string	false	"RFC3339 or YYYY-MM-DD"
//	@Param		endDate			query		string	false	"RFC3339 or YYYY-MM-DD"
//	@Param		limit			query		int		false	"Page size (default 100)"
//	@Param		offset			query		int		false	"Page offset"
//	@Success	200				{object}	map[string]interface{}
//	@Router		/admin/transactions [get]
func (h *Handlers) ListTransactions(c *fiber.Ctx) error {
	startDate, err := parseTime(c.Query("startDate"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid startDate"})
	}
	endDate, err := parseTime(c.Query("endDate"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid endDate"})
	}

	f := notifications.Filter{
		TransactionID: c.Query("transactionId"),
		UserID:        c.Query("userId"),
		Status:        notifications.Status(c.Query("status")),
		Channel:       notifications.Channel(c.Query("channel")),
		FailureReason: c.Query("failureReason"),
		StartDate:     startDate,
		EndDate:       endDate,
		Limit:         c.QueryInt("limit", 100),
		Offset:        c.QueryInt("offset", 0),
	}

	txns, err := h.store.List(c.Context(), f)
	if err != nil {
		h.logger.Error("failed to list transactions", zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}
	if txns == nil {
		txns = []*notifications.Transaction{}
	}

	return c.JSON(fiber.Map{"transactions": txns, "count": len(txns)})
}

// GetTransaction handles GET /admin/transactions/:transactionId
//
//	@Summary	Transaction detail with its error history
//	@Tags		Admin
//	@Produce	json
//	@Param		transactionId	path		string	true	"Transaction id"
//	@Success	200				{object}	map[string]interface{}
//	@Failure	404				{object}	ErrorResponse
//	@Router		/admin/transactions/{transactionId} [get]
func (h *Handlers) GetTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("transactionId"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid transaction id"})
	}

	txn, err := h.store.GetByID(c.Context(), id)
	if errors.Is(err, notifications.ErrNotFound) {
		return c.Status(404).JSON(ErrorResponse{Message: "transaction not found"})
	}
	if err != nil {
		h.logger.Error("failed to load transaction", zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}

	logs, err := h.store.ListErrorLogs(c.Context(), id)
	if err != nil {
		h.logger.Error("failed to load error logs", zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}
	if logs == nil {
		logs = []*notifications.ErrorLog{}
	}

	return c.JSON(fiber.Map{"transaction": txn, "errorLogs": logs})
}

// ListFailed handles GET /admin/failed
//
//	@Summary	Failed delivery attempts
//	@Tags		Admin
//	@Produce	json
//	@Param		errorType	query		string	false	"Error classification"
//	@Param		retryable	query		bool	false	"Only retryable or non-retryable attempts"
//	@Param		startDate	query		string	false	"RFC3339 or YYYY-MM-DD"
//	@Param		endDate		query		string	false	"RFC3339 or YYYY-MM-DD"
//	@Param		limit		query		int		false	"Page size (default 100)"
//	@Param		offset		query		int		false	"Page offset"
//	@Success	200			{object}	map[string]interface{}
//	@Router		/admin/failed [get]
func (h *Handlers) ListFailed(c *fiber.Ctx) error {
	startDate, err := parseTime(c.Query("startDate"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid startDate"})
	}
	endDate, err := parseTime(c.Query("endDate"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid endDate"})
	}

	var retryable *bool
	switch c.Query("retryable") {
	case "":
	case "true":
		v := true
		retryable = &v
	case "false":
		v := false
		retryable = &v
	default:
		return c.Status(400).JSON(ErrorResponse{Message: "retryable must be true or false"})
	}

	f := notifications.FailedFilter{
		ErrorType: c.Query("errorType"),
		Retryable: retryable,
		StartDate: startDate,
		EndDate:   endDate,
		Limit:     c.QueryInt("limit", 100),
		Offset:    c.QueryInt("offset", 0),
	}

	attempts, err := h.store.ListFailedAttempts(c.Context(), f)
	if err != nil {
		h.logger.Error("failed to list failed attempts", zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}
	if attempts == nil {
		attempts = []*notifications.FailedAttempt{}
	}

	return c.JSON(fiber.Map{"failed": attempts, "count": len(attempts)})
}

// ErrorAnalytics handles GET /admin/analytics/errors
//
//	@Summary	Failure breakdown by type and retryability
//	@Tags		Admin
//	@Produce	json
//	@Param		startDate	query		string	false	"RFC3339 or YYYY-MM-DD"
//	@Param		endDate		query		string	false	"RFC3339 or YYYY-MM-DD"
//	@Success	200			{object}	notifications.ErrorAnalytics
//	@Router		/admin/analytics/errors [get]
func (h *Handlers) ErrorAnalytics(c *fiber.Ctx) error {
	from, err := parseTime(c.Query("startDate"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid startDate"})
	}
	to, err := parseTime(c.Query("endDate"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid endDate"})
	}

	analytics, err := h.store.ErrorAnalytics(c.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to aggregate errors", zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}
	return c.JSON(analytics)
}

// ChannelAnalytics handles GET /admin/analytics/channels
//
//	@Summary	Per-channel delivery statistics
//	@Tags		Admin
//	@Produce	json
//	@Param		startDate	query		string	false	"RFC3339 or YYYY-MM-DD"
//	@Param		endDate		query		string	false	"RFC3339 or YYYY-MM-DD"
//	@Success	200			{object}	map[string]interface{}
//	@Router		/admin/analytics/channels [get]
func (h *Handlers) ChannelAnalytics(c *fiber.Ctx) error {
	from, err := parseTime(c.Query("startDate"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid startDate"})
	}
	to, err := parseTime(c.Query("endDate"))
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid endDate"})
	}

	stats, err := h.store.ChannelAnalytics(c.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to aggregate channels", zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}
	if stats == nil {
		stats = []*notifications.ChannelStats{}
	}
	return c.JSON(fiber.Map{"channels": stats})
}
