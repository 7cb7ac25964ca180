// Package api is the HTTP surface: submission, preference management,
// and the admin read endpoints, served by fiber.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"notify-gateway/internal/db"
	"notify-gateway/internal/dispatch"
	"notify-gateway/internal/notifications"
	"notify-gateway/internal/preferences"
	"notify-gateway/internal/queue"
)

// maxBulkSize caps a single bulk submission.
const maxBulkSize = 1000

// Submitter accepts notifications for asynchronous delivery.
type Submitter interface {
	Submit(ctx context.Context, req *notifications.CreateRequest) (*dispatch.Receipt, error)
	SubmitBulk(ctx context.Context, reqs []*notifications.CreateRequest) *dispatch.BulkResult
}

type Handlers struct {
	logger     *zap.Logger
	dispatcher Submitter
	store      notifications.Store
	prefs      preferences.Store
	broker     queue.Broker
	pg         *db.PostgresDB
	redis      *redis.Client
}

func NewHandlers(
	logger *zap.Logger,
	dispatcher Submitter,
	store notifications.Store,
	prefs preferences.Store,
	broker queue.Broker,
	pg *db.PostgresDB,
	redisClient *redis.Client,
) *Handlers {
	return &Handlers{
		logger:     logger,
		dispatcher: dispatcher,
		store:      store,
		prefs:      prefs,
		broker:     broker,
		pg:         pg,
		redis:      redisClient,
	}
}

type SendResponse struct {
	Success       bool                  `json:"success"`
	TransactionID string                `json:"transactionId"`
	Message       string                `json:"message"`
	Channel       notifications.Channel `json:"channel"`
	Priority      int                   `json:"priority"`
}

type BulkRequest struct {
	Notifications []*notifications.CreateRequest `json:"notifications"`
}

type BulkResponse struct {
	Success bool                `json:"success"`
	Total   int                 `json:"total"`
	Queued  int                 `json:"queued"`
	Failed  int                 `json:"failed"`
	Results []dispatch.BulkItem `json:"results"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendNotification handles POST /notifications/send
//
//	@Summary		Submit a notification
//	@Description	Validates, persists and queues a notification for asynchronous delivery
//	@Tags			Notifications
//	@Accept			json
//	@Produce		json
//	@Param			request	body		notifications.CreateRequest	true	"Notification"
//	@Success		202		{object}	SendResponse	"Queued for delivery"
//	@Failure		400		{object}	ErrorResponse	"Invalid request"
//	@Failure		422		{object}	SendResponse	"No provider for the resolved channel"
//	@Failure		429		{object}	ErrorResponse	"Rate limited"
//	@Failure		500		{object}	ErrorResponse	"Internal error"
//	@Router			/notifications/send [post]
func (h *Handlers) SendNotification(c *fiber.Ctx) error {
	var req notifications.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid request body"})
	}

	receipt, err := h.dispatcher.Submit(c.Context(), &req)
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		return c.Status(400).JSON(ErrorResponse{Message: err.Error()})
	case errors.Is(err, dispatch.ErrProviderNotReady):
		// the transaction exists and is already dead-lettered; the caller
		// gets its id so the outcome stays traceable
		return c.Status(422).JSON(SendResponse{
			Success:       false,
			TransactionID: receipt.TransactionID.String(),
			Message:       "no provider configured for channel " + string(receipt.Channel),
			Channel:       receipt.Channel,
			Priority:      receipt.Priority,
		})
	case err != nil:
		h.logger.Error("failed to submit notification", zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}

	return c.Status(202).JSON(SendResponse{
		Success:       true,
		TransactionID: receipt.TransactionID.String(),
		Message:       "notification queued for processing",
		Channel:       receipt.Channel,
		Priority:      receipt.Priority,
	})
}

// SendBulkNotifications handles POST /notifications/send-bulk
//
//	@Summary		Submit a batch of notifications
//	@Description	Submits up to 1000 notifications; per-item failures are reported in results without failing the batch
//	@Tags			Notifications
//	@Accept			json
//	@Produce		json
//	@Param			request	body		BulkRequest	true	"Batch"
//	@Success		202		{object}	BulkResponse	"Batch processed"
//	@Failure		400		{object}	ErrorResponse	"Empty or oversized batch"
//	@Router			/notifications/send-bulk [post]
func (h *Handlers) SendBulkNotifications(c *fiber.Ctx) error {
	var req BulkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid request body"})
	}
	if len(req.Notifications) == 0 {
		return c.Status(400).JSON(ErrorResponse{Message: "notifications list is empty"})
	}
	if len(req.Notifications) > maxBulkSize {
		return c.Status(400).JSON(ErrorResponse{Message: "too many notifications in one batch (max 1000)"})
	}

	result := h.dispatcher.SubmitBulk(c.Context(), req.Notifications)

	return c.Status(202).JSON(BulkResponse{
		Success: true,
		Total:   result.Total,
		Queued:  result.Queued,
		Failed:  result.Failed,
		Results: result.Results,
	})
}

// GetPreferences handles GET /users/:userId/preferences
//
//	@Summary	Get notification preferences
//	@Tags		Preferences
//	@Produce	json
//	@Param		userId	path		string	true	"User ID"
//	@Success	200		{object}	preferences.Preferences
//	@Router		/users/{userId}/preferences [get]
func (h *Handlers) GetPreferences(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(ErrorResponse{Message: "userId is required"})
	}

	prefs, err := h.prefs.Get(c.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load preferences", zap.String("user_id", userID), zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}
	return c.JSON(prefs)
}

// UpdatePreferences handles PUT /users/:userId/preferences
//
//	@Summary		Update notification preferences
//	@Description	Partial update; omitted fields keep their current values
//	@Tags			Preferences
//	@Accept			json
//	@Produce		json
//	@Param			userId	path		string						true	"User ID"
//	@Param			request	body		preferences.UpdateRequest	true	"Fields to change"
//	@Success		200		{object}	preferences.Preferences
//	@Failure		400		{object}	ErrorResponse	"Priority outside 1..4"
//	@Router			/users/{userId}/preferences [put]
func (h *Handlers) UpdatePreferences(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(400).JSON(ErrorResponse{Message: "userId is required"})
	}

	var req preferences.UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(400).JSON(ErrorResponse{Message: err.Error()})
	}

	prefs, err := h.prefs.Update(c.Context(), userID, &req)
	if err != nil {
		h.logger.Error("failed to update preferences", zap.String("user_id", userID), zap.Error(err))
		return c.Status(500).JSON(ErrorResponse{Message: "internal error"})
	}
	return c.JSON(prefs)
}

// Health handles GET /health
//
//	@Summary	Liveness check
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/health [get]
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now().Unix()})
}

/// Ready handles GET /ready: the service is ready once Postgres and Redis
// answer.
func (h *Handlers) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	if h.pg != nil {
		if err := h.pg.PingContext(ctx); err != nil {
			return c.Status(503).JSON(fiber.Map{"status": "not ready"})
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			return c.Status(503).JSON(fiber.Map{"status": "not ready"})
		}
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
