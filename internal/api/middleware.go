package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"notify-gateway/internal/observability"
	"notify-gateway/internal/rate"
)

func SetupMiddleware(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, limiter *rate.Limiter, adminKeyHash string) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Admin-Key",
	}))

	// request log + metrics
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Info("http_request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		if metrics != nil {
			code := fmt.Sprintf("%d", status)
			metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), c.Path(), code).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(c.Method(), c.Path(), code).Observe(duration.Seconds())
		}

		return err
	})

	// submission rate limit, keyed by caller IP
	if limiter != nil {
		app.Use("/notifications", func(c *fiber.Ctx) error {
			allowed, retryAfter, err := limiter.Allow(c.Context(), c.IP())
			if err != nil {
				// the limiter is advisory; Redis trouble must not block submissions
				logger.Warn("rate limiter unavailable", zap.Error(err))
				return c.Next()
			}
			if !allowed {
				wait := int(retryAfter.Seconds()) + 1
				c.Set("Retry-After", fmt.Sprintf("%d", wait))
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"success":           false,
					"message":           "rate limit exceeded",
					"retryAfterSeconds": wait,
				})
			}
			return c.Next()
		})
	}

	// admin endpoints compare X-Admin-Key against a bcrypt hash held in
	// config; an empty hash leaves them open (local development)
	if adminKeyHash != "" {
		app.Use("/admin", func(c *fiber.Ctx) error {
			key := c.Get("X-Admin-Key")
			if key == "" {
				return c.Status(401).JSON(ErrorResponse{Message: "admin key required"})
			}
			if err := bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(key)); err != nil {
				return c.Status(401).JSON(ErrorResponse{Message: "invalid admin key"})
			}
			return c.Next()
		})
	}
}
