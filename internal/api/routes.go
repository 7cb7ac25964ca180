package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	fiberSwagger "github.com/swaggo/fiber-swagger"
	"go.uber.org/zap"

	_ "notify-gateway/docs"

	"notify-gateway/internal/config"
	"notify-gateway/internal/observability"
	"notify-gateway/internal/rate"
)

func SetupRoutes(
	app *fiber.App,
	logger *zap.Logger,
	metrics *observability.Metrics,
	handlers *Handlers,
	limiter *rate.Limiter,
	cfg *config.Config,
) {
	SetupMiddleware(app, logger, metrics, limiter, cfg.AdminAPIKeyHash)

	// probes (no auth, no rate limit)
	app.Get("/health", handlers.Health)
	app.Get("/ready", handlers.Ready)

	// Swagger UI served from the generated docs package
	app.Get("/swagger/*", fiberSwagger.WrapHandler)

	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// submission
	notif := app.Group("/notifications")
	notif.Post("/send", handlers.SendNotification)
	notif.Post("/send-bulk", handlers.SendBulkNotifications)

	// per-user preferences
	users := app.Group("/users")
	users.Get("/:userId/preferences", handlers.GetPreferences)
	users.Put("/:userId/preferences", handlers.UpdatePreferences)

	// admin reads (guarded by the admin key middleware when configured)
	admin := app.Group("/admin")
	admin.Get("/dashboard", handlers.Dashboard)
	admin.Get("/transactions", handlers.ListTransactions)
	admin.Get("/transactions/:transactionId", handlers.GetTransaction)
	admin.Get("/failed", handlers.ListFailed)
	admin.Get("/analytics/errors", handlers.ErrorAnalytics)
	admin.Get("/analytics/channels", handlers.ChannelAnalytics)
}
