package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/splitpay/backend/internal/config"
	"github.com/splitpay/backend/internal/http/handlers"
	"github.com/splitpay/backend/internal/middleware"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	healthHandler *handlers.HealthHandler,
	escrowHandler *handlers.EscrowHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Health)

	// Telegram webhook stays outside the rate limit, the bot is its
	// own client and retries on non-200.
	app.Post("/webhook/telegram", webhookHandler.Telegram)

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Meta (enum discovery)
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/currencies", metaHandler.GetCurrencies)
	api.Get("/meta/chains", metaHandler.GetChains)

	// Escrows
	api.Post("/escrows", escrowHandler.Create)
	api.Get("/escrows", escrowHandler.List)
	api.Get("/escrows/:id", escrowHandler.Get)
	api.Post("/escrows/:id/confirm", escrowHandler.Confirm)
	api.Post("/escrows/:id/release", escrowHandler.Release)
	api.Post("/escrows/:id/cancel", escrowHandler.Cancel)
	api.Get("/escrows/:id/events", escrowHandler.Events)

	// P2P shortcut (single recipient at 100%)
	api.Post("/p2p", escrowHandler.CreateP2P)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
