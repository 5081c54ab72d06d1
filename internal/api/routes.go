package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteConfig struct {
	RateLimit      int
	MetricsEnabled bool
}

func SetupRoutes(app *fiber.App, handler *Handler, cfg RouteConfig) {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}

	app.Use(CORS())
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Health checks (sem rate limiting)
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)

	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	observe := PrometheusMiddleware()
	limit := RateLimiter(cfg.RateLimit)

	// Webhook do bucket: chamado pelo próprio object store
	app.Post("/events/s3", observe, handler.FileArrived)

	app.Get("/import", limit, observe, handler.ImportProductsFile)
	app.Get("/products", limit, observe, handler.ListProducts)
	app.Get("/products/:productId", limit, observe, handler.GetProduct)

	// Autenticação fica no gateway
	admin := app.Group("/admin", observe)
	admin.Post("/process", handler.ProcessFile)
	admin.Get("/queue", handler.QueueStats)
	admin.Delete("/cache/:pattern", handler.InvalidateCache)
}
