package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/api"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/config"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/ingestion"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/queue"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/service"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/storage/cache"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/storage/objectstore"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/storage/postgres"
	pkglogger "github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
)

func main() {
	cfg := config.Load()

	if err := pkglogger.Init(cfg.LogLevel, cfg.Environment == "development"); err != nil {
		log.Fatal("Erro ao inicializar logger:", err)
	}
	defer pkglogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg)
	if err != nil {
		pkglogger.Fatal("erro ao conectar PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		pkglogger.Fatal("erro ao aplicar schema", zap.Error(err))
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		pkglogger.Fatal("erro ao conectar Redis", zap.Error(err))
	}
	defer redisClient.Close()

	store, err := objectstore.NewS3Store(ctx, cfg)
	if err != nil {
		pkglogger.Fatal("erro ao configurar S3", zap.Error(err))
	}

	redisCache := cache.NewRedisCache(redisClient, cfg.CacheTTL)
	records := queue.NewRedisQueue(redisClient, cfg.QueueName, cfg.QueueMaxReceiveCount)

	producer := ingestion.NewProducer(store, records, ingestion.ProducerConfig{
		UploadedPrefix: cfg.UploadedPrefix,
		ParsedPrefix:   cfg.ParsedPrefix,
		Delimiter:      cfg.Delimiter(),
	})

	handler := api.NewHandler(api.Dependencies{
		Imports:   service.NewImportService(store, cfg.S3Bucket, cfg.UploadedPrefix, cfg.SignedURLTTL),
		Products:  service.NewProductService(postgres.NewCatalogStore(db.Pool()), redisCache),
		Ingestion: service.NewIngestionService(producer, cfg.S3Bucket),
		Queue:     records,
		Cache:     redisCache,
		Checks: map[string]api.HealthCheck{
			"database": db.HealthCheck,
			"redis":    redisCache.HealthCheck,
			"s3": func(ctx context.Context) error {
				return store.HealthCheck(ctx, cfg.S3Bucket)
			},
		},
	})

	app := fiber.New(fiber.Config{
		ServerHeader: "Catalog-Import",
		AppName:      "Catalog Import Service v1.0.0",
		ReadTimeout:  cfg.APIReadTimeout,
		WriteTimeout: cfg.APIWriteTimeout,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    4 * 1024 * 1024,
	})
	app.Use(recover.New())

	api.SetupRoutes(app, handler, api.RouteConfig{
		RateLimit:      100,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pkglogger.Info("servidor iniciado", zap.String("addr", addr))
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		pkglogger.Info("encerrando servidor")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		pkglogger.Error("servidor encerrado com erro", zap.Error(err))
		os.Exit(1)
	}
}
