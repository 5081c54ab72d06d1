package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/catalog"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/config"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/ingestion"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/notify"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/queue"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/service"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/storage/cache"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/storage/objectstore"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/storage/postgres"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/worker"
	pkglogger "github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "catalog-import",
		Short: "Catalog import CLI",
		Long: `CLI do pipeline de importação de catálogo.
Consome a fila de registros, processa arquivos do bucket e faz manutenção.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			return pkglogger.Init(cfg.LogLevel, cfg.Environment == "development")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			pkglogger.Close()
		},
	}

	// Comando consume
	var consumeCmd = &cobra.Command{
		Use:   "consume",
		Short: "Consome a fila de registros e grava produtos",
		Long: `Sobe o pool de workers: cada worker recebe um lote da fila, grava
produto e estoque de cada registro e publica uma notificação por lote.
Lotes com erro voltam para a fila; depois de QUEUE_MAX_RECEIVE_COUNT
entregas a mensagem vai para a dead-letter.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, _ := cmd.Flags().GetInt("workers")
			return consume(cmd.Context(), workers)
		},
	}

	consumeCmd.Flags().IntP("workers", "w", 0, "Número de workers (padrão: WORKERS)")

	// Comando process
	var processCmd = &cobra.Command{
		Use:   "process [keys...]",
		Short: "Processa arquivos CSV já enviados ao bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return processFiles(cmd.Context(), args)
		},
	}

	// Comando upload
	var uploadCmd = &cobra.Command{
		Use:   "upload [file]",
		Short: "Envia um CSV local para o prefixo de upload do bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			return uploadFile(cmd.Context(), args[0], name)
		},
	}

	uploadCmd.Flags().StringP("name", "n", "", "Nome do objeto (padrão: nome do arquivo)")

	// Comando seed
	var seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Popula o catálogo com produtos de exemplo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seed(cmd.Context())
		},
	}

	// Comando subscribe
	var subscribeCmd = &cobra.Command{
		Use:   "subscribe",
		Short: "Mostra as notificações de produtos criados",
		RunE: func(cmd *cobra.Command, args []string) error {
			return subscribe(cmd.Context())
		},
	}

	// Comando migrate
	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Cria as tabelas products e stocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context())
		},
	}

	// Comando health
	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Verifica saúde do sistema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth(cmd.Context())
		},
	}

	rootCmd.AddCommand(consumeCmd, processCmd, uploadCmd, seedCmd, subscribeCmd, migrateCmd, healthCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// consume hospeda o consumer de lotes e, se habilitado, o /metrics.
func consume(ctx context.Context, workers int) error {
	cfg := config.Load()
	if workers > 0 {
		cfg.Workers = workers
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	records := queue.NewRedisQueue(redisClient, cfg.QueueName, cfg.QueueMaxReceiveCount).
		WithConsumer(cfg.ConsumerID())

	// lotes que este consumidor deixou pela metade numa execução anterior
	recovered, err := records.RecoverInFlight(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		pkglogger.Warn("mensagens em processamento devolvidas à fila", zap.Int("count", recovered))
	}

	consumer := catalog.NewConsumer(
		postgres.NewCatalogStore(db.Pool()),
		notify.NewRedisPublisher(redisClient, cfg.NotifyChannel),
		catalog.ConsumerConfig{PriceAttribute: catalog.PriceAttributeMode(cfg.NotifyPriceAttribute)},
	)

	pool := worker.NewPool(records, consumer, worker.Config{
		Workers:     cfg.Workers,
		BatchSize:   cfg.QueueBatchSize,
		PollTimeout: cfg.QueuePollTimeout,
	})

	pkglogger.Info("consumindo fila",
		zap.String("queue", records.Name()),
		zap.String("processing_list", records.ProcessingList()),
		zap.Int("workers", cfg.Workers),
		zap.Int("batch_size", cfg.QueueBatchSize))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pool.Run(gctx)
	})

	if cfg.MetricsEnabled {
		metricsApp := fiber.New(fiber.Config{DisableStartupMessage: true})
		metricsApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

		g.Go(func() error {
			return metricsApp.Listen(":" + cfg.MetricsPort)
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricsApp.Shutdown()
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	pkglogger.Info("consumer encerrado")
	return nil
}

func newProducer(ctx context.Context, cfg *config.Config) (*ingestion.Producer, *redis.Client, error) {
	store, err := objectstore.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	records := queue.NewRedisQueue(redisClient, cfg.QueueName, cfg.QueueMaxReceiveCount)

	producer := ingestion.NewProducer(store, records, ingestion.ProducerConfig{
		UploadedPrefix: cfg.UploadedPrefix,
		ParsedPrefix:   cfg.ParsedPrefix,
		Delimiter:      cfg.Delimiter(),
	})
	return producer, redisClient, nil
}

func processFiles(ctx context.Context, keys []string) error {
	cfg := config.Load()

	producer, redisClient, err := newProducer(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	ingestionService := service.NewIngestionService(producer, cfg.S3Bucket)

	fmt.Printf("📥 Processando %d arquivo(s) de s3://%s...\n\n", len(keys), cfg.S3Bucket)

	failed := 0
	for _, key := range keys {
		result := ingestionService.ProcessFile(ctx, key)
		if result.StatusCode != http.StatusOK {
			failed++
			fmt.Printf("❌ %s: %v\n", key, result.Err)
			continue
		}

		fmt.Printf("✅ %s: %d linhas publicadas, %d descartadas\n",
			key, result.RowsPublished, result.RowsDropped)
	}

	if failed > 0 {
		return fmt.Errorf("%d arquivo(s) falharam", failed)
	}
	return nil
}

func uploadFile(ctx context.Context, path, name string) error {
	cfg := config.Load()

	if name == "" {
		name = filepath.Base(path)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return service.ErrOnlyCSV
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("erro ao abrir %s: %w", path, err)
	}
	defer file.Close()

	store, err := objectstore.NewS3Store(ctx, cfg)
	if err != nil {
		return err
	}

	key := cfg.UploadedPrefix + "/" + name
	if err := store.Put(ctx, cfg.S3Bucket, key, file); err != nil {
		return err
	}

	fmt.Printf("✅ Enviado para s3://%s/%s\n", cfg.S3Bucket, key)
	return nil
}

var sampleProducts = []domain.Product{
	{Title: "iPhone 13", Description: "Latest iPhone model with A15 Bionic chip", Price: decimal.NewFromInt(999)},
	{Title: "MacBook Pro", Description: "Professional laptop with M1 chip", Price: decimal.NewFromInt(1299)},
	{Title: "iPad Air", Description: "Lightweight tablet for creativity", Price: decimal.NewFromInt(599)},
}

func seed(ctx context.Context) error {
	cfg := config.Load()

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	store := postgres.NewCatalogStore(db.Pool())
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, product := range sampleProducts {
		product.ID = uuid.New().String()
		stock := domain.Stock{ProductID: product.ID, Count: int64(rng.Intn(100) + 1)}

		if err := store.PutProduct(ctx, product); err != nil {
			return err
		}
		if err := store.PutStock(ctx, stock); err != nil {
			return err
		}

		fmt.Printf("✅ %-12s %s (estoque %d)\n", product.Title, product.ID, stock.Count)
	}

	return nil
}

func subscribe(ctx context.Context) error {
	cfg := config.Load()

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	publisher := notify.NewRedisPublisher(redisClient, cfg.NotifyChannel)
	fmt.Printf("📡 Escutando %s (Ctrl+C para sair)\n\n", publisher.Channel())

	err = publisher.Subscribe(ctx, func(n notify.Notification) {
		out, _ := json.MarshalIndent(n, "", "  ")
		fmt.Println(string(out))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func migrate(ctx context.Context) error {
	cfg := config.Load()

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	fmt.Println("✅ Tabelas criadas")
	return nil
}

// checkHealth verifica a saúde do sistema
func checkHealth(ctx context.Context) error {
	cfg := config.Load()

	fmt.Println("🏥 Verificando saúde do sistema...")

	fmt.Print("PostgreSQL: ")
	db, err := postgres.NewDB(cfg)
	if err != nil {
		fmt.Printf("❌ Erro: %v\n", err)
	} else {
		defer db.Close()
		printCheck(db.HealthCheck(ctx))
	}

	fmt.Print("Redis: ")
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		fmt.Printf("❌ Erro: %v\n", err)
	} else {
		defer redisClient.Close()

		records := queue.NewRedisQueue(redisClient, cfg.QueueName, cfg.QueueMaxReceiveCount)
		printCheck(records.HealthCheck(ctx))

		if depth, err := records.Depth(ctx); err == nil {
			dead, _ := records.DeadLetterDepth(ctx)
			fmt.Printf("Fila %s: %d pendentes, %d na dead-letter\n", records.Name(), depth, dead)
		}
	}

	fmt.Print("S3: ")
	store, err := objectstore.NewS3Store(ctx, cfg)
	if err != nil {
		fmt.Printf("❌ Erro: %v\n", err)
	} else {
		printCheck(store.HealthCheck(ctx, cfg.S3Bucket))
	}

	fmt.Println("\n✅ Verificação concluída!")
	return nil
}

func printCheck(err error) {
	if err != nil {
		fmt.Printf("❌ Erro: %v\n", err)
		return
	}
	fmt.Println("✅ OK")
}
