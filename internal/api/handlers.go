package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/ingestion"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
	"go.uber.org/zap"
)

const (
	version = "1.0.0"

	MessageProductNotFound = "Product not found"
	MessageInternalError   = "Internal server error"
	MessageInvalidEvent    = "Invalid event payload"

	defaultListLimit = 100
	maxListLimit     = 1000
)

type UploadSigner interface {
	SignedUploadURL(ctx context.Context, name string) (string, error)
}

type ProductQuerier interface {
	GetProduct(ctx context.Context, id string) (*domain.JoinedProduct, error)
	ListProducts(ctx context.Context, limit, offset int) ([]domain.JoinedProduct, error)
}

type FileIngester interface {
	HandleEvent(ctx context.Context, event ingestion.FileArrivalEvent) ingestion.Result
	ProcessFile(ctx context.Context, key string) ingestion.Result
}

type QueueInspector interface {
	Name() string
	Depth(ctx context.Context) (int64, error)
	DeadLetterDepth(ctx context.Context) (int64, error)
}

type CacheInvalidator interface {
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// HealthCheck é uma dependência verificada pelo /ready.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	imports   UploadSigner
	products  ProductQuerier
	ingestion FileIngester
	queue     QueueInspector
	cache     CacheInvalidator
	checks    map[string]HealthCheck
}

type Dependencies struct {
	Imports   UploadSigner
	Products  ProductQuerier
	Ingestion FileIngester
	Queue     QueueInspector
	Cache     CacheInvalidator
	Checks    map[string]HealthCheck
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		imports:   deps.Imports,
		products:  deps.Products,
		ingestion: deps.Ingestion,
		queue:     deps.Queue,
		cache:     deps.Cache,
		checks:    deps.Checks,
	}
}

// ImportProductsFile devolve, como texto puro, a URL assinada para upload do CSV.
func (h *Handler) ImportProductsFile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	name := c.Query("name")

	url, err := h.imports.SignedUploadURL(ctx, name)
	if err != nil {
		return h.fail(c, err, "erro ao gerar URL de upload", zap.String("name", name))
	}

	logger.WithContext(ctx).Info("URL de upload gerada", zap.String("name", name))

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(url)
}

func (h *Handler) ListProducts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	offset := c.QueryInt("offset", 0)

	if limit <= 0 || limit > maxListLimit || offset < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(MessageResponse{
			Message:   "limit deve estar entre 1 e 1000 e offset não pode ser negativo",
			RequestID: getRequestID(c),
		})
	}

	products, err := h.products.ListProducts(c.UserContext(), limit, offset)
	if err != nil {
		return h.fail(c, err, "erro ao listar produtos")
	}
	if products == nil {
		products = []domain.JoinedProduct{}
	}

	return c.JSON(ProductListResponse{
		Products: products,
		Count:    len(products),
		Limit:    limit,
		Offset:   offset,
	})
}

func (h *Handler) GetProduct(c *fiber.Ctx) error {
	id := c.Params("productId")

	product, err := h.products.GetProduct(c.UserContext(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(MessageResponse{
			Message:   MessageProductNotFound,
			RequestID: getRequestID(c),
		})
	}
	if err != nil {
		return h.fail(c, err, "erro ao buscar produto", zap.String("product_id", id))
	}

	return c.JSON(product)
}

// FileArrived recebe a notificação de evento do bucket (S3 ou MinIO).
func (h *Handler) FileArrived(c *fiber.Ctx) error {
	var event ingestion.FileArrivalEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(MessageResponse{
			Message:   MessageInvalidEvent,
			RequestID: getRequestID(c),
		})
	}

	// o MinIO manda um evento de teste sem registros ao configurar o webhook
	if len(event.Records) == 0 {
		return c.JSON(MessageResponse{Message: ingestion.MessageCompleted})
	}

	result := h.ingestion.HandleEvent(c.UserContext(), event)
	return c.Status(result.StatusCode).JSON(result)
}

// ProcessFile reprocessa manualmente uma chave do bucket padrão.
func (h *Handler) ProcessFile(c *fiber.Ctx) error {
	var req ProcessFileRequest
	if err := c.BodyParser(&req); err != nil || req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(MessageResponse{
			Message:   "key é obrigatório",
			RequestID: getRequestID(c),
		})
	}

	result := h.ingestion.ProcessFile(c.UserContext(), req.Key)
	return c.Status(result.StatusCode).JSON(result)
}

func (h *Handler) QueueStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	depth, err := h.queue.Depth(ctx)
	if err != nil {
		return h.fail(c, err, "erro ao consultar fila")
	}
	dead, err := h.queue.DeadLetterDepth(ctx)
	if err != nil {
		return h.fail(c, err, "erro ao consultar dead-letter")
	}

	return c.JSON(QueueStatsResponse{
		Queue:      h.queue.Name(),
		Depth:      depth,
		DeadLetter: dead,
	})
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	pattern := c.Params("pattern", "*")

	// chave exata dispensa o SCAN
	invalidate := h.cache.DeletePattern
	if !strings.ContainsAny(pattern, "*?[") {
		invalidate = h.cache.Delete
	}

	if err := invalidate(c.UserContext(), pattern); err != nil {
		return h.fail(c, err, "erro ao invalidar cache", zap.String("pattern", pattern))
	}

	return c.JSON(MessageResponse{Message: "cache invalidado para padrão: " + pattern})
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth, len(h.checks))
	status := "ready"

	for name, check := range h.checks {
		start := time.Now()
		if err := check(ctx); err != nil {
			services[name] = ServiceHealth{Status: "unhealthy", Error: err.Error()}
			status = "not_ready"
			continue
		}
		services[name] = ServiceHealth{Status: "healthy", Latency: time.Since(start).String()}
	}

	response := HealthResponse{
		Status:    status,
		Version:   version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

// fail responde 400 com a mensagem do erro para entrada inválida e 500
// genérico para o resto.
func (h *Handler) fail(c *fiber.Ctx, err error, msg string, fields ...zap.Field) error {
	code := domain.StatusCode(err)
	log := logger.WithContext(c.UserContext())

	if code == fiber.StatusBadRequest {
		log.Warn(msg, append(fields, zap.Error(err))...)

		message := err.Error()
		var de *domain.Error
		if errors.As(err, &de) {
			message = de.Message()
		}
		return c.Status(code).JSON(MessageResponse{Message: message, RequestID: getRequestID(c)})
	}

	log.Error(msg, append(fields, zap.Error(err))...)
	return c.Status(fiber.StatusInternalServerError).JSON(MessageResponse{
		Message:   MessageInternalError,
		RequestID: getRequestID(c),
	})
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}
