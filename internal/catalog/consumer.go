package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/notify"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/queue"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	NotificationSubject = "Products Created"
	MessageCreated      = "Products created successfully"
	PriceAttributeName  = "price"
)

type PriceAttributeMode string

const (
	// PriceFromFirst repete o preço do primeiro registro do lote.
	PriceFromFirst PriceAttributeMode = "first"
	// PriceTotal soma os preços de todos os registros do lote.
	PriceTotal PriceAttributeMode = "total"
)

type CatalogWriter interface {
	PutProduct(ctx context.Context, product domain.Product) error
	PutStock(ctx context.Context, stock domain.Stock) error
}

type Notifier interface {
	Publish(ctx context.Context, n notify.Notification) error
}

type ConsumerConfig struct {
	PriceAttribute PriceAttributeMode
	NewID          func() string
}

type Consumer struct {
	writer   CatalogWriter
	notifier Notifier
	cfg      ConsumerConfig
}

func NewConsumer(writer CatalogWriter, notifier Notifier, cfg ConsumerConfig) *Consumer {
	if cfg.PriceAttribute != PriceTotal {
		cfg.PriceAttribute = PriceFromFirst
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}

	return &Consumer{
		writer:   writer,
		notifier: notifier,
		cfg:      cfg,
	}
}

type Result struct {
	StatusCode int                    `json:"statusCode"`
	Message    string                 `json:"message"`
	Created    int                    `json:"created"`
	Products   []domain.JoinedProduct `json:"-"`
}

type notificationBody struct {
	Message string                 `json:"message"`
	Records []domain.JoinedProduct `json:"records"`
}

// HandleBatch grava produto e estoque de cada mensagem, em sequência, e publica
// uma notificação para o lote. Qualquer erro aborta o lote inteiro sem desfazer
// o que já foi gravado; a fila reentrega o lote.
func (c *Consumer) HandleBatch(ctx context.Context, messages []queue.Message) (Result, error) {
	log := logger.WithContext(ctx).With(zap.Int("batch_size", len(messages)))

	records := make([]domain.CatalogRecord, 0, len(messages))
	for _, msg := range messages {
		record, err := decodeRecord(msg.Body)
		if err != nil {
			metrics.RecordBatch(string(domain.DecodeError))
			return Result{}, domain.NewError(domain.DecodeError, fmt.Sprintf("mensagem %s", msg.ID), err)
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		log.Debug("lote vazio, nada a gravar")
		metrics.RecordBatch("empty")
		return Result{StatusCode: http.StatusOK, Message: MessageCreated}, nil
	}

	created := make([]domain.JoinedProduct, 0, len(records))
	for _, record := range records {
		product, err := c.materialize(ctx, record)
		if err != nil {
			metrics.RecordBatch(string(domain.WriteFailure))
			log.Error("erro ao gravar produto",
				zap.Int("written", len(created)),
				zap.Error(err))
			return Result{}, err
		}
		created = append(created, product)
		metrics.RecordsWritten.Inc()
	}

	if err := c.notify(ctx, created); err != nil {
		metrics.RecordBatch(string(domain.PublishFailure))
		metrics.RecordNotification("error")
		return Result{}, err
	}
	metrics.RecordNotification("success")
	metrics.RecordBatch("success")

	log.Info("produtos criados", zap.Int("created", len(created)))

	return Result{
		StatusCode: http.StatusOK,
		Message:    MessageCreated,
		Created:    len(created),
		Products:   created,
	}, nil
}

// materialize gera o id e faz as duas gravações independentes com ele.
func (c *Consumer) materialize(ctx context.Context, record domain.CatalogRecord) (domain.JoinedProduct, error) {
	if err := ctx.Err(); err != nil {
		return domain.JoinedProduct{}, domain.NewError(domain.WriteFailure, "gravar produto", err)
	}

	product := domain.Product{
		ID:          c.cfg.NewID(),
		Title:       record.Title,
		Description: record.Description,
		Price:       record.Price,
	}
	stock := domain.Stock{
		ProductID: product.ID,
		Count:     record.Count,
	}

	if err := c.writer.PutProduct(ctx, product); err != nil {
		return domain.JoinedProduct{}, domain.NewError(domain.WriteFailure, "gravar produto", err)
	}

	if err := c.writer.PutStock(ctx, stock); err != nil {
		return domain.JoinedProduct{}, domain.NewError(domain.WriteFailure, "gravar estoque", err)
	}

	return domain.Join(product, &stock), nil
}

func (c *Consumer) notify(ctx context.Context, created []domain.JoinedProduct) error {
	body, err := json.Marshal(notificationBody{
		Message: fmt.Sprintf("Successfully created %d products", len(created)),
		Records: created,
	})
	if err != nil {
		return domain.NewError(domain.PublishFailure, "montar notificação", err)
	}

	n := notify.Notification{
		Subject: NotificationSubject,
		Message: string(body),
		Attributes: map[string]notify.Attribute{
			PriceAttributeName: {
				DataType:    notify.DataTypeNumber,
				StringValue: c.priceAttribute(created).String(),
			},
		},
	}

	if err := c.notifier.Publish(ctx, n); err != nil {
		return domain.NewError(domain.PublishFailure, "publicar notificação", err)
	}

	return nil
}

func (c *Consumer) priceAttribute(created []domain.JoinedProduct) decimal.Decimal {
	if c.cfg.PriceAttribute == PriceTotal {
		total := decimal.Zero
		for _, p := range created {
			total = total.Add(p.Price)
		}
		return total
	}
	return created[0].Price
}
