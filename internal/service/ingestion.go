package service

import (
	"context"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/ingestion"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
	"go.uber.org/zap"
)

type EventHandler interface {
	HandleEvent(ctx context.Context, event ingestion.FileArrivalEvent) ingestion.Result
}

type IngestionService struct {
	producer EventHandler
	bucket   string
}

func NewIngestionService(producer EventHandler, bucket string) *IngestionService {
	return &IngestionService{
		producer: producer,
		bucket:   bucket,
	}
}

// ProcessFile dispara o producer para uma chave do bucket padrão, como se o
// evento de chegada tivesse vindo do object store.
func (s *IngestionService) ProcessFile(ctx context.Context, key string) ingestion.Result {
	logger.WithContext(ctx).Info("processando arquivo",
		zap.String("bucket", s.bucket),
		zap.String("key", key))

	return s.producer.HandleEvent(ctx, ingestion.NewFileArrivalEvent(s.bucket, key))
}

func (s *IngestionService) HandleEvent(ctx context.Context, event ingestion.FileArrivalEvent) ingestion.Result {
	return s.producer.HandleEvent(ctx, event)
}
